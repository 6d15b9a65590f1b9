package planner

import (
	"fmt"
	"strings"

	"github.com/kilianp07/cargoplan/core/model"
	"github.com/kilianp07/cargoplan/core/planerr"
)

// Documented defaults.
const (
	DefaultDelayPenalty   = 1.0
	DefaultSLAPenalty     = 100.0
	DefaultGatewayPenalty = 20.0
	DefaultHazmatPenalty  = 25.0
	DefaultVolumePenalty  = 15.0
	DefaultOvertimeWeight = 10.0
	DefaultFuelPenalty    = 0.0
	DefaultTurnaround     = 45
	DefaultMaxDutyHours   = 10.0
	DefaultWindowStart    = "02:00"
	DefaultWindowEnd      = "08:00"
	// DefaultFuelBurn is the per-minute cost used for aircraft without a specification row.
	DefaultFuelBurn = 2.0
)

// Weights are the objective coefficients. Nil means "not configured".
type Weights struct {
	DelayPenalty   *float64 `json:"delay_penalty"`
	SLAPenalty     *float64 `json:"sla_penalty"`
	GatewayPenalty *float64 `json:"gateway_penalty"`
	HazmatPenalty  *float64 `json:"hazmat_penalty"`
	VolumePenalty  *float64 `json:"volume_penalty"`
	OvertimeWeight *float64 `json:"overtime_weight"`
	FuelPenalty    *float64 `json:"fuel_penalty"`
}

// Config is the planner configuration section.
type Config struct {
	Weights              Weights  `json:"weights"`
	MinTurnaroundMinutes *int     `json:"min_turnaround_minutes"`
	MaxDutyHours         *float64 `json:"max_duty_hours"`
	WindowStart          string   `json:"window_start"`
	WindowEnd            string   `json:"window_end"`
	HazmatCargoTypes     []string `json:"hazmat_cargo_types"`
	// StrictWeights disables defaults so that every weight must be configured.
	StrictWeights bool `json:"strict_weights"`
}

func setF(p **float64, v float64) {
	if *p == nil {
		*p = &v
	}
}

// SetDefaults applies the documented defaults unless StrictWeights is set.
func (c *Config) SetDefaults() {
	if c.StrictWeights {
		return
	}
	setF(&c.Weights.DelayPenalty, DefaultDelayPenalty)
	setF(&c.Weights.SLAPenalty, DefaultSLAPenalty)
	setF(&c.Weights.GatewayPenalty, DefaultGatewayPenalty)
	setF(&c.Weights.HazmatPenalty, DefaultHazmatPenalty)
	setF(&c.Weights.VolumePenalty, DefaultVolumePenalty)
	setF(&c.Weights.OvertimeWeight, DefaultOvertimeWeight)
	setF(&c.Weights.FuelPenalty, DefaultFuelPenalty)
	setF(&c.MaxDutyHours, DefaultMaxDutyHours)
	if c.MinTurnaroundMinutes == nil {
		v := DefaultTurnaround
		c.MinTurnaroundMinutes = &v
	}
	if c.WindowStart == "" {
		c.WindowStart = DefaultWindowStart
	}
	if c.WindowEnd == "" {
		c.WindowEnd = DefaultWindowEnd
	}
}

// Validate checks that configured values are usable. Missing values are
// reported by Params, at model-build time.
func (c Config) Validate() error {
	for name, w := range c.Weights.named() {
		if w != nil && *w < 0 {
			return fmt.Errorf("planner weight %s must not be negative", name)
		}
	}
	if c.MinTurnaroundMinutes != nil && *c.MinTurnaroundMinutes < 0 {
		return fmt.Errorf("min_turnaround_minutes must not be negative")
	}
	if c.MaxDutyHours != nil && *c.MaxDutyHours <= 0 {
		return fmt.Errorf("max_duty_hours must be positive")
	}
	return nil
}

func (w Weights) named() map[string]*float64 {
	return map[string]*float64{
		"delay_penalty":   w.DelayPenalty,
		"sla_penalty":     w.SLAPenalty,
		"gateway_penalty": w.GatewayPenalty,
		"hazmat_penalty":  w.HazmatPenalty,
		"volume_penalty":  w.VolumePenalty,
		"overtime_weight": w.OvertimeWeight,
		"fuel_penalty":    w.FuelPenalty,
	}
}

// Params are the resolved inputs of one model build.
type Params struct {
	DelayPenalty   float64
	SLAPenalty     float64
	GatewayPenalty float64
	HazmatPenalty  float64
	VolumePenalty  float64
	OvertimeWeight float64
	FuelPenalty    float64
	Turnaround     int
	MaxDutyHours   float64
	Window         model.Window
	HazmatCargo    map[string]bool
}

// DefaultParams returns the parameters obtained from an empty configuration.
func DefaultParams() Params {
	var c Config
	c.SetDefaults()
	p, err := c.Params()
	if err != nil {
		panic(err)
	}
	return p
}

// Params resolves the configuration. A value with neither an explicit setting
// nor a default yields a ConfigurationMissing error.
func (c Config) Params() (Params, error) {
	const op = "planner.params"
	need := func(name string, v *float64) (float64, error) {
		if v == nil {
			return 0, planerr.ConfigurationMissing(op, name)
		}
		return *v, nil
	}
	var p Params
	var err error
	if p.DelayPenalty, err = need("delay_penalty", c.Weights.DelayPenalty); err != nil {
		return Params{}, err
	}
	if p.SLAPenalty, err = need("sla_penalty", c.Weights.SLAPenalty); err != nil {
		return Params{}, err
	}
	if p.GatewayPenalty, err = need("gateway_penalty", c.Weights.GatewayPenalty); err != nil {
		return Params{}, err
	}
	if p.HazmatPenalty, err = need("hazmat_penalty", c.Weights.HazmatPenalty); err != nil {
		return Params{}, err
	}
	if p.VolumePenalty, err = need("volume_penalty", c.Weights.VolumePenalty); err != nil {
		return Params{}, err
	}
	if p.OvertimeWeight, err = need("overtime_weight", c.Weights.OvertimeWeight); err != nil {
		return Params{}, err
	}
	// The fuel term is optional and disabled when absent.
	if c.Weights.FuelPenalty != nil {
		p.FuelPenalty = *c.Weights.FuelPenalty
	}
	if p.MaxDutyHours, err = need("max_duty_hours", c.MaxDutyHours); err != nil {
		return Params{}, err
	}
	if c.MinTurnaroundMinutes == nil {
		return Params{}, planerr.ConfigurationMissing(op, "min_turnaround_minutes")
	}
	p.Turnaround = *c.MinTurnaroundMinutes
	if c.WindowStart == "" || c.WindowEnd == "" {
		return Params{}, planerr.ConfigurationMissing(op, "window")
	}
	if p.Window.Start, err = model.ParseClock(c.WindowStart); err != nil {
		return Params{}, fmt.Errorf("%s: window_start: %w", op, err)
	}
	if p.Window.End, err = model.ParseClock(c.WindowEnd); err != nil {
		return Params{}, fmt.Errorf("%s: window_end: %w", op, err)
	}
	p.HazmatCargo = make(map[string]bool, len(c.HazmatCargoTypes))
	for _, ct := range c.HazmatCargoTypes {
		p.HazmatCargo[strings.ToLower(strings.TrimSpace(ct))] = true
	}
	return p, p.Validate()
}

// Validate checks the resolved parameters.
func (p Params) Validate() error {
	for name, w := range map[string]float64{
		"delay_penalty": p.DelayPenalty, "sla_penalty": p.SLAPenalty,
		"gateway_penalty": p.GatewayPenalty, "hazmat_penalty": p.HazmatPenalty,
		"volume_penalty": p.VolumePenalty, "overtime_weight": p.OvertimeWeight,
		"fuel_penalty": p.FuelPenalty,
	} {
		if w < 0 {
			return fmt.Errorf("weight %s must not be negative", name)
		}
	}
	if p.Turnaround < 0 {
		return fmt.Errorf("turnaround must not be negative")
	}
	if p.MaxDutyHours <= 0 {
		return fmt.Errorf("max duty hours must be positive")
	}
	if p.Window.End < p.Window.Start {
		return fmt.Errorf("flight window ends before it starts")
	}
	return nil
}

// IsHazmat reports whether a flight carries dangerous goods.
func (p Params) IsHazmat(f model.Flight) bool {
	return f.Hazmat || p.HazmatCargo[strings.ToLower(f.CargoType)]
}
