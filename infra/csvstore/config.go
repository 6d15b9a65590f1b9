package csvstore

import (
	"fmt"
	"path/filepath"
)

// Config locates the input tables.
type Config struct {
	Dir           string `json:"dir"`
	Flights       string `json:"flights"`
	Aircraft      string `json:"aircraft"`
	Crew          string `json:"crew"`
	Slots         string `json:"time_slots"`
	Certification string `json:"certification"`
	Gateways      string `json:"gateways"`
	Specs         string `json:"specifications"`
	// StrictIDs is consumed by the store's unknown-identifier policy.
	StrictIDs bool `json:"strict_ids"`
}

// SetDefaults applies the conventional file names.
func (c *Config) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "data"
	}
	if c.Flights == "" {
		c.Flights = "flights.csv"
	}
	if c.Aircraft == "" {
		c.Aircraft = "aircraft.csv"
	}
	if c.Crew == "" {
		c.Crew = "crew.csv"
	}
	if c.Slots == "" {
		c.Slots = "time_slots.csv"
	}
	if c.Certification == "" {
		c.Certification = "aircraft_crew_certification.csv"
	}
	if c.Gateways == "" {
		c.Gateways = "gateway_aircraft_compatibility.csv"
	}
	if c.Specs == "" {
		c.Specs = "aircraft_specifications.csv"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("data dir is required")
	}
	return nil
}

func (c Config) path(name string) string { return filepath.Join(c.Dir, name) }
