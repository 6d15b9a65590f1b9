// Package csvstore reads and writes the hub dataset as a directory of CSV tables.
package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/kilianp07/cargoplan/core/model"
	"github.com/kilianp07/cargoplan/core/planerr"
)

const op = "csvstore.load"

var (
	aircraftColumns = []string{"AircraftID", "AircraftType", "InMaintenance", "MaintenanceDue", "ReadyTime"}
	crewColumns     = []string{"CrewID", "DutyStart", "MaxDutyHours", "HoursWorked", "OnDuty"}
)

// Repository implements store.Repository on a CSV directory. Aircraft and crew
// tables are rewritten in place after each mutation, last write wins.
type Repository struct {
	cfg Config
	mu  sync.Mutex
	// extra columns found on load are written back unchanged.
	aircraftExtra *extraColumns
	crewExtra     *extraColumns
}

type extraColumns struct {
	names  []string
	values map[string][]string // by id
}

// New returns a repository reading from cfg.Dir.
func New(cfg Config) *Repository {
	cfg.SetDefaults()
	return &Repository{cfg: cfg}
}

// Load reads every table. Any missing required table or malformed row yields a
// DataLoad error naming the file.
func (r *Repository) Load(_ context.Context) (model.Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var d model.Dataset
	var err error
	if d.Flights, err = r.loadFlights(); err != nil {
		return d, planerr.DataLoad(op, r.cfg.Flights, err)
	}
	if d.Aircraft, r.aircraftExtra, err = r.loadAircraft(); err != nil {
		return d, planerr.DataLoad(op, r.cfg.Aircraft, err)
	}
	if d.Crew, r.crewExtra, err = r.loadCrew(); err != nil {
		return d, planerr.DataLoad(op, r.cfg.Crew, err)
	}
	if d.Slots, err = r.loadSlots(); err != nil {
		return d, planerr.DataLoad(op, r.cfg.Slots, err)
	}
	cert, err := r.loadMatrix(r.cfg.Certification)
	if err != nil {
		return d, planerr.DataLoad(op, r.cfg.Certification, err)
	}
	d.Certification = model.CertificationMatrix(cert)
	gw, err := r.loadMatrix(r.cfg.Gateways)
	if err != nil {
		return d, planerr.DataLoad(op, r.cfg.Gateways, err)
	}
	d.Gateways = model.GatewayMatrix(gw)
	if d.Specs, err = r.loadSpecs(); err != nil {
		return d, planerr.DataLoad(op, r.cfg.Specs, err)
	}
	if err := d.Validate(); err != nil {
		return d, planerr.DataLoad(op, "", err)
	}
	return d, nil
}

func (r *Repository) loadFlights() ([]model.Flight, error) {
	t, err := readTable(r.cfg.path(r.cfg.Flights), "FlightNumber", "Origin", "Destination", "CargoType",
		"CargoPriorityScore", "ScheduledDeparture", "SLADeliveryTime", "DurationMinutes")
	if err != nil {
		return nil, err
	}
	out := make([]model.Flight, 0, len(t.rows))
	for i := range t.rows {
		prio, err := t.intAt(i, "CargoPriorityScore")
		if err != nil {
			return nil, err
		}
		dep, err := model.ParseClock(t.cell(i, "ScheduledDeparture"))
		if err != nil {
			return nil, t.rowErr(i, "ScheduledDeparture", err)
		}
		sla, err := model.ParseClock(t.cell(i, "SLADeliveryTime"))
		if err != nil {
			return nil, t.rowErr(i, "SLADeliveryTime", err)
		}
		dur, err := t.intAt(i, "DurationMinutes")
		if err != nil {
			return nil, err
		}
		f, err := model.NewFlight(t.cell(i, "FlightNumber"), t.cell(i, "Origin"), t.cell(i, "Destination"),
			t.cell(i, "CargoType"), prio, dep, sla, dur)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if f.CargoVolume, err = t.floatAt(i, "CargoVolume"); err != nil {
			return nil, err
		}
		if f.Hazmat, err = t.boolAt(i, "Hazmat"); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (r *Repository) loadAircraft() ([]model.Aircraft, *extraColumns, error) {
	t, err := readTable(r.cfg.path(r.cfg.Aircraft), "AircraftID", "InMaintenance", "MaintenanceDue")
	if err != nil {
		return nil, nil, err
	}
	out := make([]model.Aircraft, 0, len(t.rows))
	for i := range t.rows {
		a := model.Aircraft{ID: t.cell(i, "AircraftID"), Type: t.cell(i, "AircraftType")}
		if a.InMaintenance, err = t.boolAt(i, "InMaintenance"); err != nil {
			return nil, nil, err
		}
		if a.MaintenanceDue, err = t.floatAt(i, "MaintenanceDue"); err != nil {
			return nil, nil, err
		}
		if v := t.cell(i, "ReadyTime"); v != "" {
			if a.ReadyTime, err = model.ParseClock(v); err != nil {
				return nil, nil, t.rowErr(i, "ReadyTime", err)
			}
		}
		out = append(out, a)
	}
	return out, extras(t, "AircraftID", aircraftColumns), nil
}

func (r *Repository) loadCrew() ([]model.Crew, *extraColumns, error) {
	t, err := readTable(r.cfg.path(r.cfg.Crew), "CrewID", "OnDuty")
	if err != nil {
		return nil, nil, err
	}
	out := make([]model.Crew, 0, len(t.rows))
	for i := range t.rows {
		c := model.Crew{ID: t.cell(i, "CrewID")}
		if v := t.cell(i, "DutyStart"); v != "" {
			if c.DutyStart, err = model.ParseClock(v); err != nil {
				return nil, nil, t.rowErr(i, "DutyStart", err)
			}
		}
		if c.MaxDutyHours, err = t.floatAt(i, "MaxDutyHours"); err != nil {
			return nil, nil, err
		}
		if c.HoursWorked, err = t.floatAt(i, "HoursWorked"); err != nil {
			return nil, nil, err
		}
		if c.OnDuty, err = t.boolAt(i, "OnDuty"); err != nil {
			return nil, nil, err
		}
		out = append(out, c)
	}
	return out, extras(t, "CrewID", crewColumns), nil
}

// loadSlots reads the headerless single-column slot table.
func (r *Repository) loadSlots() (model.Slots, error) {
	f, err := os.Open(r.cfg.path(r.cfg.Slots))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	var out model.Slots
	for i, rec := range recs {
		if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		c, err := model.ParseClock(rec[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, c)
	}
	return out, out.Validate()
}

// loadMatrix reads an AircraftID-indexed table of boolean columns.
func (r *Repository) loadMatrix(name string) (map[string]map[string]bool, error) {
	t, err := readTable(r.cfg.path(name), "AircraftID")
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]bool, len(t.rows))
	for i := range t.rows {
		id := t.cell(i, "AircraftID")
		row := make(map[string]bool, len(t.cols)-1)
		for _, col := range t.cols {
			if col == "AircraftID" {
				continue
			}
			if row[col], err = t.boolAt(i, col); err != nil {
				return nil, err
			}
		}
		out[id] = row
	}
	return out, nil
}

// loadSpecs reads the optional specifications table.
func (r *Repository) loadSpecs() (map[string]model.AircraftSpec, error) {
	out := map[string]model.AircraftSpec{}
	t, err := readTable(r.cfg.path(r.cfg.Specs), "AircraftID")
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range t.rows {
		s := model.AircraftSpec{AircraftID: t.cell(i, "AircraftID")}
		if s.MaxCargoVolume, err = t.floatAt(i, "MaxCargoVolume"); err != nil {
			return nil, err
		}
		if s.HazmatCertified, err = t.boolAt(i, "HazmatCertified"); err != nil {
			return nil, err
		}
		if s.FuelBurnPerMinute, err = t.floatAt(i, "FuelBurnPerMinute"); err != nil {
			return nil, err
		}
		out[s.AircraftID] = s
	}
	return out, nil
}

func extras(t *table, idCol string, known []string) *extraColumns {
	isKnown := map[string]bool{}
	for _, k := range known {
		isKnown[k] = true
	}
	ex := &extraColumns{values: map[string][]string{}}
	for _, c := range t.cols {
		if !isKnown[c] {
			ex.names = append(ex.names, c)
		}
	}
	for i := range t.rows {
		vals := make([]string, len(ex.names))
		for k, c := range ex.names {
			vals[k] = t.cell(i, c)
		}
		ex.values[t.cell(i, idCol)] = vals
	}
	return ex
}

func (e *extraColumns) header() []string {
	if e == nil {
		return nil
	}
	return e.names
}

func (e *extraColumns) row(id string) []string {
	if e == nil || len(e.names) == 0 {
		return nil
	}
	if v, ok := e.values[id]; ok {
		return v
	}
	return make([]string, len(e.names))
}

// SaveCrew rewrites the crew table.
func (r *Repository) SaveCrew(_ context.Context, crew []model.Crew) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	recs := [][]string{append(append([]string(nil), crewColumns...), r.crewExtra.header()...)}
	for _, c := range crew {
		rec := []string{
			c.ID,
			c.DutyStart.String(),
			formatFloat(c.MaxDutyHours),
			formatFloat(c.HoursWorked),
			formatBool(c.OnDuty),
		}
		recs = append(recs, append(rec, r.crewExtra.row(c.ID)...))
	}
	return writeAtomic(r.cfg.path(r.cfg.Crew), recs)
}

// SaveAircraft rewrites the aircraft table.
func (r *Repository) SaveAircraft(_ context.Context, aircraft []model.Aircraft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	recs := [][]string{append(append([]string(nil), aircraftColumns...), r.aircraftExtra.header()...)}
	for _, a := range aircraft {
		rec := []string{
			a.ID,
			a.Type,
			formatBool(a.InMaintenance),
			formatFloat(a.MaintenanceDue),
			a.ReadyTime.String(),
		}
		recs = append(recs, append(rec, r.aircraftExtra.row(a.ID)...))
	}
	return writeAtomic(r.cfg.path(r.cfg.Aircraft), recs)
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
