package model

import "fmt"

// Dataset is one consistent view of every input table.
type Dataset struct {
	Flights       []Flight
	Aircraft      []Aircraft
	Crew          []Crew
	Slots         Slots
	Certification CertificationMatrix
	Gateways      GatewayMatrix
	Specs         map[string]AircraftSpec
}

// Clone returns a deep copy so callers can hold a snapshot across mutations.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		Flights:       append([]Flight(nil), d.Flights...),
		Aircraft:      append([]Aircraft(nil), d.Aircraft...),
		Crew:          append([]Crew(nil), d.Crew...),
		Slots:         append(Slots(nil), d.Slots...),
		Certification: CertificationMatrix(cloneMatrix(d.Certification)),
		Gateways:      GatewayMatrix(cloneMatrix(d.Gateways)),
		Specs:         make(map[string]AircraftSpec, len(d.Specs)),
	}
	for k, v := range d.Specs {
		out.Specs[k] = v
	}
	return out
}

// Validate checks identifier uniqueness and the slot set.
func (d Dataset) Validate() error {
	if err := d.Slots.Validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(d.Flights))
	for _, f := range d.Flights {
		if f.ID == "" {
			return fmt.Errorf("flight with empty identifier")
		}
		if _, dup := seen[f.ID]; dup {
			return fmt.Errorf("duplicate flight %s", f.ID)
		}
		seen[f.ID] = struct{}{}
	}
	seen = make(map[string]struct{}, len(d.Aircraft))
	for _, a := range d.Aircraft {
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("duplicate aircraft %s", a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	seen = make(map[string]struct{}, len(d.Crew))
	for _, c := range d.Crew {
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("duplicate crew %s", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}

// FlightByID returns the flight with the given identifier.
func (d Dataset) FlightByID(id string) (Flight, bool) {
	for _, f := range d.Flights {
		if f.ID == id {
			return f, true
		}
	}
	return Flight{}, false
}

// AircraftByID returns the aircraft with the given identifier.
func (d Dataset) AircraftByID(id string) (Aircraft, bool) {
	for _, a := range d.Aircraft {
		if a.ID == id {
			return a, true
		}
	}
	return Aircraft{}, false
}

// CrewByID returns the crew member with the given identifier.
func (d Dataset) CrewByID(id string) (Crew, bool) {
	for _, c := range d.Crew {
		if c.ID == id {
			return c, true
		}
	}
	return Crew{}, false
}
