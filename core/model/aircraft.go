package model

// Aircraft is a tail available to the hub for the current cycle.
type Aircraft struct {
	ID            string
	Type          string
	InMaintenance bool
	// MaintenanceDue counts the flight hours left before mandatory maintenance.
	MaintenanceDue float64
	ReadyTime      Clock
}

// Usable reports whether the aircraft may be assigned in this cycle.
func (a Aircraft) Usable() bool {
	return !a.InMaintenance && a.MaintenanceDue > 0
}

// AircraftSpec holds the physical characteristics used by the soft penalties.
type AircraftSpec struct {
	AircraftID        string
	MaxCargoVolume    float64
	HazmatCertified   bool
	FuelBurnPerMinute float64
}
