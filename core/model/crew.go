package model

// Crew is a flight crew that can be assigned to flights.
type Crew struct {
	ID           string
	DutyStart    Clock
	MaxDutyHours float64
	HoursWorked  float64
	OnDuty       bool
}

// RemainingDutyMinutes returns the duty budget left in this period.
// fallbackMax is used when the crew record carries no limit of its own.
func (c Crew) RemainingDutyMinutes(fallbackMax float64) float64 {
	limit := c.MaxDutyHours
	if limit <= 0 {
		limit = fallbackMax
	}
	return (limit - c.HoursWorked) * 60
}
