package events

// Entity kinds carried by MutationEvent.
const (
	EntityCrew     = "crew"
	EntityAircraft = "aircraft"
)

// MutationEvent is published after a data store mutation.
type MutationEvent struct {
	Entity      string
	ID          string
	Description string
	Applied     bool
}
