// Package events defines the scheduling events emitted on the event bus.
//
// Available event types:
//   - RunEvent: an optimization run finished (accepted or not)
//   - MutationEvent: a crew or aircraft mutation was applied to the data store
package events
