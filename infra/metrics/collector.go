package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/cargoplan/core/events"
	coremetrics "github.com/kilianp07/cargoplan/core/metrics"
	"github.com/kilianp07/cargoplan/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records mutation
// events on sinks that support them. Runs are reported by the controller
// directly since the event carries only a summary. It stops when the
// context is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.Sink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.MutationRecorder)
	if !ok {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if e, ok := ev.(events.MutationEvent); ok {
					_ = rec.RecordMutation(coremetrics.MutationReport{
						Entity:  e.Entity,
						ID:      e.ID,
						Applied: e.Applied,
						Time:    time.Now(),
					})
				}
			}
		}
	}()
}
