// Package events publishes status-change notifications for clinic displays
// (waiting-room boards, chair-side tablets). Delivery is best effort.
package events

import (
	"context"
	"sync"
	"time"
)

const (
	TypeQueueStatusChanged       = "queue.status_changed"
	TypeAppointmentStatusChanged = "appointment.status_changed"
	TypeAppointmentBooked        = "appointment.booked"
	TypeScheduleUpdated          = "schedule.updated"
)

// Event is the JSON envelope put on the wire. Type doubles as routing key.
type Event struct {
	Type       string      `json:"type"`
	Branch     string      `json:"branch,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

func New(eventType, branch string, payload interface{}) Event {
	return Event{
		Type:       eventType,
		Branch:     branch,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, evt Event) error { return nil }

// Fanout publishes to every publisher and returns the first error.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt Event) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, evt); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(ctx context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
