package events

import (
	"context"
	"errors"
	"time"
)

// Action names the kind of listing change.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// PropertyEvent notifies downstream consumers (search indexers, caches) that a
// listing changed. Consumers re-read the listing by ID.
type PropertyEvent struct {
	Action     Action    `json:"action"`
	PropertyID string    `json:"property_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers listing events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev PropertyEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, PropertyEvent) error { return nil }
func (NopPublisher) Close() error                                 { return nil }

var errRecorderFull = errors.New("event recorder full")

// Recorder keeps published events in memory.
type Recorder struct {
	ch chan PropertyEvent
}

// NewRecorder builds a Recorder buffering up to size events.
func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan PropertyEvent, size)}
}

// Publish records ev, or fails when the buffer is full.
func (r *Recorder) Publish(ctx context.Context, ev PropertyEvent) error {
	select {
	case r.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errRecorderFull
	}
}

// Events drains the recorded events.
func (r *Recorder) Events() []PropertyEvent {
	var out []PropertyEvent
	for {
		select {
		case ev := <-r.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func (r *Recorder) Close() error { return nil }
