// Package feed publishes the changes applied to the sets of a store
// so that other systems can follow them.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Op is the kind of change an Event reports
type Op string

const (
	OpInsert Op = "insert"
	OpDelete Op = "delete"
	OpCreate Op = "create"
	OpDrop   Op = "drop"
)

// Event describes a change requested on a set. Applied is false when
// the change was a no-op, as with inserting a key already present
type Event struct {
	Set     string    `json:"set"`
	Op      Op        `json:"op"`
	Key     int       `json:"key"`
	Kind    string    `json:"kind,omitempty"`
	Applied bool      `json:"applied"`
	Time    time.Time `json:"time"`
}

// MarshalJSON writes the key of insert and delete events, zero
// included, and leaves it out of create and drop events
func (e Event) MarshalJSON() ([]byte, error) {
	type event Event

	var key *int
	if e.Op == OpInsert || e.Op == OpDelete {
		key = &e.Key
	}

	return json.Marshal(struct {
		event
		Key *int `json:"key,omitempty"`
	}{event(e), key})
}

// Publisher sends events to their destination
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// Nop discards all the events
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error {
	return nil
}

func (Nop) Close() error {
	return nil
}

// Multi publishes every event to all of its publishers
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, events ...Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
