// Package chattest provides a Publisher that records emitted events.
package chattest

import (
	"context"
	"encoding/json"
	"sync"
)

type Emitted struct {
	Room   string
	Except string
	Event  string
	Data   json.RawMessage
}

type Recorder struct {
	mu     sync.Mutex
	events []Emitted
}

func (r *Recorder) Emit(ctx context.Context, room, event string, data interface{}) error {
	return r.EmitExcept(ctx, room, "", event, data)
}

func (r *Recorder) EmitExcept(_ context.Context, room, except, event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.events = append(r.events, Emitted{Room: room, Except: except, Event: event, Data: raw})
	r.mu.Unlock()
	return nil
}

// Events returns the recorded events, optionally filtered by event name.
func (r *Recorder) Events(names ...string) []Emitted {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []Emitted{}
	for _, e := range r.events {
		if len(names) == 0 || contains(names, e.Event) {
			out = append(out, e)
		}
	}
	return out
}

// Rooms returns the rooms that received event, in emission order.
func (r *Recorder) Rooms(event string) []string {
	rooms := []string{}
	for _, e := range r.Events(event) {
		rooms = append(rooms, e.Room)
	}
	return rooms
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
