package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names what happened to an entry.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// EntryEvent is a lightweight notification about an entry change. It carries
// only the id; consumers read the current entry from the database.
type EntryEvent struct {
	Event     EventType `json:"event"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntryEvent(event EventType, id int64) *EntryEvent {
	return &EntryEvent{
		Event:     event,
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *EntryEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryEventFromJSON decodes an event and rejects unknown event types.
func EntryEventFromJSON(data []byte) (*EntryEvent, error) {
	var msg EntryEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Event {
	case EventCreated, EventUpdated, EventDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Event)
	}
	if msg.ID == 0 {
		return nil, fmt.Errorf("event without entry id")
	}
	return &msg, nil
}
