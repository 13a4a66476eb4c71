package task

import "encoding/json"

type EventKind string

const (
	EventNew    EventKind = "new"
	EventLog    EventKind = "log"
	EventStatus EventKind = "status"
)

// Event is a single store mutation as seen by subscribers. Which fields are
// set depends on Kind.
type Event struct {
	Kind   EventKind
	ID     string
	Task   *Task
	Line   *LogLine
	Status Status
	Meta   map[string]any
}

func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case EventNew:
		return json.Marshal(struct {
			Kind EventKind `json:"kind"`
			ID   string    `json:"id"`
			Task *Task     `json:"task"`
		}{e.Kind, e.ID, e.Task})
	case EventLog:
		return json.Marshal(struct {
			Kind EventKind `json:"kind"`
			ID   string    `json:"id"`
			Line *LogLine  `json:"line"`
		}{e.Kind, e.ID, e.Line})
	default:
		meta := e.Meta
		if meta == nil {
			meta = map[string]any{}
		}
		return json.Marshal(struct {
			Kind   EventKind      `json:"kind"`
			ID     string         `json:"id"`
			Status Status         `json:"status"`
			Meta   map[string]any `json:"meta"`
		}{e.Kind, e.ID, e.Status, meta})
	}
}

// Publisher receives every event the store emits. *eventbus.Bus[Event]
// satisfies it.
type Publisher interface {
	Publish(Event)
}
