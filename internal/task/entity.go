package task

import (
	"maps"
	"slices"
	"time"
)

type Type string

const (
	TypeChat     Type = "chat"
	TypePRToMain Type = "pr-to-main"
)

type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
	StatusPaused  Status = "paused"
)

func (s Status) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusRunning:
		return 1
	case StatusDone, StatusFailed, StatusPaused:
		return 2
	default:
		return -1
	}
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s.rank() == 2
}

// CanTransitionTo allows only forward moves: queued, then running, then
// one of the terminal statuses.
func (s Status) CanTransitionTo(next Status) bool {
	from, to := s.rank(), next.rank()
	return from >= 0 && to >= 0 && to > from
}

type Level string

const (
	LevelInfo  Level = "info"
	LevelOK    Level = "ok"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type LogLine struct {
	TS    time.Time      `json:"ts" yaml:"ts"`
	Level Level          `json:"level" yaml:"level"`
	Msg   string         `json:"msg" yaml:"msg"`
	Meta  map[string]any `json:"meta" yaml:"meta,omitempty"`
}

// Payload is the immutable input of a task. Chat tasks use Prompt,
// pr-to-main tasks use Head and Base.
type Payload struct {
	Prompt string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Head   string `json:"head,omitempty" yaml:"head,omitempty"`
	Base   string `json:"base,omitempty" yaml:"base,omitempty"`
}

type Task struct {
	ID        string         `json:"id" yaml:"id"`
	Type      Type           `json:"type" yaml:"type"`
	Payload   Payload        `json:"payload" yaml:"payload"`
	Status    Status         `json:"status" yaml:"status"`
	Meta      map[string]any `json:"meta" yaml:"meta"`
	Logs      []LogLine      `json:"logs" yaml:"logs"`
	CreatedAt time.Time      `json:"createdAt" yaml:"created_at"`
}

// clone copies the mutable parts of t so a snapshot does not change when
// the store mutates the original. Meta values are shared and must be
// treated as read-only.
func (t *Task) clone() *Task {
	c := *t
	c.Meta = maps.Clone(t.Meta)
	c.Logs = slices.Clone(t.Logs)
	if c.Logs == nil {
		c.Logs = []LogLine{}
	}
	return &c
}
