package task

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/chatopsdesk/chatopsdesk/pkg/cerr"
)

// Store is the in-memory registry of tasks. Every mutation is published
// while the store lock is held, so subscribers observe events in mutation
// order.
type Store struct {
	mu        sync.RWMutex
	tasks     map[string]*Task
	order     []string
	publisher Publisher
	now       func() time.Time
}

func NewStore(publisher Publisher) *Store {
	return &Store{
		tasks:     make(map[string]*Task),
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func notFound(id string) error {
	return cerr.NewError(cerr.NotFound, fmt.Sprintf("task %s not found", id), nil)
}

// Create registers a queued task and publishes a new event. It does not
// schedule the task.
func (s *Store) Create(taskType Type, payload Payload) *Task {
	t := &Task{
		ID:        ulid.Make().String(),
		Type:      taskType,
		Payload:   payload,
		Status:    StatusQueued,
		Meta:      map[string]any{},
		Logs:      []LogLine{},
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
	s.order = append(s.order, t.ID)
	snapshot := t.clone()
	s.publisher.Publish(Event{Kind: EventNew, ID: t.ID, Task: snapshot})
	return t.clone()
}

// List returns snapshots of every task in creation order.
func (s *Store) List() []*Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id].clone())
	}
	return out
}

func (s *Store) Get(id string) (*Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return t.clone(), true
}

func (s *Store) AppendLog(id string, level Level, msg string, meta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return notFound(id)
	}
	if meta == nil {
		meta = map[string]any{}
	}
	line := LogLine{TS: s.now(), Level: level, Msg: msg, Meta: maps.Clone(meta)}
	t.Logs = append(t.Logs, line)
	s.publisher.Publish(Event{Kind: EventLog, ID: id, Line: &line})
	return nil
}

// SetStatus moves the task to status and merges patch into its meta. An
// illegal transition changes nothing.
func (s *Store) SetStatus(id string, status Status, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return notFound(id)
	}
	if !t.Status.CanTransitionTo(status) {
		return cerr.NewError(cerr.FailedPrecondition,
			fmt.Sprintf("task %s cannot move from %s to %s", id, t.Status, status), nil)
	}
	t.Status = status
	maps.Copy(t.Meta, patch)
	s.publisher.Publish(Event{Kind: EventStatus, ID: id, Status: status, Meta: maps.Clone(t.Meta)})
	return nil
}

// Logger is the narrow view of the store an adapter uses to report
// progress on one task.
type Logger interface {
	Log(ctx context.Context, level Level, msg string, meta map[string]any)
}

func (s *Store) Logger(id string) Logger {
	return &taskLogger{store: s, id: id}
}

type taskLogger struct {
	store *Store
	id    string
}

func (l *taskLogger) Log(ctx context.Context, level Level, msg string, meta map[string]any) {
	if err := l.store.AppendLog(l.id, level, msg, meta); err != nil {
		slog.ErrorContext(ctx, "failed to append task log", "task_id", l.id, "error", err)
	}
}
