package archive

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/chatopsdesk/chatopsdesk/internal/eventbus"
	"github.com/chatopsdesk/chatopsdesk/internal/task"
	"github.com/chatopsdesk/chatopsdesk/pkg/cerr"
	"github.com/chatopsdesk/chatopsdesk/pkg/storage"
)

const tasksPrefix = "tasks"

func Path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", tasksPrefix, id)
}

// Archiver writes a YAML snapshot of every task that reaches a terminal
// status. Snapshots are never read back.
type Archiver struct {
	eventBus *eventbus.Bus[task.Event]
	store    *task.Store
	storage  storage.Storage
}

func NewArchiver(eventBus *eventbus.Bus[task.Event], store *task.Store, s storage.Storage) *Archiver {
	return &Archiver{
		eventBus: eventBus,
		store:    store,
		storage:  s,
	}
}

// Start consumes events until ctx is done.
func (a *Archiver) Start(ctx context.Context) {
	subID, ch := a.eventBus.SubscribeQueue()
	defer a.eventBus.Unsubscribe(subID)

	slog.Info("task archiver started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("task archiver stopped")
			return
		case event, ok := <-ch:
			if !ok {
				slog.Warn("task archiver lost its subscription")
				return
			}
			if event.Kind != task.EventStatus || !event.Status.Terminal() {
				continue
			}
			if err := a.Archive(ctx, event.ID); err != nil {
				slog.ErrorContext(ctx, "failed to archive task", "task_id", event.ID, "error", err)
			}
		}
	}
}

func (a *Archiver) Archive(ctx context.Context, id string) error {
	t, ok := a.store.Get(id)
	if !ok {
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	data, err := yaml.Marshal(t)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal task: %w", err))
	}
	if err := a.storage.Write(ctx, Path(id), data); err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	return nil
}
