package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chatopsdesk/chatopsdesk/internal/merge"
	"github.com/chatopsdesk/chatopsdesk/internal/task"
	"github.com/chatopsdesk/chatopsdesk/internal/taskerr"
	"github.com/chatopsdesk/chatopsdesk/internal/telemetry"
	"github.com/chatopsdesk/chatopsdesk/pkg/clog"
	"github.com/chatopsdesk/chatopsdesk/pkg/panicerr"
)

const previewLen = 160

const (
	ReasonMissingSecret     = "missing-secret"
	ReasonInsufficientScope = "insufficient-scope"
)

type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Merger interface {
	PRToMain(ctx context.Context, log task.Logger, head, base string) (*merge.Result, error)
}

// Runner executes exactly one pass per submitted task.
type Runner struct {
	store     *task.Store
	chat      Completer
	merge     Merger
	scheduler Scheduler
	timeout   time.Duration
}

type Option func(*Runner)

// WithTimeout bounds each pass. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

func WithScheduler(s Scheduler) Option {
	return func(r *Runner) { r.scheduler = s }
}

func New(store *task.Store, chat Completer, merger Merger, opts ...Option) *Runner {
	r := &Runner{
		store:     store,
		chat:      chat,
		merge:     merger,
		scheduler: InlineScheduler{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit implements task.Submitter.
func (r *Runner) Submit(id string) {
	r.scheduler.Schedule(func(ctx context.Context) {
		r.Run(ctx, id)
	})
}

// Run drives the task from queued to a terminal status.
func (r *Runner) Run(ctx context.Context, id string) {
	t, ok := r.store.Get(id)
	if !ok {
		slog.WarnContext(ctx, "submitted task does not exist", "task_id", id)
		return
	}
	ctx = clog.WithTask(ctx, t.ID, string(t.Type))

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	ctx, span := telemetry.Tracer().Start(ctx, "task.run", trace.WithAttributes(
		attribute.String("task.id", t.ID),
		attribute.String("task.type", string(t.Type)),
	))

	if err := r.store.SetStatus(id, task.StatusRunning, nil); err != nil {
		slog.WarnContext(ctx, "task is not runnable", "error", err)
		telemetry.End(span, err)
		return
	}

	var meta map[string]any
	err := panicerr.SafeContext(func(ctx context.Context) error {
		var err error
		meta, err = r.dispatch(ctx, t)
		return err
	})(ctx)

	status := task.StatusDone
	if err == nil {
		r.setStatus(ctx, id, task.StatusDone, meta)
	} else {
		status = r.handleError(ctx, id, err)
	}
	span.SetAttributes(attribute.String("task.status", string(status)))
	telemetry.End(span, err)
}

func (r *Runner) dispatch(ctx context.Context, t *task.Task) (map[string]any, error) {
	switch t.Type {
	case task.TypeChat:
		r.log(ctx, t.ID, task.LevelInfo, "Sending prompt to Claude", nil)
		reply, err := r.chat.Complete(ctx, t.Payload.Prompt)
		if err != nil {
			return nil, err
		}
		r.log(ctx, t.ID, task.LevelOK, "Claude replied", map[string]any{"preview": preview(reply)})
		return map[string]any{"result": reply}, nil

	case task.TypePRToMain:
		result, err := r.merge.PRToMain(ctx, r.store.Logger(t.ID), t.Payload.Head, t.Payload.Base)
		if err != nil {
			return nil, err
		}
		return result.Meta(), nil

	default:
		return nil, &taskerr.InvalidTaskError{Type: string(t.Type)}
	}
}

// handleError settles a failed pass as paused or failed and returns the
// status it chose. Paused tasks get no error log.
func (r *Runner) handleError(ctx context.Context, id string, err error) task.Status {
	var terr taskerr.Error
	if !errors.As(err, &terr) {
		terr = nil
	}

	switch e := terr.(type) {
	case *taskerr.MissingSecretError:
		slog.InfoContext(ctx, "task paused", "reason", ReasonMissingSecret, "required", e.Required)
		r.setStatus(ctx, id, task.StatusPaused, map[string]any{
			"reason":   ReasonMissingSecret,
			"required": e.Required,
		})
		return task.StatusPaused

	case *taskerr.InsufficientScopeError:
		slog.InfoContext(ctx, "task paused", "reason", ReasonInsufficientScope, "error", e.Err)
		r.setStatus(ctx, id, task.StatusPaused, map[string]any{
			"reason":   ReasonInsufficientScope,
			"required": e.Required,
		})
		return task.StatusPaused

	case *taskerr.MissingCredentialError, *taskerr.ExternalCallError, *taskerr.InvalidTaskError:
		r.fail(ctx, id, err, e.Code())

	default:
		if errors.Is(err, context.DeadlineExceeded) {
			err = &taskerr.ExternalCallError{
				ErrCode: taskerr.CodeTimeout,
				Err:     fmt.Errorf("task timed out after %s: %w", r.timeout, err),
			}
			r.fail(ctx, id, err, taskerr.CodeTimeout)
			break
		}
		r.fail(ctx, id, err, taskerr.CodeGeneric)
	}
	return task.StatusFailed
}

func (r *Runner) fail(ctx context.Context, id string, err error, code string) {
	slog.WarnContext(ctx, "task failed", "code", code, "error", err)
	r.log(ctx, id, task.LevelError, err.Error(), nil)
	r.setStatus(ctx, id, task.StatusFailed, map[string]any{"code": code})
}

func (r *Runner) log(ctx context.Context, id string, level task.Level, msg string, meta map[string]any) {
	r.store.Logger(id).Log(ctx, level, msg, meta)
}

func (r *Runner) setStatus(ctx context.Context, id string, status task.Status, meta map[string]any) {
	if err := r.store.SetStatus(id, status, meta); err != nil {
		slog.ErrorContext(ctx, "failed to set task status", "status", status, "error", err)
	}
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLen {
		return s
	}
	return string(runes[:previewLen])
}
