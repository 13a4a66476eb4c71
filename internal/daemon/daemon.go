package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sourcegraph/conc"

	server "github.com/chatopsdesk/chatopsdesk/internal"
	"github.com/chatopsdesk/chatopsdesk/internal/archive"
	"github.com/chatopsdesk/chatopsdesk/internal/chat"
	"github.com/chatopsdesk/chatopsdesk/internal/config"
	"github.com/chatopsdesk/chatopsdesk/internal/event"
	"github.com/chatopsdesk/chatopsdesk/internal/eventbus"
	"github.com/chatopsdesk/chatopsdesk/internal/merge"
	"github.com/chatopsdesk/chatopsdesk/internal/pushnotification"
	pushsubrepo "github.com/chatopsdesk/chatopsdesk/internal/pushsubscription/repositoryimpl"
	"github.com/chatopsdesk/chatopsdesk/internal/runner"
	"github.com/chatopsdesk/chatopsdesk/internal/task"
	"github.com/chatopsdesk/chatopsdesk/internal/telemetry"
	"github.com/chatopsdesk/chatopsdesk/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

// Daemon owns every long-lived component of a running desk.
type Daemon struct {
	secrets           *config.SecretStore
	server            *server.Server
	scheduler         *runner.PoolScheduler
	archiver          *archive.Archiver
	dispatcher        *pushnotification.Dispatcher
	shutdownTelemetry func(context.Context) error
}

// New wires the store, runner, adapters and HTTP surface together. It does
// not start anything.
func New(ctx context.Context, env *config.Env, secrets *config.SecretStore, version string) (*Daemon, error) {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    env.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   env.OTLPEndpoint,
		Insecure:       env.OTLPInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}

	st, err := storage.New(ctx, env.StorageEnv.Options())
	if err != nil {
		_ = shutdownTelemetry(ctx)
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	bus := eventbus.New[task.Event]()
	store := task.NewStore(bus)

	httpClient := &http.Client{}
	scheduler := runner.NewPoolScheduler(env.Workers, env.TaskStartDelay)
	taskRunner := runner.New(
		store,
		chat.NewAdapter(secrets.Snapshot, httpClient),
		merge.NewAdapter(secrets.Snapshot, httpClient),
		runner.WithTimeout(env.TaskTimeout),
		runner.WithScheduler(scheduler),
	)

	vapidEnv := &env.VAPIDEnv
	pushSubRepo := pushsubrepo.NewYAMLRepository(st)
	pushSender := pushnotification.NewSender(vapidEnv, pushSubRepo, httpClient)
	if !pushSender.Enabled() {
		slog.Warn("push notifications disabled: VAPID keys not configured")
	}

	srv := server.NewServer(
		&env.BaseEnv,
		task.NewServer(store, taskRunner),
		event.NewServer(bus),
		pushnotification.NewServer(vapidEnv, pushSubRepo, pushSender),
	)

	return &Daemon{
		secrets:           secrets,
		server:            srv,
		scheduler:         scheduler,
		archiver:          archive.NewArchiver(bus, store, st),
		dispatcher:        pushnotification.NewDispatcher(bus, pushSender),
		shutdownTelemetry: shutdownTelemetry,
	}, nil
}

// Run serves until ctx is done or the listener fails, then shuts down the
// HTTP server, drains queued tasks and flushes traces.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg conc.WaitGroup
	wg.Go(func() { d.archiver.Start(ctx) })
	wg.Go(func() { d.dispatcher.Start(ctx) })
	wg.Go(func() {
		if err := d.secrets.Watch(ctx); err != nil {
			slog.Error("secrets watcher stopped", "error", err)
		}
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- d.server.ListenAndServe(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}
	cancel()
	slog.Info("shutting down server")

	// Give active connections time to finish after stream contexts are cancelled.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	wg.Wait()
	if err := d.scheduler.Close(shutdownCtx); err != nil {
		slog.Error("failed to drain task queue", "error", err)
	}
	if err := d.shutdownTelemetry(shutdownCtx); err != nil {
		slog.Error("failed to flush traces", "error", err)
	}
	return runErr
}
