package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chatopsdesk/chatopsdesk/internal/eventbus"
	"github.com/chatopsdesk/chatopsdesk/internal/task"
)

const (
	subscriberBuffer  = 64
	keepAliveInterval = 15 * time.Second
)

type Server struct {
	eventBus  *eventbus.Bus[task.Event]
	keepAlive time.Duration
}

func NewServer(eventBus *eventbus.Bus[task.Event]) *Server {
	return &Server{
		eventBus:  eventBus,
		keepAlive: keepAliveInterval,
	}
}

func (s *Server) Mount(r chi.Router) {
	r.Get("/events", s.StreamEvents)
}

// StreamEvents writes every task event as a server-sent event until the
// client goes away or the subscription is evicted for falling behind.
func (s *Server) StreamEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := http.NewResponseController(w)

	// Subscribe before the headers go out so nothing published after the
	// client sees a 200 is missed.
	subID, ch := s.eventBus.Subscribe(subscriberBuffer)
	defer s.eventBus.Unsubscribe(subID)

	// SSE connections outlive any server write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		slog.WarnContext(ctx, "failed to clear write deadline", "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	// The status line is already out, so a writer that cannot flush only
	// gets logged.
	if err := rc.Flush(); err != nil {
		slog.ErrorContext(ctx, "event stream cannot be flushed", "error", err)
		return
	}

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case ev, ok := <-ch:
			if !ok {
				slog.InfoContext(ctx, "event stream closed by broadcaster", "subscriber_id", subID)
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				slog.ErrorContext(ctx, "failed to encode event", "kind", ev.Kind, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
