package internal

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/chatopsdesk/chatopsdesk/internal/config"
	"github.com/chatopsdesk/chatopsdesk/internal/event"
	"github.com/chatopsdesk/chatopsdesk/internal/pushnotification"
	"github.com/chatopsdesk/chatopsdesk/internal/task"
	"github.com/chatopsdesk/chatopsdesk/pkg/cerr"
	"github.com/chatopsdesk/chatopsdesk/pkg/clog"
)

type Server struct {
	server                 *http.Server
	env                    *config.BaseEnv
	taskServer             *task.Server
	eventServer            *event.Server
	pushNotificationServer *pushnotification.Server
}

func NewServer(
	env *config.BaseEnv,
	taskServer *task.Server,
	eventServer *event.Server,
	pushNotificationServer *pushnotification.Server,
) *Server {
	s := &Server{
		env:                    env,
		taskServer:             taskServer,
		eventServer:            eventServer,
		pushNotificationServer: pushNotificationServer,
	}
	s.server = &http.Server{
		Addr:    env.Addr(),
		Handler: s.Handler(),
	}
	return s
}

// Handler builds the full handler tree: the JSON API under /api, the plain
// health probe and the gRPC health service.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(
			clog.SlogChiMiddleware(clog.WithChiFilter(clog.SkipEventStream)),
			cerr.NewConvertJSONErrorChiMiddleware(),
		)
		s.taskServer.Mount(r)
		s.eventServer.Mount(r)
		s.pushNotificationServer.Mount(r)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/", r)
	mux.Handle(grpchealth.NewHandler(
		grpchealth.NewStaticChecker(),
		connect.WithInterceptors(s.interceptors()...),
	))

	return h2c.NewHandler(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(mux), &http2.Server{})
}

// ListenAndServe starts the HTTP server. ctx becomes the base context of
// every request, so cancelling it also ends open event streams.
// Shutdown may run before ListenAndServe, which then returns
// http.ErrServerClosed at once.
func (s *Server) ListenAndServe(ctx context.Context) error {
	slog.Info("starting server", "addr", s.server.Addr)
	s.server.BaseContext = func(_ net.Listener) context.Context { return ctx }
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) interceptors() []connect.Interceptor {
	return []connect.Interceptor{
		clog.NewSlogConnectInterceptor(clog.WithConnectFilter(clog.DefaultConnectHealthCheckUnaryFilter)),
		cerr.NewConvertConnectErrorInterceptor(),
	}
}
