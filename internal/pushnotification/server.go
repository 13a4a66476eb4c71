package pushnotification

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/chatopsdesk/chatopsdesk/internal/config"
	"github.com/chatopsdesk/chatopsdesk/internal/pushsubscription"
	"github.com/chatopsdesk/chatopsdesk/pkg/cerr"
)

type Server struct {
	vapidEnv *config.VAPIDEnv
	repo     pushsubscription.Repository
	sender   Notifier
}

func NewServer(vapidEnv *config.VAPIDEnv, repo pushsubscription.Repository, sender Notifier) *Server {
	return &Server{
		vapidEnv: vapidEnv,
		repo:     repo,
		sender:   sender,
	}
}

func (s *Server) Mount(r chi.Router) {
	r.Get("/push/vapid-public-key", s.GetVapidPublicKey)
	r.Post("/push/subscriptions", s.RegisterPushSubscription)
	r.Delete("/push/subscriptions", s.UnregisterPushSubscription)
	r.Post("/push/test", s.SendTestNotification)
}

type vapidPublicKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

func (s *Server) GetVapidPublicKey(w http.ResponseWriter, r *http.Request) {
	if s.vapidEnv.VAPIDPublicKey == "" {
		cerr.SetNewJSONError(r.Context(), cerr.FailedPrecondition, "VAPID keys not configured", nil)
		return
	}
	cerr.SetJSONResponse(r.Context(), vapidPublicKeyResponse{PublicKey: s.vapidEnv.VAPIDPublicKey})
}

// subscriptionRequest matches PushSubscription.toJSON() in the browser.
type subscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (s *Server) RegisterPushSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req subscriptionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid JSON body", err)
		return
	}

	verr := cerr.NewError(cerr.InvalidArgument, "invalid push subscription", nil)
	if req.Endpoint == "" {
		verr.AddFieldViolation("endpoint", "value is required")
	}
	if req.Keys.P256dh == "" {
		verr.AddFieldViolation("p256dh", "value is required")
	}
	if req.Keys.Auth == "" {
		verr.AddFieldViolation("auth", "value is required")
	}
	if len(verr.Details) > 0 {
		cerr.SetJSONError(ctx, verr)
		return
	}

	now := time.Now().UTC()
	sub, err := s.repo.FindByEndpoint(ctx, req.Endpoint)
	switch {
	case err == nil:
		sub.P256dhKey = req.Keys.P256dh
		sub.AuthKey = req.Keys.Auth
		sub.UpdatedAt = now
	case cerr.IsCode(err, cerr.NotFound):
		sub = &pushsubscription.Subscription{
			ID:        ulid.Make().String(),
			Endpoint:  req.Endpoint,
			P256dhKey: req.Keys.P256dh,
			AuthKey:   req.Keys.Auth,
			CreatedAt: now,
			UpdatedAt: now,
		}
	default:
		cerr.SetJSONError(ctx, err)
		return
	}

	if err := s.repo.Save(ctx, sub); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseStatus(ctx, http.StatusCreated, map[string]string{"id": sub.ID})
}

func (s *Server) UnregisterPushSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req subscriptionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil || req.Endpoint == "" {
		cerr.SetJSONError(ctx, cerr.NewError(cerr.InvalidArgument, "endpoint is required", err).
			AddFieldViolation("endpoint", "value is required"))
		return
	}
	if err := s.repo.DeleteByEndpoint(ctx, req.Endpoint); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) SendTestNotification(w http.ResponseWriter, r *http.Request) {
	s.sender.SendToAll(r.Context(), &NotificationPayload{
		Title: "Local ChatOps Desk",
		Body:  "Push notifications are working!",
	})
	w.WriteHeader(http.StatusAccepted)
}
