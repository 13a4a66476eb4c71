package pushnotification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatopsdesk/chatopsdesk/internal/config"
	"github.com/chatopsdesk/chatopsdesk/internal/pushsubscription/repositoryimpl"
	"github.com/chatopsdesk/chatopsdesk/pkg/cerr"
	"github.com/chatopsdesk/chatopsdesk/pkg/storage"
)

func newPushRouter(t *testing.T, env *config.VAPIDEnv) (http.Handler, *repositoryimpl.YAMLRepository, *recordingNotifier) {
	t.Helper()
	repo := repositoryimpl.NewYAMLRepository(storage.NewMemoryStorage())
	notifier := &recordingNotifier{}
	r := chi.NewRouter()
	r.Use(cerr.NewConvertJSONErrorChiMiddleware())
	NewServer(env, repo, notifier).Mount(r)
	return r, repo, notifier
}

func call(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestServer_VapidPublicKey(t *testing.T) {
	h, _, _ := newPushRouter(t, &config.VAPIDEnv{VAPIDPublicKey: "pub"})
	rec := call(h, http.MethodGet, "/push/vapid-public-key", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"publicKey":"pub"}`, rec.Body.String())

	h, _, _ = newPushRouter(t, &config.VAPIDEnv{})
	rec = call(h, http.MethodGet, "/push/vapid-public-key", "")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestServer_RegisterIsIdempotentPerEndpoint(t *testing.T) {
	h, repo, _ := newPushRouter(t, &config.VAPIDEnv{})
	body := `{"endpoint":"https://push.example/x","keys":{"p256dh":"p","auth":"a"}}`

	rec := call(h, http.MethodPost, "/push/subscriptions", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = call(h, http.MethodPost, "/push/subscriptions",
		`{"endpoint":"https://push.example/x","keys":{"p256dh":"p","auth":"a2"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	subs, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "a2", subs[0].AuthKey)

	rec = call(h, http.MethodDelete, "/push/subscriptions", `{"endpoint":"https://push.example/x"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	subs, err = repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestServer_RegisterValidates(t *testing.T) {
	h, _, _ := newPushRouter(t, &config.VAPIDEnv{})
	rec := call(h, http.MethodPost, "/push/subscriptions", `{"endpoint":"https://push.example/x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"code":"invalid_argument","message":"invalid push subscription","details":[
		{"field":"p256dh","message":"value is required"},
		{"field":"auth","message":"value is required"}]}`, rec.Body.String())
}

func TestServer_SendTestNotification(t *testing.T) {
	h, _, notifier := newPushRouter(t, &config.VAPIDEnv{})
	rec := call(h, http.MethodPost, "/push/test", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, notifier.snapshot(), 1)
}
