package pushnotification

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatopsdesk/chatopsdesk/internal/config"
	"github.com/chatopsdesk/chatopsdesk/internal/pushsubscription"
	"github.com/chatopsdesk/chatopsdesk/internal/pushsubscription/repositoryimpl"
	"github.com/chatopsdesk/chatopsdesk/pkg/storage"
)

func newVAPIDEnv(t *testing.T) *config.VAPIDEnv {
	t.Helper()
	priv, pub, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return &config.VAPIDEnv{VAPIDPublicKey: pub, VAPIDPrivateKey: priv, VAPIDContact: "mailto:test@example.com"}
}

// newBrowserSubscription returns a subscription with real client keys so
// payload encryption succeeds.
func newBrowserSubscription(t *testing.T, id, endpoint string) *pushsubscription.Subscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	return &pushsubscription.Subscription{
		ID:        id,
		Endpoint:  endpoint,
		P256dhKey: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		AuthKey:   base64.RawURLEncoding.EncodeToString(auth),
		CreatedAt: time.Now(),
	}
}

func TestSender_SendsAndRemovesExpired(t *testing.T) {
	var delivered atomic.Int32
	push := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "vapid "))
		assert.Equal(t, "aes128gcm", r.Header.Get("Content-Encoding"))
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		delivered.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(push.Close)

	ctx := context.Background()
	repo := repositoryimpl.NewYAMLRepository(storage.NewMemoryStorage())
	require.NoError(t, repo.Save(ctx, newBrowserSubscription(t, "A", push.URL+"/live")))
	require.NoError(t, repo.Save(ctx, newBrowserSubscription(t, "B", push.URL+"/gone")))

	sender := NewSender(newVAPIDEnv(t), repo, push.Client())
	sender.SendToAll(ctx, &NotificationPayload{Title: "t", Body: "b"})

	assert.EqualValues(t, 1, delivered.Load())
	subs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "A", subs[0].ID)
}

func TestSender_DisabledWithoutKeys(t *testing.T) {
	var calls atomic.Int32
	push := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	t.Cleanup(push.Close)

	ctx := context.Background()
	repo := repositoryimpl.NewYAMLRepository(storage.NewMemoryStorage())
	require.NoError(t, repo.Save(ctx, newBrowserSubscription(t, "A", push.URL)))

	sender := NewSender(&config.VAPIDEnv{}, repo, push.Client())
	assert.False(t, sender.Enabled())
	sender.SendToAll(ctx, &NotificationPayload{Title: "t"})
	assert.Zero(t, calls.Load())
}
