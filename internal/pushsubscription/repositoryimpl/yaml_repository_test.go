package repositoryimpl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatopsdesk/chatopsdesk/internal/pushsubscription"
	"github.com/chatopsdesk/chatopsdesk/pkg/cerr"
	"github.com/chatopsdesk/chatopsdesk/pkg/storage"
)

func TestYAMLRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewYAMLRepository(storage.NewMemoryStorage())
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	a := &pushsubscription.Subscription{ID: "A", Endpoint: "https://push.example/a", P256dhKey: "p", AuthKey: "k", CreatedAt: now}
	b := &pushsubscription.Subscription{ID: "B", Endpoint: "https://push.example/b", CreatedAt: now}
	require.NoError(t, repo.Save(ctx, a))
	require.NoError(t, repo.Save(ctx, b))

	got, err := repo.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, a, got)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].ID)

	found, err := repo.FindByEndpoint(ctx, "https://push.example/b")
	require.NoError(t, err)
	assert.Equal(t, "B", found.ID)

	a.AuthKey = "k2"
	require.NoError(t, repo.Save(ctx, a))
	got, err = repo.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "k2", got.AuthKey)

	require.NoError(t, repo.DeleteByEndpoint(ctx, "https://push.example/a"))
	_, err = repo.Get(ctx, "A")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))

	err = repo.DeleteByEndpoint(ctx, "https://push.example/a")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}
