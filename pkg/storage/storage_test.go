package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()
	local, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"local":  local,
	}
}

func TestStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Write(ctx, "tasks/a.yaml", []byte("id: a")))
			require.NoError(t, s.Write(ctx, "tasks/b.yaml", []byte("id: b")))
			require.NoError(t, s.Write(ctx, "other/c.yaml", []byte("id: c")))

			data, err := s.Read(ctx, "tasks/a.yaml")
			require.NoError(t, err)
			assert.Equal(t, "id: a", string(data))

			ok, err := s.Exists(ctx, "tasks/b.yaml")
			require.NoError(t, err)
			assert.True(t, ok)

			paths, err := s.List(ctx, "tasks")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"tasks/a.yaml", "tasks/b.yaml"}, paths)

			require.NoError(t, s.Delete(ctx, "tasks/a.yaml"))
			_, err = s.Read(ctx, "tasks/a.yaml")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.Delete(ctx, "tasks/a.yaml"), ErrNotFound)
		})
	}
}

func TestStorage_ListMissingPrefix(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			paths, err := s.List(context.Background(), "nothing-here")
			require.NoError(t, err)
			assert.Empty(t, paths)
		})
	}
}

func TestNew_SelectsBackend(t *testing.T) {
	s, err := New(context.Background(), Options{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	s, err = New(context.Background(), Options{Type: TypeLocal, BaseDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = New(context.Background(), Options{Type: TypeS3})
	assert.Error(t, err)

	_, err = New(context.Background(), Options{Type: "ftp"})
	assert.Error(t, err)
}
