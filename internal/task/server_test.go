package task

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatopsdesk/chatopsdesk/pkg/cerr"
)

type fakeSubmitter struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeSubmitter) Submit(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
}

func newTestServer(t *testing.T) (http.Handler, *Store, *fakeSubmitter) {
	t.Helper()
	store, _ := newTestStore()
	sub := &fakeSubmitter{}
	r := chi.NewRouter()
	r.Use(cerr.NewConvertJSONErrorChiMiddleware())
	NewServer(store, sub).Mount(r)
	return r, store, sub
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_CreateChatTask(t *testing.T) {
	h, store, sub := newTestServer(t)

	rec := do(h, http.MethodPost, "/tasks/chat", `{"prompt":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, TypeChat, got.Type)
	assert.Equal(t, StatusQueued, got.Status)
	assert.Equal(t, "hello", got.Payload.Prompt)

	assert.Equal(t, []string{got.ID}, sub.ids)
	_, ok := store.Get(got.ID)
	assert.True(t, ok)
}

func TestServer_CreateChatTaskEmptyBody(t *testing.T) {
	h, _, sub := newTestServer(t)
	rec := do(h, http.MethodPost, "/tasks/chat", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, sub.ids, 1)
}

func TestServer_CreateChatTaskInvalidJSON(t *testing.T) {
	h, store, sub := newTestServer(t)
	rec := do(h, http.MethodPost, "/tasks/chat", `{"prompt":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.List())
	assert.Empty(t, sub.ids)
}

func TestServer_CreatePRToMainTask(t *testing.T) {
	h, _, sub := newTestServer(t)

	rec := do(h, http.MethodPost, "/tasks/pr-to-main", `{"head":"feature","base":"develop"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, TypePRToMain, got.Type)
	assert.Equal(t, Payload{Head: "feature", Base: "develop"}, got.Payload)
	assert.Len(t, sub.ids, 1)
}

func TestServer_CreatePRToMainTaskRequiresHead(t *testing.T) {
	h, store, sub := newTestServer(t)

	rec := do(h, http.MethodPost, "/tasks/pr-to-main", `{"base":"main"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t,
		`{"code":"invalid_argument","message":"head is required","details":[{"field":"head","message":"value is required"}]}`,
		rec.Body.String())
	assert.Empty(t, store.List())
	assert.Empty(t, sub.ids)
}

func TestServer_ListAndGetTasks(t *testing.T) {
	h, store, _ := newTestServer(t)
	a := store.Create(TypeChat, Payload{Prompt: "a"})
	b := store.Create(TypeChat, Payload{Prompt: "b"})

	rec := do(h, http.MethodGet, "/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)

	rec = do(h, http.MethodGet, "/tasks/"+b.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var one Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, "b", one.Payload.Prompt)

	rec = do(h, http.MethodGet, "/tasks/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
