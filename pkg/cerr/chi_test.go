package cerr

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewConvertJSONErrorChiMiddleware()(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func TestMiddleware_WritesJSONResponse(t *testing.T) {
	rec := serve(t, func(w http.ResponseWriter, r *http.Request) {
		SetJSONResponse(r.Context(), map[string]string{"id": "T1"})
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"T1"}`, rec.Body.String())
}

func TestMiddleware_WritesCustomStatus(t *testing.T) {
	rec := serve(t, func(w http.ResponseWriter, r *http.Request) {
		SetJSONResponseStatus(r.Context(), http.StatusCreated, []int{1})
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `[1]`, rec.Body.String())
}

func TestMiddleware_WritesTypedError(t *testing.T) {
	rec := serve(t, func(w http.ResponseWriter, r *http.Request) {
		err := NewError(InvalidArgument, "invalid request", nil).AddFieldViolation("head", "head is required")
		SetJSONError(r.Context(), err)
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body httpError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_argument", body.Code)
	assert.Equal(t, "invalid request", body.Message)
	assert.Equal(t, []errorDetail{{Field: "head", Message: "head is required"}}, body.Details)
}

func TestMiddleware_HidesUntypedError(t *testing.T) {
	rec := serve(t, func(w http.ResponseWriter, r *http.Request) {
		SetJSONError(r.Context(), errors.New("db password is hunter2"))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":"unknown","message":"unknown error"}`, rec.Body.String())
}

func TestCode_HTTPCode(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NotFound.HTTPCode())
	assert.Equal(t, 499, Canceled.HTTPCode())
	assert.Equal(t, http.StatusInternalServerError, Code(99).HTTPCode())
	assert.Equal(t, "not_found", NotFound.String())
}

func TestIsCode(t *testing.T) {
	err := NewError(NotFound, "task not found", nil)
	assert.True(t, IsCode(err, NotFound))
	assert.False(t, IsCode(err, Internal))
	assert.False(t, IsCode(errors.New("plain"), NotFound))
}
