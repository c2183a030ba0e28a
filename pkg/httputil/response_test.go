package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/platinummonkey/plugweave/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteSuccess(w, map[string]string{"message": "success"})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"success"}`, w.Body.String())
}

func TestWriteErrors(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter, r *http.Request)
		status int
		msg    string
	}{
		{
			name:   "not found",
			write:  func(w http.ResponseWriter, r *http.Request) { WriteNotFound(w, r, "class not found") },
			status: http.StatusNotFound,
			msg:    "class not found",
		},
		{
			name:   "bad request",
			write:  func(w http.ResponseWriter, r *http.Request) { WriteBadRequest(w, r, "bad spec") },
			status: http.StatusBadRequest,
			msg:    "bad spec",
		},
		{
			name:   "internal",
			write:  func(w http.ResponseWriter, r *http.Request) { WriteInternalError(w, r, errors.New("boom")) },
			status: http.StatusInternalServerError,
			msg:    "boom",
		},
		{
			name:   "unavailable",
			write:  func(w http.ResponseWriter, r *http.Request) { WriteServiceUnavailable(w, r, "loading") },
			status: http.StatusServiceUnavailable,
			msg:    "loading",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r = r.WithContext(observability.WithRequestID(r.Context(), "req-1"))

			tt.write(w, r)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.msg, resp.Error)
			assert.Equal(t, "req-1", resp.RequestID)
		})
	}
}

func TestWriteDetailedError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteDetailedError(w, nil, http.StatusConflict, "reload in progress", map[string]string{"trigger": "watch"})

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "reload in progress", resp.Error)
	assert.Empty(t, resp.RequestID)
	assert.Equal(t, "watch", resp.Details["trigger"])
}
