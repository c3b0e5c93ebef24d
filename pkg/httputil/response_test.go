package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	err := WriteJSON(w, http.StatusAccepted, map[string]int{"count": 3})
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"count":3}`, w.Body.String())
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantMsg    string
	}{
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "bad input") }, http.StatusBadRequest, "bad input"},
		{"unauthorized", func(w http.ResponseWriter) { WriteUnauthorized(w, "unauthorized") }, http.StatusUnauthorized, "unauthorized"},
		{"not found", func(w http.ResponseWriter) { WriteNotFoundError(w, "not found") }, http.StatusNotFound, "not found"},
		{"conflict", func(w http.ResponseWriter) { WriteConflict(w, "exists") }, http.StatusConflict, "exists"},
		{"rate limited", func(w http.ResponseWriter) { WriteTooManyRequests(w, "slow down") }, http.StatusTooManyRequests, "slow down"},
		{"internal", func(w http.ResponseWriter) { WriteInternalError(w) }, http.StatusInternalServerError, "internal server error"},
		{"unavailable", func(w http.ResponseWriter) { WriteServiceUnavailable(w, "try later") }, http.StatusServiceUnavailable, "try later"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantMsg, body.Error)
		})
	}
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteCreated(w, map[string]string{"id": "abc"}))
	assert.Equal(t, http.StatusCreated, w.Code)
}
