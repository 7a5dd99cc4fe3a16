package frontend

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	h, err := NewHandler()
	require.NoError(t, err)

	tests := []struct {
		name     string
		path     string
		status   int
		contains string
	}{
		{name: "index", path: "/", status: http.StatusOK, contains: "<form"},
		{name: "script", path: "/app.js", status: http.StatusOK, contains: "/api/v1/query"},
		{name: "stylesheet", path: "/style.css", status: http.StatusOK},
		{name: "client route falls back to index", path: "/history", status: http.StatusOK, contains: "<form"},
		{name: "missing asset", path: "/missing.js", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))

			assert.Equal(t, tt.status, rec.Code)

			if tt.contains != "" {
				body, err := io.ReadAll(rec.Body)
				require.NoError(t, err)
				assert.Contains(t, string(body), tt.contains)
			}
		})
	}
}
