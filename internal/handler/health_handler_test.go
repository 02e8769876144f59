package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("dial tcp: refused") }
func (failingPinger) Ping(context.Context) error        { return errors.New("dial tcp: refused") }

func TestGetHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		db     dbPinger
		cache  cachePinger
		status int
	}{
		{name: "healthy", db: okPinger{}, cache: okPinger{}, status: http.StatusOK},
		{name: "database down", db: failingPinger{}, cache: okPinger{}, status: http.StatusServiceUnavailable},
		{name: "redis down", db: okPinger{}, cache: failingPinger{}, status: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/v1/health", NewHealthHandler(tt.db, tt.cache).GetHealth)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
			assert.Equal(t, tt.status, w.Code)

			var body envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.status == http.StatusOK, body.Success)
		})
	}
}
