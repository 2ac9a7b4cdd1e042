package health

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

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		broker error
		status int
		body   string
	}{
		{"all up", nil, http.StatusOK, "UP"},
		{"broker down", errors.New("connection refused"), http.StatusServiceUnavailable, "DOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var recorded []error
			r := gin.New()
			r.Use(func(c *gin.Context) {
				c.Next()
				for _, e := range c.Errors {
					recorded = append(recorded, e.Err)
				}
			})
			NewHandler(map[string]Pinger{
				"store":  pingFunc(func(context.Context) error { return nil }),
				"broker": pingFunc(func(context.Context) error { return tt.broker }),
			}).RegisterRoutes(r.Group("/api/v1"))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil))
			assert.Equal(t, tt.status, w.Code)

			var body struct {
				Status     string            `json:"status"`
				Components map[string]string `json:"components"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.body, body.Status)
			assert.Equal(t, "UP", body.Components["store"])
			assert.NotContains(t, w.Body.String(), "connection refused")
			if tt.broker != nil {
				assert.Equal(t, "DOWN", body.Components["broker"])
				require.Len(t, recorded, 1)
				assert.ErrorIs(t, recorded[0], tt.broker)
			}
		})
	}
}

func TestLiveness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(nil).RegisterRoutes(r.Group(""))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
