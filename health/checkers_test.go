package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glimte/skillbridge/internal/rabbitmq"
	"github.com/stretchr/testify/assert"
)

type failingDoer struct{ err error }

func (d failingDoer) Do(*http.Request) (*http.Response, error) { return nil, d.err }

func TestBackendChecker(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Status
	}{
		{"ok", http.StatusOK, StatusHealthy},
		{"unauthorized probe is reachable", http.StatusUnauthorized, StatusHealthy},
		{"not found is reachable", http.StatusNotFound, StatusHealthy},
		{"server error is degraded", http.StatusBadGateway, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Empty(t, r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			result := NewBackendChecker(srv.Client(), srv.URL+"/api/").Check(context.Background())
			assert.Equal(t, "backend", result.Name)
			assert.Equal(t, tt.want, result.Status)
			assert.Equal(t, tt.status, result.Details["status_code"])
		})
	}

	t.Run("transport error is unhealthy", func(t *testing.T) {
		checker := NewBackendChecker(failingDoer{errors.New("dial tcp: connection refused")}, "http://ha.invalid/api/")
		result := checker.Check(context.Background())

		assert.Equal(t, StatusUnhealthy, result.Status)
		assert.Equal(t, "Backend unreachable", result.Message)
		assert.Contains(t, result.Error, "connection refused")
	})

	t.Run("invalid URL is unhealthy", func(t *testing.T) {
		result := NewBackendChecker(http.DefaultClient, "http://[::1").Check(context.Background())
		assert.Equal(t, StatusUnhealthy, result.Status)
	})
}

func TestRabbitMQCheckerWithoutConnection(t *testing.T) {
	checker := NewRabbitMQChecker(rabbitmq.NewConnectionManager("amqp://localhost:5672"), "alexa.directives")

	result := checker.Check(context.Background())
	assert.Equal(t, "rabbitmq", result.Name)
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Equal(t, "Failed to get connection", result.Message)
	assert.Equal(t, rabbitmq.ErrConnectionNotReady.Error(), result.Error)
}
