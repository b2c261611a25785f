package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticChecker(name string, status Status) Checker {
	return NewCheckerFunc(name, func(ctx context.Context) CheckResult {
		return CheckResult{Name: name, Status: status, Timestamp: time.Now()}
	})
}

func TestNewCheckerFunc(t *testing.T) {
	checker := NewCheckerFunc("test-checker", func(ctx context.Context) CheckResult {
		return CheckResult{Name: "test-checker", Status: StatusHealthy, Message: "test message"}
	})

	assert.Equal(t, "test-checker", checker.Name())

	result := checker.Check(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)
	assert.Equal(t, "test message", result.Message)
}

func TestRegistryCheck(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"no checks is healthy", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins over degraded", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()
			for i, status := range tt.statuses {
				registry.Register(staticChecker(string(rune('a'+i)), status))
			}

			health := registry.Check(context.Background())
			assert.Equal(t, tt.want, health.Status)
			assert.Len(t, health.Checks, len(tt.statuses))
		})
	}
}

func TestRegistryUnregisterAndMetadata(t *testing.T) {
	registry := NewRegistry()
	registry.Register(staticChecker("backend", StatusUnhealthy))
	registry.SetMetadata("version", "1.2.3")
	registry.Unregister("backend")

	health := registry.Check(context.Background())
	assert.Equal(t, StatusHealthy, health.Status)
	assert.Empty(t, health.Checks)
	assert.Equal(t, "1.2.3", health.Metadata["version"])
}

func TestRegistryCheckTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	registry := NewRegistry()
	registry.Register(staticChecker("fast", StatusHealthy))
	registry.Register(NewCheckerFunc("slow", func(ctx context.Context) CheckResult {
		<-release
		return CheckResult{Name: "slow", Status: StatusHealthy}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	health := registry.Check(ctx)
	assert.Equal(t, StatusUnhealthy, health.Status)
	assert.Equal(t, "Check timed out", health.Checks["slow"].Message)
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		wantCode int
	}{
		{"healthy", StatusHealthy, http.StatusOK},
		{"degraded is still OK", StatusDegraded, http.StatusOK},
		{"unhealthy", StatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()
			registry.Register(staticChecker("backend", tt.status))

			rec := httptest.NewRecorder()
			NewHandler(registry, time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body OverallHealth
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Status)
			assert.Equal(t, tt.status, body.Checks["backend"].Status)
		})
	}

	t.Run("rejects other methods", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHandler(NewRegistry(), time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", rec.Body.String())
}
