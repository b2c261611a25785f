package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a health check
type CheckResult struct {
	Name      string                 `json:"name"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Duration  time.Duration          `json:"duration"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Error     string                 `json:"error,omitempty"`
}

// OverallHealth represents the health of the process and its dependencies
type OverallHealth struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
	Checks    map[string]CheckResult `json:"checks"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Checker defines the interface for health checks
type Checker interface {
	Check(ctx context.Context) CheckResult
	Name() string
}

// CheckerFunc is a function adapter for Checker
type CheckerFunc struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

func NewCheckerFunc(name string, fn func(ctx context.Context) CheckResult) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (c *CheckerFunc) Check(ctx context.Context) CheckResult {
	return c.fn(ctx)
}

func (c *CheckerFunc) Name() string {
	return c.name
}

// Registry manages health checks
type Registry struct {
	checkers map[string]Checker
	metadata map[string]interface{}
	mu       sync.RWMutex
}

// NewRegistry creates a new health check registry
func NewRegistry() *Registry {
	return &Registry{
		checkers: make(map[string]Checker),
		metadata: make(map[string]interface{}),
	}
}

// Register adds a health checker, replacing any checker with the same name
func (r *Registry) Register(checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[checker.Name()] = checker
}

// Unregister removes a health checker
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.checkers, name)
}

// SetMetadata sets global metadata reported with every check
func (r *Registry) SetMetadata(key string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata[key] = value
}

// Check executes all registered health checks concurrently. Checks still running
// when ctx is done are reported unhealthy.
func (r *Registry) Check(ctx context.Context) OverallHealth {
	start := time.Now()

	r.mu.RLock()
	checkers := make(map[string]Checker, len(r.checkers))
	for k, v := range r.checkers {
		checkers[k] = v
	}
	metadata := make(map[string]interface{}, len(r.metadata))
	for k, v := range r.metadata {
		metadata[k] = v
	}
	r.mu.RUnlock()

	type namedResult struct {
		name   string
		result CheckResult
	}

	// buffered so late checks never block after we stop collecting
	resultChan := make(chan namedResult, len(checkers))
	for name, checker := range checkers {
		go func(name string, checker Checker) {
			resultChan <- namedResult{name: name, result: checker.Check(ctx)}
		}(name, checker)
	}

	checks := make(map[string]CheckResult, len(checkers))
	overallStatus := StatusHealthy

collectLoop:
	for i := 0; i < len(checkers); i++ {
		select {
		case res := <-resultChan:
			checks[res.name] = res.result
			overallStatus = worst(overallStatus, res.result.Status)
		case <-ctx.Done():
			for name := range checkers {
				if _, exists := checks[name]; !exists {
					checks[name] = CheckResult{
						Name:      name,
						Status:    StatusUnhealthy,
						Message:   "Check timed out",
						Duration:  time.Since(start),
						Timestamp: time.Now(),
						Error:     ctx.Err().Error(),
					}
				}
			}
			overallStatus = StatusUnhealthy
			break collectLoop
		}
	}

	return OverallHealth{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
		Checks:    checks,
		Metadata:  metadata,
	}
}

func worst(a, b Status) Status {
	switch {
	case a == StatusUnhealthy || b == StatusUnhealthy:
		return StatusUnhealthy
	case a == StatusDegraded || b == StatusDegraded:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// Handler provides HTTP endpoint for health checks
type Handler struct {
	registry *Registry
	timeout  time.Duration
}

// NewHandler creates a new health check HTTP handler
func NewHandler(registry *Registry, timeout time.Duration) *Handler {
	return &Handler{
		registry: registry,
		timeout:  timeout,
	}
}

// ServeHTTP implements http.Handler. Degraded is still 200; unhealthy is 503.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	health := h.registry.Check(ctx)

	statusCode := http.StatusOK
	if health.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(health)
}

// LivenessHandler provides a simple liveness check
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("alive"))
	}
}
