package health

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/glimte/skillbridge/internal/rabbitmq"
)

// Doer sends HTTP requests; *http.Client satisfies it
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// BackendChecker checks that the home automation instance answers HTTP. Any
// response below 500 counts as reachable, including 401 for the unauthenticated probe.
type BackendChecker struct {
	client Doer
	url    string
}

// NewBackendChecker creates a checker probing url with GET
func NewBackendChecker(client Doer, url string) *BackendChecker {
	return &BackendChecker{
		client: client,
		url:    url,
	}
}

func (c *BackendChecker) Name() string {
	return "backend"
}

func (c *BackendChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   map[string]interface{}{"url": c.url},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = "Invalid backend URL"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	resp, err := c.client.Do(req)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = "Backend unreachable"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	result.Details["status_code"] = resp.StatusCode
	if resp.StatusCode >= http.StatusInternalServerError {
		result.Status = StatusDegraded
		result.Message = "Backend returned a server error"
	} else {
		result.Status = StatusHealthy
		result.Message = "Backend is reachable"
	}

	result.Duration = time.Since(start)
	result.Details["response_time_ms"] = result.Duration.Milliseconds()
	return result
}

// RabbitMQChecker checks RabbitMQ connection health and that the directive queue exists
type RabbitMQChecker struct {
	connManager *rabbitmq.ConnectionManager
	queue       string
}

// NewRabbitMQChecker creates a new RabbitMQ health checker
func NewRabbitMQChecker(connManager *rabbitmq.ConnectionManager, queue string) *RabbitMQChecker {
	return &RabbitMQChecker{
		connManager: connManager,
		queue:       queue,
	}
}

func (c *RabbitMQChecker) Name() string {
	return "rabbitmq"
}

func (c *RabbitMQChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   make(map[string]interface{}),
	}

	conn, err := c.connManager.GetConnection()
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = "Failed to get connection"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	// Try to create a channel to test the connection
	ch, err := conn.Channel()
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = "Failed to create channel"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}
	defer ch.Close()

	q, err := ch.QueueDeclarePassive(c.queue, true, false, false, false, nil)
	if err != nil {
		result.Status = StatusDegraded
		result.Message = "Directive queue check failed"
		result.Error = err.Error()
	} else {
		result.Status = StatusHealthy
		result.Message = "Connection is healthy"
		result.Details["messages"] = q.Messages
		result.Details["consumers"] = q.Consumers
	}

	result.Duration = time.Since(start)
	result.Details["queue"] = c.queue
	result.Details["response_time_ms"] = result.Duration.Milliseconds()
	return result
}
