package rabbitmq

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

var (
	// Connection errors
	ErrConnectionClosed   = errors.New("rabbitmq: connection is closed")
	ErrConnectionNotReady = errors.New("rabbitmq: connection not ready")
	ErrConnectionTimeout  = errors.New("rabbitmq: connection timeout")

	// Channel errors
	ErrChannelClosed = errors.New("rabbitmq: channel is closed")

	// Consumer errors
	ErrConsumerCancelled = errors.New("rabbitmq: consumer cancelled")

	// General errors
	ErrOperationCancelled = errors.New("rabbitmq: operation cancelled")
)

// ConnectionError represents a connection-related error
type ConnectionError struct {
	Op        string    // Operation that failed
	URL       string    // Connection URL (sanitized)
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
	Attempts  int       // Number of attempts made
}

func (e *ConnectionError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("rabbitmq connection error: %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("rabbitmq connection error: %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// PublishError represents a failed reply publish
type PublishError struct {
	Exchange   string
	RoutingKey string
	Err        error
	Timestamp  time.Time
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("rabbitmq publish error: failed to publish to %q/%s: %v",
		e.Exchange, e.RoutingKey, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// ConsumerError represents a consumer-related error
type ConsumerError struct {
	Queue       string    // Queue name
	ConsumerTag string    // Consumer tag
	Op          string    // Operation that failed
	Err         error     // Underlying error
	Timestamp   time.Time // When the error occurred
}

func (e *ConsumerError) Error() string {
	return fmt.Sprintf("rabbitmq consumer error: %s failed for consumer %s on queue %s: %v",
		e.Op, e.ConsumerTag, e.Queue, e.Err)
}

func (e *ConsumerError) Unwrap() error {
	return e.Err
}

// SanitizeURL removes the password from a connection URL
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
