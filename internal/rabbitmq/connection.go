package rabbitmq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConnectionManager manages the RabbitMQ connection with automatic reconnection
type ConnectionManager struct {
	url            string
	conn           *amqp.Connection
	mu             sync.RWMutex
	reconnectDelay time.Duration
	maxRetries     int
	logger         *slog.Logger
	notifyClose    chan *amqp.Error
	isConnected    bool
	done           chan struct{}
	dial           func(url string) (*amqp.Connection, error)
}

// ConnectionOption configures the ConnectionManager
type ConnectionOption func(*ConnectionManager)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.logger = logger
	}
}

// WithReconnectDelay sets the reconnection delay
func WithReconnectDelay(delay time.Duration) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.reconnectDelay = delay
	}
}

// WithMaxRetries sets the maximum number of reconnection attempts
func WithMaxRetries(retries int) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.maxRetries = retries
	}
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(url string, options ...ConnectionOption) *ConnectionManager {
	cm := &ConnectionManager{
		url:            url,
		reconnectDelay: 5 * time.Second,
		maxRetries:     -1, // infinite retries by default
		logger:         slog.Default(),
		done:           make(chan struct{}),
		dial:           amqp.Dial,
	}

	for _, opt := range options {
		opt(cm)
	}

	return cm
}

// Connect establishes the initial connection
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.isConnected {
		return nil
	}

	conn, err := cm.dialWithTimeout(ctx)
	if err != nil {
		return &ConnectionError{
			Op:        "connect",
			URL:       SanitizeURL(cm.url),
			Err:       err,
			Timestamp: time.Now(),
			Attempts:  1,
		}
	}

	cm.attach(conn)
	cm.logger.Info("connected to RabbitMQ", "url", SanitizeURL(cm.url))

	go cm.handleReconnect()
	return nil
}

// dialWithTimeout bounds amqp.Dial, which takes no context, by ctx and 30 seconds
func (cm *ConnectionManager) dialWithTimeout(ctx context.Context) (*amqp.Connection, error) {
	connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	type result struct {
		conn *amqp.Connection
		err  error
	}
	resultCh := make(chan result, 1)

	go func() {
		conn, err := cm.dial(cm.url)
		resultCh <- result{conn: conn, err: err}
	}()

	select {
	case r := <-resultCh:
		return r.conn, r.err
	case <-connCtx.Done():
		go func() {
			// close a connection that arrives after we gave up on it
			if r := <-resultCh; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		if ctx.Err() != nil {
			return nil, ErrOperationCancelled
		}
		return nil, ErrConnectionTimeout
	}
}

// attach must be called with mu held
func (cm *ConnectionManager) attach(conn *amqp.Connection) {
	cm.conn = conn
	cm.isConnected = true
	cm.notifyClose = make(chan *amqp.Error, 1)
	cm.conn.NotifyClose(cm.notifyClose)
}

// GetConnection returns the current connection
func (cm *ConnectionManager) GetConnection() (*amqp.Connection, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if !cm.isConnected || cm.conn == nil {
		return nil, ErrConnectionNotReady
	}

	if cm.conn.IsClosed() {
		return nil, ErrConnectionClosed
	}

	return cm.conn, nil
}

// IsConnected returns the connection status
func (cm *ConnectionManager) IsConnected() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.isConnected
}

// Close closes the connection and stops reconnecting
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	select {
	case <-cm.done:
		return nil
	default:
		close(cm.done)
	}

	cm.isConnected = false
	if cm.conn != nil {
		err := cm.conn.Close()
		cm.conn = nil
		return err
	}

	return nil
}

// handleReconnect monitors the connection and reconnects if necessary
func (cm *ConnectionManager) handleReconnect() {
	for {
		cm.mu.RLock()
		notifyClose := cm.notifyClose
		cm.mu.RUnlock()

		select {
		case err, ok := <-notifyClose:
			if ok && err != nil {
				cm.logger.Error("connection closed", "error", err)
			}

			cm.mu.Lock()
			cm.isConnected = false
			cm.conn = nil
			cm.mu.Unlock()

			if !cm.reconnect() {
				return
			}

		case <-cm.done:
			cm.logger.Info("connection manager shutting down")
			return
		}
	}
}

// reconnect attempts to reconnect to RabbitMQ. It reports false when the manager
// was closed or gave up.
func (cm *ConnectionManager) reconnect() bool {
	retries := 0
	startTime := time.Now()

	for {
		select {
		case <-cm.done:
			return false
		default:
		}

		if cm.maxRetries > 0 && retries >= cm.maxRetries {
			cm.logger.Error("max reconnection attempts reached",
				"attempts", retries,
				"duration", time.Since(startTime))
			return false
		}

		delay := cm.calculateBackoff(retries)
		if retries > 0 {
			select {
			case <-time.After(delay):
			case <-cm.done:
				return false
			}
		}

		cm.logger.Info("attempting to reconnect",
			"attempt", retries+1,
			"maxRetries", cm.maxRetries)

		conn, err := cm.dialWithTimeout(context.Background())
		if err != nil {
			cm.logger.Error("reconnection failed",
				"error", err,
				"attempt", retries+1,
				"nextRetryIn", delay)
			retries++
			continue
		}

		cm.mu.Lock()
		select {
		case <-cm.done:
			cm.mu.Unlock()
			_ = conn.Close()
			return false
		default:
		}
		cm.attach(conn)
		cm.mu.Unlock()

		cm.logger.Info("successfully reconnected to RabbitMQ",
			"attempts", retries+1,
			"duration", time.Since(startTime))
		return true
	}
}

// calculateBackoff calculates the backoff duration with jitter
func (cm *ConnectionManager) calculateBackoff(attempt int) time.Duration {
	base := cm.reconnectDelay
	if base == 0 {
		base = 5 * time.Second
	}

	// Cap at 5 minutes
	maxDelay := 5 * time.Minute

	if attempt > 16 {
		attempt = 16
	}
	delay := base * time.Duration(1<<uint(attempt))
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}

	// Add jitter (±25%)
	jitter := time.Duration(float64(delay) * 0.25)
	if jitter > 0 {
		delay = delay - jitter/2 + time.Duration(time.Now().UnixNano()%int64(jitter))
	}

	return delay
}
