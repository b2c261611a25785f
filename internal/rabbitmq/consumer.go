package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// HeaderErrorType carries the failure kind on error replies
	HeaderErrorType = "x-error-type"
	// HeaderErrorMessage carries the failure text on error replies
	HeaderErrorMessage = "x-error-message"
)

// DirectiveHandler turns one raw directive body into a response document
type DirectiveHandler func(ctx context.Context, body []byte) (json.RawMessage, error)

// ReplyPublisher is the part of *amqp.Channel used to answer a delivery
type ReplyPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Consumer serves directives over RabbitMQ request/reply. Every delivery is acked
// once its reply has been attempted; failed directives are answered, not redelivered.
type Consumer struct {
	conn           *ConnectionManager
	queue          string
	prefetchCount  int
	consumerTag    string
	retryDelay     time.Duration
	publishTimeout time.Duration
	classify       func(error) string
	logger         *slog.Logger
}

// ConsumerOption configures the consumer
type ConsumerOption func(*Consumer)

// WithPrefetchCount sets the prefetch count, which also bounds concurrent directives
func WithPrefetchCount(count int) ConsumerOption {
	return func(c *Consumer) {
		c.prefetchCount = count
	}
}

// WithConsumerTag sets the consumer tag
func WithConsumerTag(tag string) ConsumerOption {
	return func(c *Consumer) {
		c.consumerTag = tag
	}
}

// WithConsumerLogger sets the logger
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// WithRetryDelay sets how long to wait before re-opening a closed channel
func WithRetryDelay(delay time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.retryDelay = delay
	}
}

// WithErrorClassifier sets the function naming failures in the x-error-type header
func WithErrorClassifier(classify func(error) string) ConsumerOption {
	return func(c *Consumer) {
		c.classify = classify
	}
}

// NewConsumer creates a consumer for the given queue
func NewConsumer(conn *ConnectionManager, queue string, options ...ConsumerOption) *Consumer {
	c := &Consumer{
		conn:           conn,
		queue:          queue,
		prefetchCount:  10,
		retryDelay:     5 * time.Second,
		publishTimeout: 5 * time.Second,
		classify:       func(error) string { return "error" },
		logger:         slog.Default(),
	}

	for _, opt := range options {
		opt(c)
	}

	if c.prefetchCount <= 0 {
		c.prefetchCount = 1
	}
	return c
}

// Run consumes until ctx is cancelled, re-opening the channel whenever it closes
func (c *Consumer) Run(ctx context.Context, handler DirectiveHandler) error {
	for {
		err := c.consume(ctx, handler)
		if ctx.Err() != nil {
			c.logger.Info("consumer stopped", "queue", c.queue)
			return nil
		}

		c.logger.Warn("consumer interrupted",
			"queue", c.queue,
			"error", err,
			"retryIn", c.retryDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.retryDelay):
		}
	}
}

func (c *Consumer) consume(ctx context.Context, handler DirectiveHandler) error {
	conn, err := c.conn.GetConnection()
	if err != nil {
		return c.consumerError("connect", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return c.consumerError("open channel", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return c.consumerError("declare queue", err)
	}

	if err := ch.Qos(c.prefetchCount, 0, false); err != nil {
		return c.consumerError("set qos", err)
	}

	deliveries, err := ch.Consume(c.queue, c.consumerTag, false, false, false, false, nil)
	if err != nil {
		return c.consumerError("consume", err)
	}
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	c.logger.Info("consuming directives",
		"queue", c.queue,
		"prefetch", c.prefetchCount)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case amqpErr, ok := <-closed:
			if !ok || amqpErr == nil {
				return c.consumerError("consume", ErrChannelClosed)
			}
			return c.consumerError("consume", amqpErr)

		case d, ok := <-deliveries:
			if !ok {
				return c.consumerError("consume", ErrConsumerCancelled)
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.HandleDelivery(ctx, ch, d, handler)
			}()
		}
	}
}

// HandleDelivery runs one directive through handler, publishes the reply to the
// delivery's ReplyTo queue and acks the delivery.
func (c *Consumer) HandleDelivery(ctx context.Context, pub ReplyPublisher, d amqp.Delivery, handler DirectiveHandler) {
	start := time.Now()
	resp, err := handler(ctx, d.Body)
	defer c.ack(d)

	if d.ReplyTo == "" {
		c.logger.Warn("directive has no reply queue, dropping response",
			"messageId", d.MessageId,
			"correlationId", d.CorrelationId)
		return
	}

	reply := c.buildReply(d, resp, err)

	// the reply is still owed when the consumer is shutting down
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.publishTimeout)
	defer cancel()

	if perr := pub.PublishWithContext(pubCtx, "", d.ReplyTo, false, false, reply); perr != nil {
		c.logger.Error("failed to publish reply",
			"correlationId", d.CorrelationId,
			"error", &PublishError{RoutingKey: d.ReplyTo, Err: perr, Timestamp: time.Now()})
		return
	}

	c.logger.Debug("reply published",
		"replyTo", d.ReplyTo,
		"correlationId", d.CorrelationId,
		"failed", err != nil,
		"duration", time.Since(start))
}

func (c *Consumer) buildReply(d amqp.Delivery, resp json.RawMessage, err error) amqp.Publishing {
	reply := amqp.Publishing{
		CorrelationId: d.CorrelationId,
		MessageId:     uuid.New().String(),
		Timestamp:     time.Now(),
	}

	if err != nil {
		reply.ContentType = "text/plain"
		reply.Type = "error"
		reply.Headers = amqp.Table{
			HeaderErrorType:    c.classify(err),
			HeaderErrorMessage: err.Error(),
		}
		reply.Body = []byte(err.Error())
		return reply
	}

	reply.ContentType = "application/json"
	reply.Body = resp
	return reply
}

func (c *Consumer) ack(d amqp.Delivery) {
	if err := d.Ack(false); err != nil && !errors.Is(err, amqp.ErrClosed) {
		c.logger.Error("failed to ack delivery",
			"deliveryTag", d.DeliveryTag,
			"error", err)
	}
}

func (c *Consumer) consumerError(op string, err error) error {
	return &ConsumerError{
		Queue:       c.queue,
		ConsumerTag: c.consumerTag,
		Op:          op,
		Err:         err,
		Timestamp:   time.Now(),
	}
}
