// Package rabbitmq serves directives over RabbitMQ request/reply.
//
// ConnectionManager owns the broker connection and reconnects with backoff when it
// drops. Consumer reads directives from a durable queue, hands each body to a
// DirectiveHandler and publishes the result to the delivery's ReplyTo queue with the
// same CorrelationId. Failures are replied with the x-error-type and x-error-message
// headers set.
package rabbitmq
