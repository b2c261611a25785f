package interceptors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/glimte/skillbridge/contracts"
)

// DirectiveHandler produces the response for a parsed directive
type DirectiveHandler interface {
	Handle(ctx context.Context, req *contracts.Request) (json.RawMessage, error)
}

// DirectiveHandlerFunc is a function adapter for DirectiveHandler
type DirectiveHandlerFunc func(ctx context.Context, req *contracts.Request) (json.RawMessage, error)

// Handle implements DirectiveHandler
func (f DirectiveHandlerFunc) Handle(ctx context.Context, req *contracts.Request) (json.RawMessage, error) {
	return f(ctx, req)
}

// Interceptor processes a directive before it reaches the final handler
type Interceptor interface {
	// Intercept processes a directive and calls the next handler in the chain
	Intercept(ctx context.Context, req *contracts.Request, next DirectiveHandler) (json.RawMessage, error)

	// Name returns the interceptor name for logging and debugging
	Name() string
}

// InterceptorFunc is a function adapter for Interceptor
type InterceptorFunc struct {
	name string
	fn   func(ctx context.Context, req *contracts.Request, next DirectiveHandler) (json.RawMessage, error)
}

// NewInterceptorFunc creates a new function-based interceptor
func NewInterceptorFunc(name string, fn func(ctx context.Context, req *contracts.Request, next DirectiveHandler) (json.RawMessage, error)) *InterceptorFunc {
	return &InterceptorFunc{name: name, fn: fn}
}

// Intercept implements Interceptor
func (i *InterceptorFunc) Intercept(ctx context.Context, req *contracts.Request, next DirectiveHandler) (json.RawMessage, error) {
	return i.fn(ctx, req, next)
}

// Name implements Interceptor
func (i *InterceptorFunc) Name() string {
	return i.name
}

// InterceptorChain manages a chain of interceptors
type InterceptorChain struct {
	interceptors []Interceptor
	logger       *slog.Logger
}

// NewInterceptorChain creates a new interceptor chain
func NewInterceptorChain(logger *slog.Logger) *InterceptorChain {
	if logger == nil {
		logger = slog.Default()
	}

	return &InterceptorChain{
		interceptors: make([]Interceptor, 0),
		logger:       logger,
	}
}

// Add adds an interceptor to the chain
func (c *InterceptorChain) Add(interceptor Interceptor) *InterceptorChain {
	c.interceptors = append(c.interceptors, interceptor)
	return c
}

// Names returns the interceptor names in execution order
func (c *InterceptorChain) Names() []string {
	names := make([]string, len(c.interceptors))
	for i, interceptor := range c.interceptors {
		names[i] = interceptor.Name()
	}
	return names
}

// Execute executes the interceptor chain
func (c *InterceptorChain) Execute(ctx context.Context, req *contracts.Request, finalHandler DirectiveHandler) (json.RawMessage, error) {
	if len(c.interceptors) == 0 {
		return finalHandler.Handle(ctx, req)
	}

	// Build the chain in reverse order
	handler := finalHandler
	for i := len(c.interceptors) - 1; i >= 0; i-- {
		interceptor := c.interceptors[i]
		currentHandler := handler
		handler = DirectiveHandlerFunc(func(ctx context.Context, req *contracts.Request) (json.RawMessage, error) {
			return interceptor.Intercept(ctx, req, currentHandler)
		})
	}

	return handler.Handle(ctx, req)
}

// Built-in interceptors

// LoggingInterceptor logs directive processing. Credentials are never logged.
type LoggingInterceptor struct {
	logger *slog.Logger
}

// NewLoggingInterceptor creates a new logging interceptor
func NewLoggingInterceptor(logger *slog.Logger) *LoggingInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return &LoggingInterceptor{logger: logger}
}

// Intercept implements Interceptor
func (i *LoggingInterceptor) Intercept(ctx context.Context, req *contracts.Request, next DirectiveHandler) (json.RawMessage, error) {
	start := time.Now()
	header := req.Directive.Header

	i.logger.Info("processing directive",
		"messageId", header.MessageID,
		"namespace", header.Namespace,
		"name", header.Name,
		"correlationToken", header.CorrelationToken,
	)
	if payload := req.Directive.Payload; payload != nil && i.logger.Enabled(ctx, slog.LevelDebug) {
		i.logger.Debug("directive payload",
			"messageId", header.MessageID,
			"extraKeys", payload.ExtraKeys(),
		)
	}

	resp, err := next.Handle(ctx, req)
	duration := time.Since(start)

	if err != nil {
		i.logger.Error("directive processing failed",
			"messageId", header.MessageID,
			"namespace", header.Namespace,
			"name", header.Name,
			"duration", duration,
			"error", err,
		)
	} else {
		i.logger.Info("directive processed",
			"messageId", header.MessageID,
			"namespace", header.Namespace,
			"name", header.Name,
			"duration", duration,
			"responseBytes", len(resp),
		)
	}

	return resp, err
}

// Name implements Interceptor
func (i *LoggingInterceptor) Name() string {
	return "LoggingInterceptor"
}

// MetricsInterceptor collects metrics about directive processing
type MetricsInterceptor struct {
	collector MetricsCollector
	classify  func(error) string
}

// MetricsCollector defines the interface for collecting metrics
type MetricsCollector interface {
	IncrementDirectiveCount(directiveType string)
	RecordProcessingTime(directiveType string, duration time.Duration)
	IncrementErrorCount(directiveType string, errorType string)
}

// NewMetricsInterceptor creates a new metrics interceptor. classify names the error
// type recorded for a failed directive; nil records every failure as
// "processing_error".
func NewMetricsInterceptor(collector MetricsCollector, classify func(error) string) *MetricsInterceptor {
	if classify == nil {
		classify = func(error) string { return "processing_error" }
	}
	return &MetricsInterceptor{collector: collector, classify: classify}
}

// Intercept implements Interceptor
func (i *MetricsInterceptor) Intercept(ctx context.Context, req *contracts.Request, next DirectiveHandler) (json.RawMessage, error) {
	start := time.Now()
	directiveType := DirectiveType(req)

	i.collector.IncrementDirectiveCount(directiveType)

	resp, err := next.Handle(ctx, req)
	duration := time.Since(start)

	i.collector.RecordProcessingTime(directiveType, duration)

	if err != nil {
		i.collector.IncrementErrorCount(directiveType, i.classify(err))
	}

	return resp, err
}

// Name implements Interceptor
func (i *MetricsInterceptor) Name() string {
	return "MetricsInterceptor"
}

// RecoveryInterceptor turns a panic in the rest of the chain into an error
type RecoveryInterceptor struct {
	logger *slog.Logger
}

// NewRecoveryInterceptor creates a new recovery interceptor
func NewRecoveryInterceptor(logger *slog.Logger) *RecoveryInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return &RecoveryInterceptor{logger: logger}
}

// Intercept implements Interceptor
func (i *RecoveryInterceptor) Intercept(ctx context.Context, req *contracts.Request, next DirectiveHandler) (resp json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("panic while processing directive",
				"messageId", req.Directive.Header.MessageID,
				"panic", r,
			)
			resp = nil
			err = fmt.Errorf("panic while processing directive %s: %v", req.Directive.Header.MessageID, r)
		}
	}()

	return next.Handle(ctx, req)
}

// Name implements Interceptor
func (i *RecoveryInterceptor) Name() string {
	return "RecoveryInterceptor"
}

// DirectiveType returns the namespace-qualified directive name, e.g.
// "Alexa.PowerController.TurnOn"
func DirectiveType(req *contracts.Request) string {
	return req.Directive.Header.Namespace + "." + req.Directive.Header.Name
}

// Default interceptor chain builder

// DefaultInterceptorChainBuilder builds a common interceptor chain
type DefaultInterceptorChainBuilder struct {
	chain  *InterceptorChain
	logger *slog.Logger
}

// NewDefaultInterceptorChainBuilder creates a new builder
func NewDefaultInterceptorChainBuilder(logger *slog.Logger) *DefaultInterceptorChainBuilder {
	if logger == nil {
		logger = slog.Default()
	}

	return &DefaultInterceptorChainBuilder{
		chain:  NewInterceptorChain(logger),
		logger: logger,
	}
}

// WithRecovery adds recovery interceptor
func (b *DefaultInterceptorChainBuilder) WithRecovery() *DefaultInterceptorChainBuilder {
	b.chain.Add(NewRecoveryInterceptor(b.logger))
	return b
}

// WithLogging adds logging interceptor
func (b *DefaultInterceptorChainBuilder) WithLogging() *DefaultInterceptorChainBuilder {
	b.chain.Add(NewLoggingInterceptor(b.logger))
	return b
}

// WithMetrics adds metrics interceptor
func (b *DefaultInterceptorChainBuilder) WithMetrics(collector MetricsCollector, classify func(error) string) *DefaultInterceptorChainBuilder {
	b.chain.Add(NewMetricsInterceptor(collector, classify))
	return b
}

// WithCustom adds a custom interceptor
func (b *DefaultInterceptorChainBuilder) WithCustom(interceptor Interceptor) *DefaultInterceptorChainBuilder {
	b.chain.Add(interceptor)
	return b
}

// Build returns the built interceptor chain
func (b *DefaultInterceptorChainBuilder) Build() *InterceptorChain {
	return b.chain
}
