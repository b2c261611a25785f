package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/glimte/skillbridge/contracts"
	"github.com/glimte/skillbridge/interceptors"
)

// SmartHomePath is where the backend accepts directives
const SmartHomePath = "/api/alexa/smart_home"

// HTTPDoer sends the forwarded directive. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Bridge forwards directives to the home automation backend and translates its
// answers. It is safe for concurrent use.
type Bridge struct {
	client     HTTPDoer
	endpoint   string
	classifier *Classifier
	chain      *interceptors.InterceptorChain
	logger     *slog.Logger
}

// BridgeOption configures the bridge
type BridgeOption func(*BridgeConfig)

// BridgeConfig holds configuration for the bridge
type BridgeConfig struct {
	Client        HTTPDoer
	Logger        *slog.Logger
	Chain         *interceptors.InterceptorChain
	MessageIDFunc func() string
}

// WithHTTPClient sets the client used to reach the backend
func WithHTTPClient(client HTTPDoer) BridgeOption {
	return func(c *BridgeConfig) {
		c.Client = client
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) BridgeOption {
	return func(c *BridgeConfig) {
		c.Logger = logger
	}
}

// WithInterceptorChain wraps forwarding in the given chain
func WithInterceptorChain(chain *interceptors.InterceptorChain) BridgeOption {
	return func(c *BridgeConfig) {
		c.Chain = chain
	}
}

// WithMessageID overrides the generator for synthesized event message IDs
func WithMessageID(fn func() string) BridgeOption {
	return func(c *BridgeConfig) {
		c.MessageIDFunc = fn
	}
}

// NewBridge creates a bridge forwarding to baseURL + SmartHomePath
func NewBridge(baseURL string, opts ...BridgeOption) (*Bridge, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base URL cannot be empty", ErrInvalidConfiguration)
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base URL: %v", ErrInvalidConfiguration, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: base URL must be http or https, got %q", ErrInvalidConfiguration, parsed.Scheme)
	}

	config := &BridgeConfig{
		Client: http.DefaultClient,
		Logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(config)
	}

	if config.Client == nil {
		return nil, fmt.Errorf("%w: client cannot be nil", ErrInvalidConfiguration)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Chain == nil {
		config.Chain = interceptors.NewInterceptorChain(config.Logger)
	}

	classifierOpts := []ClassifierOption{WithClassifierLogger(config.Logger)}
	if config.MessageIDFunc != nil {
		classifierOpts = append(classifierOpts, WithMessageIDFunc(config.MessageIDFunc))
	}

	return &Bridge{
		client:     config.Client,
		endpoint:   baseURL + SmartHomePath,
		classifier: NewClassifier(classifierOpts...),
		chain:      config.Chain,
		logger:     config.Logger,
	}, nil
}

// Endpoint returns the backend URL directives are posted to
func (b *Bridge) Endpoint() string {
	return b.endpoint
}

// HandleDirective parses a raw directive and returns the response for the assistant.
// Malformed directives fail before anything is sent.
func (b *Bridge) HandleDirective(ctx context.Context, raw []byte) (json.RawMessage, error) {
	req, err := contracts.ParseRequest(raw)
	if err != nil {
		b.logger.Warn("rejected malformed directive", "error", err, "bytes", len(raw))
		return nil, err
	}
	return b.Handle(ctx, req)
}

// Handle runs a parsed directive through the interceptor chain and forwards it
func (b *Bridge) Handle(ctx context.Context, req *contracts.Request) (json.RawMessage, error) {
	return b.chain.Execute(ctx, req, interceptors.DirectiveHandlerFunc(b.forward))
}

func (b *Bridge) forward(ctx context.Context, req *contracts.Request) (json.RawMessage, error) {
	directive := &req.Directive

	bearer, slot, err := directive.Credential()
	if err != nil {
		return nil, err
	}
	b.logger.Debug("resolved credential",
		"messageId", directive.Header.MessageID,
		"slot", slot,
	)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal directive: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "build request", URL: b.endpoint, Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+bearer.Token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: "send", URL: b.endpoint, Err: err}
	}
	defer resp.Body.Close()

	payload, readErr := io.ReadAll(resp.Body)
	b.logger.Debug("backend responded",
		"messageId", directive.Header.MessageID,
		"statusCode", resp.StatusCode,
		"bytes", len(payload),
	)

	return b.classifier.Classify(UpstreamResponse{
		StatusCode: resp.StatusCode,
		Body:       payload,
		ReadErr:    readErr,
	}, directive.Header.CorrelationToken)
}
