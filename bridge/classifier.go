package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/glimte/skillbridge/contracts"
	"github.com/google/uuid"
)

const (
	defaultInvalidTokenMessage = "Invalid access token"
	defaultSystemErrorMessage  = "Unexpected error"
)

var errInvalidJSON = errors.New("body is not valid JSON")

// UpstreamResponse is what the backend answered. ReadErr is set when the body could
// not be read completely.
type UpstreamResponse struct {
	StatusCode int
	Body       []byte
	ReadErr    error
}

// Classifier turns a backend response into the directive response
type Classifier struct {
	logger       *slog.Logger
	newMessageID func() string
}

// ClassifierOption configures the classifier
type ClassifierOption func(*Classifier)

// WithClassifierLogger sets the logger
func WithClassifierLogger(logger *slog.Logger) ClassifierOption {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// WithMessageIDFunc overrides the generator for synthesized event message IDs
func WithMessageIDFunc(fn func() string) ClassifierOption {
	return func(c *Classifier) {
		c.newMessageID = fn
	}
}

// NewClassifier creates a new classifier
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		logger:       slog.Default(),
		newMessageID: func() string { return uuid.New().String() },
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Classify maps a backend response onto the response returned to the assistant.
// 401 and 403 become INVALID_AUTHORIZATION_CREDENTIAL events, 5xx become
// INTERNAL_ERROR events, and anything else is passed through when it is JSON.
func (c *Classifier) Classify(resp UpstreamResponse, correlationToken string) (json.RawMessage, error) {
	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		message := decodeMessage(resp, defaultInvalidTokenMessage)
		c.logger.Warn("Unauthorized error",
			"statusCode", code,
			"message", message,
			"correlationToken", correlationToken,
		)
		return c.errorEvent(contracts.ErrorTypeInvalidCredential, correlationToken, message)

	case code >= http.StatusInternalServerError:
		message := decodeMessage(resp, defaultSystemErrorMessage)
		c.logger.Error("System error",
			"statusCode", code,
			"message", message,
			"correlationToken", correlationToken,
		)
		return c.errorEvent(contracts.ErrorTypeInternal, correlationToken, message)

	default:
		if resp.ReadErr != nil {
			return nil, &UnparseableResponseError{StatusCode: code, Err: resp.ReadErr}
		}
		body := bytes.TrimSpace(resp.Body)
		if !json.Valid(body) {
			return nil, &UnparseableResponseError{StatusCode: code, Err: errInvalidJSON}
		}
		return json.RawMessage(body), nil
	}
}

func (c *Classifier) errorEvent(errorType contracts.ErrorType, correlationToken, message string) (json.RawMessage, error) {
	event := contracts.NewErrorResponse(errorType, c.newMessageID(), correlationToken, message)
	encoded, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseUnparseable, err)
	}
	return encoded, nil
}

// decodeMessage returns the body as text when it was read completely and is UTF-8
func decodeMessage(resp UpstreamResponse, fallback string) string {
	if resp.ReadErr != nil || !utf8.Valid(resp.Body) {
		return fallback
	}
	return string(resp.Body)
}
