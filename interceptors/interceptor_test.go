package interceptors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/glimte/skillbridge/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testRequest() *contracts.Request {
	return &contracts.Request{
		Directive: contracts.Directive{
			Header: contracts.Header{
				MessageID:        "msg-1",
				Namespace:        "Alexa.PowerController",
				Name:             "TurnOn",
				PayloadVersion:   contracts.PayloadVersion3,
				CorrelationToken: "corr-1",
			},
			Endpoint: &contracts.Endpoint{
				Scope:      contracts.Bearer{Type: contracts.CredentialTypeBearer, Token: "never-log-me"},
				EndpointID: "light#kitchen",
				Cookie:     json.RawMessage(`{}`),
			},
			Payload: &contracts.Payload{
				Extra: map[string]json.RawMessage{"brightness": json.RawMessage(`42`)},
			},
		},
	}
}

// Mock handler
type mockHandler struct {
	mock.Mock
}

func (m *mockHandler) Handle(ctx context.Context, req *contracts.Request) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(json.RawMessage)
	return resp, args.Error(1)
}

type mockMetricsCollector struct {
	mock.Mock
}

func (m *mockMetricsCollector) IncrementDirectiveCount(directiveType string) {
	m.Called(directiveType)
}

func (m *mockMetricsCollector) RecordProcessingTime(directiveType string, duration time.Duration) {
	m.Called(directiveType, duration)
}

func (m *mockMetricsCollector) IncrementErrorCount(directiveType string, errorType string) {
	m.Called(directiveType, errorType)
}

func TestInterceptorChain(t *testing.T) {
	t.Run("empty chain calls the final handler", func(t *testing.T) {
		chain := NewInterceptorChain(nil)
		req := testRequest()

		handler := &mockHandler{}
		handler.On("Handle", mock.Anything, req).Return(json.RawMessage(`{"ok":true}`), nil)

		resp, err := chain.Execute(context.Background(), req, handler)
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(resp))
		handler.AssertExpectations(t)
	})

	t.Run("interceptors run in the order they were added", func(t *testing.T) {
		var order []string
		record := func(name string) Interceptor {
			return NewInterceptorFunc(name, func(ctx context.Context, req *contracts.Request, next DirectiveHandler) (json.RawMessage, error) {
				order = append(order, name+":before")
				resp, err := next.Handle(ctx, req)
				order = append(order, name+":after")
				return resp, err
			})
		}

		chain := NewInterceptorChain(nil).Add(record("first")).Add(record("second"))
		final := DirectiveHandlerFunc(func(ctx context.Context, req *contracts.Request) (json.RawMessage, error) {
			order = append(order, "handler")
			return json.RawMessage(`{}`), nil
		})

		_, err := chain.Execute(context.Background(), testRequest(), final)
		require.NoError(t, err)
		assert.Equal(t, []string{"first:before", "second:before", "handler", "second:after", "first:after"}, order)
		assert.Equal(t, []string{"first", "second"}, chain.Names())
	})

	t.Run("an interceptor can short circuit", func(t *testing.T) {
		blocked := errors.New("blocked")
		chain := NewInterceptorChain(nil).Add(NewInterceptorFunc("block", func(ctx context.Context, req *contracts.Request, next DirectiveHandler) (json.RawMessage, error) {
			return nil, blocked
		}))

		handler := &mockHandler{}
		_, err := chain.Execute(context.Background(), testRequest(), handler)
		assert.ErrorIs(t, err, blocked)
		handler.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
	})
}

func TestLoggingInterceptor(t *testing.T) {
	t.Run("logs header metadata but never the credential", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		interceptor := NewLoggingInterceptor(logger)

		final := DirectiveHandlerFunc(func(ctx context.Context, req *contracts.Request) (json.RawMessage, error) {
			return json.RawMessage(`{"ok":true}`), nil
		})

		resp, err := interceptor.Intercept(context.Background(), testRequest(), final)
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(resp))

		out := buf.String()
		assert.Contains(t, out, `"messageId":"msg-1"`)
		assert.Contains(t, out, `"correlationToken":"corr-1"`)
		assert.Contains(t, out, `"brightness"`)
		assert.Contains(t, out, "directive processed")
		assert.NotContains(t, out, "never-log-me")
	})

	t.Run("logs failures at error level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		interceptor := NewLoggingInterceptor(logger)

		final := DirectiveHandlerFunc(func(ctx context.Context, req *contracts.Request) (json.RawMessage, error) {
			return nil, errors.New("backend unreachable")
		})

		_, err := interceptor.Intercept(context.Background(), testRequest(), final)
		require.Error(t, err)
		assert.Contains(t, buf.String(), `"level":"ERROR"`)
		assert.Contains(t, buf.String(), "backend unreachable")
	})

	t.Run("nil logger falls back to the default", func(t *testing.T) {
		assert.NotNil(t, NewLoggingInterceptor(nil).logger)
		assert.Equal(t, "LoggingInterceptor", NewLoggingInterceptor(nil).Name())
	})
}

func TestMetricsInterceptor(t *testing.T) {
	t.Run("records count and duration on success", func(t *testing.T) {
		collector := &mockMetricsCollector{}
		collector.On("IncrementDirectiveCount", "Alexa.PowerController.TurnOn").Return()
		collector.On("RecordProcessingTime", "Alexa.PowerController.TurnOn", mock.AnythingOfType("time.Duration")).Return()

		interceptor := NewMetricsInterceptor(collector, nil)
		final := DirectiveHandlerFunc(func(ctx context.Context, req *contracts.Request) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		})

		_, err := interceptor.Intercept(context.Background(), testRequest(), final)
		require.NoError(t, err)
		collector.AssertExpectations(t)
		collector.AssertNotCalled(t, "IncrementErrorCount", mock.Anything, mock.Anything)
	})

	t.Run("records the classified error type on failure", func(t *testing.T) {
		collector := &mockMetricsCollector{}
		collector.On("IncrementDirectiveCount", mock.Anything).Return()
		collector.On("RecordProcessingTime", mock.Anything, mock.Anything).Return()
		collector.On("IncrementErrorCount", "Alexa.PowerController.TurnOn", "TransportFailure").Return()

		interceptor := NewMetricsInterceptor(collector, func(error) string { return "TransportFailure" })
		final := DirectiveHandlerFunc(func(ctx context.Context, req *contracts.Request) (json.RawMessage, error) {
			return nil, errors.New("dial tcp: refused")
		})

		_, err := interceptor.Intercept(context.Background(), testRequest(), final)
		require.Error(t, err)
		collector.AssertExpectations(t)
	})

	t.Run("defaults the error type", func(t *testing.T) {
		collector := &mockMetricsCollector{}
		collector.On("IncrementDirectiveCount", mock.Anything).Return()
		collector.On("RecordProcessingTime", mock.Anything, mock.Anything).Return()
		collector.On("IncrementErrorCount", mock.Anything, "processing_error").Return()

		interceptor := NewMetricsInterceptor(collector, nil)
		final := DirectiveHandlerFunc(func(ctx context.Context, req *contracts.Request) (json.RawMessage, error) {
			return nil, errors.New("boom")
		})

		_, _ = interceptor.Intercept(context.Background(), testRequest(), final)
		collector.AssertExpectations(t)
	})
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := NewRecoveryInterceptor(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	final := DirectiveHandlerFunc(func(ctx context.Context, req *contracts.Request) (json.RawMessage, error) {
		panic("nil map write")
	})

	resp, err := interceptor.Intercept(context.Background(), testRequest(), final)
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil map write")
	assert.Contains(t, err.Error(), "msg-1")
}

func TestDefaultInterceptorChainBuilder(t *testing.T) {
	chain := NewDefaultInterceptorChainBuilder(nil).
		WithRecovery().
		WithLogging().
		WithMetrics(NewCounters(), nil).
		Build()

	assert.Equal(t, []string{"RecoveryInterceptor", "LoggingInterceptor", "MetricsInterceptor"}, chain.Names())
}
