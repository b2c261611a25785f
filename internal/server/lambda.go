package server

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambda/messages"
)

// LambdaHandler adapts handler to the function runtime. Failures are returned as
// messages.InvokeResponse_Error so the runtime reports the error kind as errorType
// instead of the Go type name.
func LambdaHandler(handler DirectiveHandler, classify func(error) string) func(context.Context, json.RawMessage) (json.RawMessage, error) {
	return func(ctx context.Context, event json.RawMessage) (json.RawMessage, error) {
		resp, err := handler.HandleDirective(ctx, event)
		if err != nil {
			return nil, messages.InvokeResponse_Error{
				Type:    classify(err),
				Message: err.Error(),
			}
		}
		return resp, nil
	}
}
