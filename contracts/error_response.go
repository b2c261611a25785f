package contracts

// ErrorType is the payload type of a synthesized error response
type ErrorType string

const (
	// ErrorTypeInvalidCredential tells the assistant the account link must be renewed
	ErrorTypeInvalidCredential ErrorType = "INVALID_AUTHORIZATION_CREDENTIAL"
	// ErrorTypeInternal reports a backend failure
	ErrorTypeInternal ErrorType = "INTERNAL_ERROR"
)

const (
	errorNamespace = "Alexa"
	errorName      = "ErrorResponse"
)

// ErrorResponse is the event returned in place of a backend reply the assistant could
// not understand
type ErrorResponse struct {
	Event ErrorEvent `json:"event"`
}

// ErrorEvent is the body of an ErrorResponse
type ErrorEvent struct {
	Header  ErrorHeader  `json:"header"`
	Payload ErrorPayload `json:"payload"`
}

// ErrorHeader is the header of a synthesized event
type ErrorHeader struct {
	Namespace        string         `json:"namespace"`
	Name             string         `json:"name"`
	MessageID        string         `json:"messageId"`
	CorrelationToken string         `json:"correlationToken"`
	PayloadVersion   PayloadVersion `json:"payloadVersion"`
}

// ErrorPayload describes the failure
type ErrorPayload struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

// NewErrorResponse builds an error event answering the directive identified by
// correlationToken. messageID must be fresh for every response.
func NewErrorResponse(errorType ErrorType, messageID, correlationToken, message string) *ErrorResponse {
	return &ErrorResponse{
		Event: ErrorEvent{
			Header: ErrorHeader{
				Namespace:        errorNamespace,
				Name:             errorName,
				MessageID:        messageID,
				CorrelationToken: correlationToken,
				PayloadVersion:   PayloadVersion3,
			},
			Payload: ErrorPayload{
				Type:    errorType,
				Message: message,
			},
		},
	}
}
