package contracts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(ErrorTypeInvalidCredential, "msg-id", "corr-token", "invalid_grant")

	encoded, err := json.Marshal(resp)
	require.NoError(t, err)

	assert.JSONEq(t, `{
	  "event": {
	    "header": {
	      "namespace": "Alexa",
	      "name": "ErrorResponse",
	      "messageId": "msg-id",
	      "correlationToken": "corr-token",
	      "payloadVersion": "3"
	    },
	    "payload": {
	      "type": "INVALID_AUTHORIZATION_CREDENTIAL",
	      "message": "invalid_grant"
	    }
	  }
	}`, string(encoded))
}

func TestErrorTypes(t *testing.T) {
	assert.Equal(t, "INVALID_AUTHORIZATION_CREDENTIAL", string(ErrorTypeInvalidCredential))
	assert.Equal(t, "INTERNAL_ERROR", string(ErrorTypeInternal))
}
