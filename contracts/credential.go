package contracts

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// CredentialType is the credential discriminator. The backend only supports bearer
// tokens, so "BearerToken" is the only accepted value.
type CredentialType string

const CredentialTypeBearer CredentialType = "BearerToken"

// UnmarshalJSON rejects every value except "BearerToken"
func (t *CredentialType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &LiteralError{Want: string(CredentialTypeBearer), Got: string(data)}
	}
	if CredentialType(s) != CredentialTypeBearer {
		return &LiteralError{Want: string(CredentialTypeBearer), Got: s}
	}
	*t = CredentialTypeBearer
	return nil
}

// MarshalJSON always writes the literal
func (t CredentialType) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(CredentialTypeBearer))
}

const redacted = "[REDACTED]"

// Bearer is an account-linking credential. Token is a secret: String, GoString and
// LogValue never render it. Only MarshalJSON does, for forwarding.
type Bearer struct {
	Type  CredentialType `json:"type"`
	Token string         `json:"token"`
}

// UnmarshalJSON implements json.Unmarshaler
func (b *Bearer) UnmarshalJSON(data []byte) error {
	return b.decodeAt("bearer", data)
}

func (b *Bearer) decodeAt(path string, data []byte) error {
	obj, err := decodeObject(path, data)
	if err != nil {
		return err
	}

	var out Bearer
	if err := obj.required("type", &out.Type); err != nil {
		return err
	}
	if err := obj.required("token", &out.Token); err != nil {
		return err
	}

	*b = out
	return nil
}

func (b Bearer) String() string {
	return fmt.Sprintf("Bearer{type: %s, token: %s}", CredentialTypeBearer, redacted)
}

func (b Bearer) GoString() string {
	return b.String()
}

// LogValue implements slog.LogValuer
func (b Bearer) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("type", string(CredentialTypeBearer)),
		slog.String("token", redacted),
	)
}

// CredentialSlot names the place a credential was found in a directive
type CredentialSlot string

const (
	SlotEndpointScope  CredentialSlot = "endpoint.scope"
	SlotPayloadScope   CredentialSlot = "payload.scope"
	SlotPayloadGrantee CredentialSlot = "payload.grantee"
)

// credentialSlots is consulted in order; the first populated slot wins.
var credentialSlots = []struct {
	slot   CredentialSlot
	lookup func(d *Directive) *Bearer
}{
	{SlotEndpointScope, func(d *Directive) *Bearer {
		if d.Endpoint == nil {
			return nil
		}
		return &d.Endpoint.Scope
	}},
	{SlotPayloadScope, func(d *Directive) *Bearer {
		if d.Payload == nil {
			return nil
		}
		return d.Payload.Scope
	}},
	{SlotPayloadGrantee, func(d *Directive) *Bearer {
		if d.Payload == nil {
			return nil
		}
		return d.Payload.Grantee
	}},
}

// Credential returns the bearer credential to authenticate the forwarded directive
// with, and the slot it came from.
func (d *Directive) Credential() (*Bearer, CredentialSlot, error) {
	for _, candidate := range credentialSlots {
		if bearer := candidate.lookup(d); bearer != nil {
			return bearer, candidate.slot, nil
		}
	}
	return nil, "", ErrMissingCredential
}
