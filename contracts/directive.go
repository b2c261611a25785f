package contracts

import (
	"encoding/json"
	"fmt"
	"sort"
)

// PayloadVersion is the directive payload version. Only version 3 is accepted.
type PayloadVersion string

const PayloadVersion3 PayloadVersion = "3"

// UnmarshalJSON rejects every value except "3"
func (v *PayloadVersion) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &LiteralError{Want: string(PayloadVersion3), Got: string(data)}
	}
	if PayloadVersion(s) != PayloadVersion3 {
		return &LiteralError{Want: string(PayloadVersion3), Got: s}
	}
	*v = PayloadVersion3
	return nil
}

// MarshalJSON always writes the literal, so a zero value still serializes validly
func (v PayloadVersion) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(PayloadVersion3))
}

// Request is the envelope delivered by the voice assistant for every invocation
type Request struct {
	Directive Directive `json:"directive"`
}

// Directive is a single smart home command
type Directive struct {
	Header   Header    `json:"header"`
	Endpoint *Endpoint `json:"endpoint,omitempty"`
	Payload  *Payload  `json:"payload,omitempty"`
}

// Header identifies the directive. Namespace and Name are not interpreted.
type Header struct {
	MessageID        string         `json:"messageId"`
	Namespace        string         `json:"namespace"`
	Name             string         `json:"name"`
	PayloadVersion   PayloadVersion `json:"payloadVersion"`
	CorrelationToken string         `json:"correlationToken"`
}

// Endpoint is present when the directive targets a specific device
type Endpoint struct {
	Scope      Bearer          `json:"scope"`
	EndpointID string          `json:"endpointId"`
	Cookie     json.RawMessage `json:"cookie"`
}

// Payload carries the optional account credentials and whatever else the directive
// needs. Members other than grantee and scope are kept raw in Extra and forwarded
// without being looked at.
type Payload struct {
	Grantee *Bearer
	Scope   *Bearer
	Extra   map[string]json.RawMessage
}

// ParseRequest strictly decodes an inbound directive. Every failure wraps
// ErrMalformedRequest.
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := req.decodeAt("", data); err != nil {
		return nil, err
	}
	return &req, nil
}

// UnmarshalJSON implements json.Unmarshaler with the same rules as ParseRequest
func (r *Request) UnmarshalJSON(data []byte) error {
	return r.decodeAt("", data)
}

func (r *Request) decodeAt(path string, data []byte) error {
	obj, err := decodeObject(path, data)
	if err != nil {
		return err
	}
	var directive Directive
	if err := obj.required("directive", &directive); err != nil {
		return err
	}
	r.Directive = directive
	return nil
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Directive) UnmarshalJSON(data []byte) error {
	return d.decodeAt("directive", data)
}

func (d *Directive) decodeAt(path string, data []byte) error {
	obj, err := decodeObject(path, data)
	if err != nil {
		return err
	}

	var out Directive
	if err := obj.required("header", &out.Header); err != nil {
		return err
	}

	var endpoint Endpoint
	ok, err := obj.optional("endpoint", &endpoint)
	if err != nil {
		return err
	}
	if ok {
		out.Endpoint = &endpoint
	}

	var payload Payload
	ok, err = obj.optional("payload", &payload)
	if err != nil {
		return err
	}
	if ok {
		out.Payload = &payload
	}

	*d = out
	return nil
}

// UnmarshalJSON implements json.Unmarshaler
func (h *Header) UnmarshalJSON(data []byte) error {
	return h.decodeAt("header", data)
}

func (h *Header) decodeAt(path string, data []byte) error {
	obj, err := decodeObject(path, data)
	if err != nil {
		return err
	}

	var out Header
	fields := []struct {
		name string
		dst  any
	}{
		{"messageId", &out.MessageID},
		{"namespace", &out.Namespace},
		{"name", &out.Name},
		{"payloadVersion", &out.PayloadVersion},
		{"correlationToken", &out.CorrelationToken},
	}
	for _, f := range fields {
		if err := obj.required(f.name, f.dst); err != nil {
			return err
		}
	}

	*h = out
	return nil
}

// UnmarshalJSON implements json.Unmarshaler
func (e *Endpoint) UnmarshalJSON(data []byte) error {
	return e.decodeAt("endpoint", data)
}

func (e *Endpoint) decodeAt(path string, data []byte) error {
	obj, err := decodeObject(path, data)
	if err != nil {
		return err
	}

	var out Endpoint
	if err := obj.required("scope", &out.Scope); err != nil {
		return err
	}
	if err := obj.required("endpointId", &out.EndpointID); err != nil {
		return err
	}
	cookie, err := obj.raw("cookie")
	if err != nil {
		return err
	}
	out.Cookie = append(json.RawMessage(nil), cookie...)

	*e = out
	return nil
}

// UnmarshalJSON implements json.Unmarshaler
func (p *Payload) UnmarshalJSON(data []byte) error {
	return p.decodeAt("payload", data)
}

func (p *Payload) decodeAt(path string, data []byte) error {
	obj, err := decodeObject(path, data)
	if err != nil {
		return err
	}

	var out Payload
	var grantee, scope Bearer
	ok, err := obj.optional("grantee", &grantee)
	if err != nil {
		return err
	}
	if ok {
		out.Grantee = &grantee
	}
	ok, err = obj.optional("scope", &scope)
	if err != nil {
		return err
	}
	if ok {
		out.Scope = &scope
	}

	for key, raw := range obj.members {
		if key == "grantee" || key == "scope" {
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]json.RawMessage)
		}
		out.Extra[key] = append(json.RawMessage(nil), raw...)
	}

	*p = out
	return nil
}

// MarshalJSON writes the credentials next to the extra members. Absent credentials
// are omitted.
func (p Payload) MarshalJSON() ([]byte, error) {
	members := make(map[string]json.RawMessage, len(p.Extra)+2)
	for key, raw := range p.Extra {
		members[key] = raw
	}
	for _, slot := range []struct {
		name   string
		bearer *Bearer
	}{
		{"grantee", p.Grantee},
		{"scope", p.Scope},
	} {
		if slot.bearer == nil {
			continue
		}
		encoded, err := json.Marshal(slot.bearer)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload %s: %w", slot.name, err)
		}
		members[slot.name] = encoded
	}
	return json.Marshal(members)
}

// ExtraKeys returns the names of the uninterpreted payload members in sorted order
func (p *Payload) ExtraKeys() []string {
	keys := make([]string, 0, len(p.Extra))
	for key := range p.Extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
