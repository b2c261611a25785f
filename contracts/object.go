package contracts

import (
	"bytes"
	"encoding/json"
	"errors"
)

var jsonNull = []byte("null")

// object is a decoded JSON object whose members are still raw. Keys are matched
// exactly, unlike struct decoding which folds case.
type object struct {
	path    string
	members map[string]json.RawMessage
}

func decodeObject(path string, data []byte) (*object, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, &FieldError{Path: path, Err: err}
	}
	if members == nil {
		return nil, &FieldError{Path: path}
	}
	return &object{path: path, members: members}, nil
}

func (o *object) child(name string) string {
	if o.path == "" {
		return name
	}
	return o.path + "." + name
}

// present reports whether the member exists and is not null
func (o *object) present(name string) bool {
	raw, ok := o.members[name]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), jsonNull)
}

// required decodes a member that must be present and non-null
func (o *object) required(name string, v any) error {
	if !o.present(name) {
		return &FieldError{Path: o.child(name)}
	}
	return o.decode(name, v)
}

// optional decodes a member when present; absent and null both leave v untouched
func (o *object) optional(name string, v any) (bool, error) {
	if !o.present(name) {
		return false, nil
	}
	return true, o.decode(name, v)
}

// raw returns a required member without decoding it. An explicit null is kept.
func (o *object) raw(name string) (json.RawMessage, error) {
	raw, ok := o.members[name]
	if !ok {
		return nil, &FieldError{Path: o.child(name)}
	}
	return raw, nil
}

func (o *object) decode(name string, v any) error {
	path := o.child(name)
	var err error
	if d, ok := v.(objectDecoder); ok {
		err = d.decodeAt(path, o.members[name])
	} else {
		err = json.Unmarshal(o.members[name], v)
	}
	if err == nil {
		return nil
	}

	var lit *LiteralError
	if errors.As(err, &lit) {
		if lit.Field == "" {
			lit.Field = path
		}
		return lit
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe
	}
	return &FieldError{Path: path, Err: err}
}

// objectDecoder is implemented by nested types that report errors with their full path
type objectDecoder interface {
	decodeAt(path string, data []byte) error
}
