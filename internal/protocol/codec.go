package protocol

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/dkeye/Signalling/internal/domain"
)

var (
	// ErrMissingType is returned for frames without a non-empty string "type".
	ErrMissingType = errors.New("message has no type")
	ErrNilMessage  = errors.New("nil message")
)

var codec = sonic.ConfigStd

type envelope struct {
	Type *string `json:"type"`
}

// Decode parses one inbound frame into a domain.Generic holding every field
// of the frame. Only "type" is checked; handlers narrow the record with
// messages.As.
func Decode(raw string) (domain.Message, error) {
	var env envelope
	if err := codec.UnmarshalFromString(raw, &env); err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}
	if env.Type == nil || *env.Type == "" {
		return nil, ErrMissingType
	}

	var g domain.Generic
	if err := codec.UnmarshalFromString(raw, &g); err != nil {
		return nil, fmt.Errorf("decode %q frame: %w", *env.Type, err)
	}
	return g, nil
}

// Encode serializes msg to a text frame. Nil interfaces, nil records and nil
// pointers to message structs fail with ErrNilMessage.
func Encode(msg domain.Message) (string, error) {
	t, ok := messageType(msg)
	if !ok {
		return "", ErrNilMessage
	}
	text, err := codec.MarshalToString(msg)
	if err != nil {
		return "", fmt.Errorf("encode %q message: %w", t, err)
	}
	return text, nil
}

// messageType reads the type of msg without panicking on typed nils. Message
// structs embed domain.Base by value, so a nil pointer to one panics inside
// MessageType.
func messageType(msg domain.Message) (t domain.MessageType, ok bool) {
	switch m := msg.(type) {
	case nil:
		return "", false
	case domain.Generic:
		if m == nil {
			return "", false
		}
	}
	defer func() {
		if recover() != nil {
			t, ok = "", false
		}
	}()
	return msg.MessageType(), true
}
