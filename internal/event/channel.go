// Package event holds the listener registry shared by transports and the
// signalling protocol.
package event

import (
	"fmt"

	"github.com/dkeye/Signalling/internal/domain"
)

type kind uint8

const (
	kindMessage kind = iota + 1
	kindOut
	kindUnhandled
	kindType
)

// Reserved channel names.
const (
	NameMessage   = "message"
	NameOut       = "out"
	NameUnhandled = "unhandled"
)

// Channel is either one of the reserved channels or a per-message-type channel.
// Reserved channels never collide with a message type of the same spelling.
type Channel struct {
	kind    kind
	msgType domain.MessageType
}

var (
	// Message receives every decoded inbound message.
	Message = Channel{kind: kindMessage}
	// Out receives every message after it was handed to the transport.
	Out = Channel{kind: kindOut}
	// Unhandled receives inbound messages whose type channel has no listener.
	Unhandled = Channel{kind: kindUnhandled}
)

// Type returns the channel for messages of type t.
func Type(t domain.MessageType) Channel {
	return Channel{kind: kindType, msgType: t}
}

// Parse maps an event name to a channel. Reserved names win; anything else
// is treated as a message type.
func Parse(name string) Channel {
	switch name {
	case NameMessage:
		return Message
	case NameOut:
		return Out
	case NameUnhandled:
		return Unhandled
	default:
		return Type(domain.MessageType(name))
	}
}

// MessageType reports the message type of a type channel.
func (c Channel) MessageType() (domain.MessageType, bool) {
	if c.kind != kindType {
		return "", false
	}
	return c.msgType, true
}

func (c Channel) IsReserved() bool {
	return c.kind == kindMessage || c.kind == kindOut || c.kind == kindUnhandled
}

func (c Channel) String() string {
	switch c.kind {
	case kindMessage:
		return NameMessage
	case kindOut:
		return NameOut
	case kindUnhandled:
		return NameUnhandled
	case kindType:
		return fmt.Sprintf("type:%s", c.msgType)
	default:
		return "invalid"
	}
}
