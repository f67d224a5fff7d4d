package core

import (
	"github.com/dkeye/Signalling/internal/domain"
	"github.com/dkeye/Signalling/internal/event"
)

// EventSource is the listener surface a transport exposes for the
// general "message" and "out" channels.
type EventSource interface {
	On(ch event.Channel, fn event.Listener) event.Subscription
	Off(sub event.Subscription) bool
	Emit(ch event.Channel, msg domain.Message) bool
	ListenerCount(ch event.Channel) int
}

// Transport moves raw text frames in and out and owns connectivity state.
// Owned by the adapter; the protocol never closes it on its own.
type Transport interface {
	EventSource

	// Connect starts a connection attempt and reports whether it was initiated.
	Connect(url string) bool
	// Disconnect tears down any active connection. A zero code or empty
	// reason selects the transport default.
	Disconnect(code int, reason string)
	IsConnected() bool
	// SendMessage transmits a pre-serialized frame.
	SendMessage(text string)
	// SetOnMessage installs the single inbound handler, called once per frame.
	SetOnMessage(fn func(text string))
}
