package core

import "github.com/dkeye/Signalling/internal/domain"

type SessionID string

// Signaller is the outbound half of a session, as seen by the service.
type Signaller interface {
	SendMessage(msg domain.Message) error
	Disconnect(code int, reason string)
}
