// Package protocol turns raw transport frames into routed signalling events
// and routed messages back into frames.
//
// Listen on a protocol for messages; the message type is the channel name:
//
//	p.On(event.Type("config"), func(m domain.Message) { ... })
//
// The transport itself carries two extra channels, reachable through the
// protocol as well:
//
//	event.Message  every decoded inbound message
//	event.Out      every message after it was handed to the transport
//
// Inbound messages are domain.Generic records carrying the whole frame;
// narrow them with messages.As.
package protocol

import (
	"github.com/dkeye/Signalling/internal/core"
	"github.com/dkeye/Signalling/internal/domain"
	"github.com/dkeye/Signalling/internal/event"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SignallingVersion is the signalling protocol revision implemented here.
const SignallingVersion = "1.3.0"

type Protocol struct {
	transport core.Transport
	events    event.Emitter
	log       zerolog.Logger
}

type Option func(*Protocol)

func WithLogger(l zerolog.Logger) Option {
	return func(p *Protocol) { p.log = l }
}

// New binds the protocol to t for its whole lifetime and installs the
// inbound handler on it.
func New(t core.Transport, opts ...Option) *Protocol {
	p := &Protocol{
		transport: t,
		log:       log.Logger.With().Str("module", "protocol").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	t.SetOnMessage(p.handleMessage)
	return p
}

func (p *Protocol) Version() string { return SignallingVersion }

// On subscribes fn to ch. The message and out channels are served by the
// transport, every other channel by the protocol.
func (p *Protocol) On(ch event.Channel, fn event.Listener) event.Subscription {
	return p.sourceFor(ch).On(ch, fn)
}

func (p *Protocol) Off(sub event.Subscription) bool {
	return p.sourceFor(sub.Channel()).Off(sub)
}

func (p *Protocol) ListenerCount(ch event.Channel) int {
	return p.sourceFor(ch).ListenerCount(ch)
}

func (p *Protocol) sourceFor(ch event.Channel) core.EventSource {
	if ch == event.Message || ch == event.Out {
		return p.transport
	}
	return &p.events
}

// Connect asks the transport to connect to url.
func (p *Protocol) Connect(url string) bool {
	return p.transport.Connect(url)
}

// Disconnect asks the transport to drop any connection it has.
func (p *Protocol) Disconnect(code int, reason string) {
	p.transport.Disconnect(code, reason)
}

// IsConnected reports whether the transport can send and receive.
func (p *Protocol) IsConnected() bool {
	return p.transport.IsConnected()
}

// SendMessage encodes msg, hands it to the transport and then announces it on
// the out channel. Transmission failures are the transport's concern.
func (p *Protocol) SendMessage(msg domain.Message) error {
	text, err := Encode(msg)
	if err != nil {
		return err
	}
	p.transport.SendMessage(text)
	p.transport.Emit(event.Out, msg)
	p.log.Debug().Str("type", string(msg.MessageType())).RawJSON("frame", []byte(text)).Msg("protocol sent")
	return nil
}

func (p *Protocol) handleMessage(raw string) {
	msg, err := Decode(raw)
	if err != nil {
		p.log.Error().Err(err).Str("raw", raw).Msg("error parsing message")
		return
	}
	p.log.Debug().Str("type", string(msg.MessageType())).RawJSON("frame", []byte(raw)).Msg("protocol received")

	p.transport.Emit(event.Message, msg)
	if !p.events.Emit(event.Type(msg.MessageType()), msg) {
		p.events.Emit(event.Unhandled, msg)
	}
}
