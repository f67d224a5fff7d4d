package app

import (
	"context"

	"github.com/dkeye/Signalling/internal/adapters/rtc"
	"github.com/dkeye/Signalling/internal/core"
	"github.com/dkeye/Signalling/internal/domain"
	"github.com/dkeye/Signalling/internal/event"
	"github.com/dkeye/Signalling/internal/messages"
	"github.com/dkeye/Signalling/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Close codes sent to peers, in the application range.
const (
	CloseReplaced = 4000
)

// MediaFactory builds the server side of a peer connection for one session.
type MediaFactory func(sid core.SessionID) (core.MediaConnection, error)

type Options struct {
	ICEServers []string
	RateLimit  rate.Limit
	RateBurst  int
	NewMedia   MediaFactory
	Logger     zerolog.Logger
}

// Service answers the signalling traffic of every connected session.
type Service struct {
	Registry *Registry
	Catalog  *messages.Registry

	opts Options
	log  zerolog.Logger
}

func NewService(opts Options) *Service {
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Inf
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 1
	}
	if opts.NewMedia == nil {
		servers := opts.ICEServers
		opts.NewMedia = func(sid core.SessionID) (core.MediaConnection, error) {
			return rtc.NewWebRTCConnection(rtc.DefaultWebRTCConfig(servers...), sid)
		}
	}
	l := opts.Logger.With().Str("module", "app.service").Logger()
	return &Service{
		Registry: NewRegistry(opts.Logger),
		Catalog:  messages.Default(),
		opts:     opts,
		log:      l,
	}
}

// Attach puts a protocol on t for session sid, greets the peer with config
// and identify, and announces the new player count. Call Detach when the
// transport goes away.
func (s *Service) Attach(ctx context.Context, sid core.SessionID, t core.Transport) *protocol.Protocol {
	l := s.log.With().Str("sid", string(sid)).Logger()
	limited := limitInbound(t, s.opts.RateLimit, s.opts.RateBurst, l)
	p := protocol.New(limited, protocol.WithLogger(l))

	sessCtx, cancel := context.WithCancel(ctx)
	s.bindHandlers(sessCtx, sid, p, l)

	if prev, replaced := s.Registry.Bind(sid, p, cancel); replaced {
		prev.Disconnect(CloseReplaced, "replaced by a newer connection")
	}

	s.send(p, l, messages.NewConfig(s.peerConnectionOptions(), protocol.SignallingVersion))
	s.send(p, l, messages.NewIdentify())
	s.broadcastPlayerCount()
	return p
}

// Detach forgets the session if p is still its current protocol.
func (s *Service) Detach(sid core.SessionID, p *protocol.Protocol) {
	if s.Registry.Unbind(sid, p) {
		s.broadcastPlayerCount()
	}
}

func (s *Service) SessionCount() int { return s.Registry.Count() }

func (s *Service) peerConnectionOptions() messages.PeerConnectionOptions {
	if len(s.opts.ICEServers) == 0 {
		return messages.PeerConnectionOptions{}
	}
	return messages.PeerConnectionOptions{
		ICEServers: []webrtc.ICEServer{{URLs: s.opts.ICEServers}},
	}
}

func (s *Service) bindHandlers(ctx context.Context, sid core.SessionID, p *protocol.Protocol, l zerolog.Logger) {
	p.On(event.Type(messages.TypePing), func(m domain.Message) {
		ping, err := messages.As[messages.Ping](m)
		if err != nil {
			l.Error().Err(err).Msg("bad ping payload")
			return
		}
		s.send(p, l, messages.NewPong(ping.Time))
	})

	p.On(event.Type(messages.TypeEndpointID), func(m domain.Message) {
		s.handleEndpointID(sid, p, l, m)
	})

	p.On(event.Type(messages.TypeOffer), func(m domain.Message) {
		s.handleOffer(ctx, sid, p, l, m)
	})

	p.On(event.Type(messages.TypeIceCandidate), func(m domain.Message) {
		s.handleCandidate(sid, l, m)
	})

	p.On(event.Unhandled, func(m domain.Message) {
		l.Warn().Str("type", string(m.MessageType())).Msg("unknown signal")
	})
}

func (s *Service) handleEndpointID(sid core.SessionID, p *protocol.Protocol, l zerolog.Logger, m domain.Message) {
	msg, err := messages.As[messages.EndpointID](m)
	if err != nil {
		l.Error().Err(err).Msg("bad endpointId payload")
		return
	}
	ep, err := domain.NewEndpoint(msg.ID, msg.ProtocolVersion)
	if err != nil {
		l.Warn().Err(err).Str("endpoint", msg.ID).Msg("rejected endpoint id")
		return
	}
	s.Registry.SetEndpoint(sid, ep)
	s.send(p, l, messages.NewEndpointIDConfirm(string(ep.ID)))
}

func (s *Service) handleOffer(ctx context.Context, sid core.SessionID, p *protocol.Protocol, l zerolog.Logger, m domain.Message) {
	offer, err := messages.As[messages.Offer](m)
	if err != nil {
		l.Error().Err(err).Msg("bad offer payload")
		return
	}

	mc, err := s.opts.NewMedia(sid)
	if err != nil {
		l.Error().Err(err).Msg("webrtc new pc")
		return
	}
	mc.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		s.send(p, l, messages.NewIceCandidate(ci))
	})
	mc.OnClosed(func() { s.Registry.ClearMedia(sid, mc) })

	if err := mc.Start(ctx); err != nil {
		l.Error().Err(err).Msg("webrtc start")
		mc.Close()
		return
	}
	answer, err := mc.ApplyOffer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP})
	if err != nil {
		l.Error().Err(err).Msg("webrtc apply offer")
		mc.Close()
		return
	}
	if !s.Registry.SetMedia(sid, mc) {
		mc.Close()
		return
	}
	s.send(p, l, messages.NewAnswer(answer.SDP))
}

func (s *Service) handleCandidate(sid core.SessionID, l zerolog.Logger, m domain.Message) {
	msg, err := messages.As[messages.IceCandidate](m)
	if err != nil {
		l.Error().Err(err).Msg("bad candidate payload")
		return
	}
	mc, ok := s.Registry.Media(sid)
	if !ok {
		l.Warn().Msg("candidate: no media connection")
		return
	}
	if err := mc.AddICECandidate(msg.Candidate); err != nil {
		l.Error().Err(err).Msg("add ice candidate")
	}
}

func (s *Service) broadcastPlayerCount() {
	peers := s.Registry.Signallers()
	msg := messages.NewPlayerCount(len(peers))
	for _, sig := range peers {
		if err := sig.SendMessage(msg); err != nil {
			s.log.Error().Err(err).Msg("broadcast playerCount")
		}
	}
}

func (s *Service) send(p *protocol.Protocol, l zerolog.Logger, msg domain.Message) {
	if err := p.SendMessage(msg); err != nil {
		l.Error().Err(err).Str("type", string(msg.MessageType())).Msg("send failed")
	}
}
