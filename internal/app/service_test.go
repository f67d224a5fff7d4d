package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/Signalling/internal/core"
	"github.com/dkeye/Signalling/internal/domain"
	"github.com/dkeye/Signalling/internal/event"
	"github.com/dkeye/Signalling/internal/messages"
	"github.com/dkeye/Signalling/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type fakeTransport struct {
	event.Emitter

	mu        sync.Mutex
	onMessage func(string)
	sent      []string
	closeCode int
}

func (f *fakeTransport) Connect(string) bool { return true }
func (f *fakeTransport) Disconnect(code int, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCode = code
}
func (f *fakeTransport) IsConnected() bool { return true }
func (f *fakeTransport) SendMessage(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
}
func (f *fakeTransport) SetOnMessage(fn func(string)) { f.onMessage = fn }

func (f *fakeTransport) deliver(raw string) { f.onMessage(raw) }

// decoded returns every frame sent so far as generic records.
func (f *fakeTransport) decoded(t *testing.T) []domain.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Message, 0, len(f.sent))
	for _, raw := range f.sent {
		m, err := protocol.Decode(raw)
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

func narrow[T any](t *testing.T, m domain.Message) *T {
	t.Helper()
	v, err := messages.As[T](m)
	require.NoError(t, err)
	return v
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

type fakeMedia struct {
	offerSDP   string
	applyErr   error
	candidates []webrtc.ICECandidateInit
	onICE      func(webrtc.ICECandidateInit)
	onClosed   func()
	closed     bool
}

func (m *fakeMedia) Start(context.Context) error { return nil }
func (m *fakeMedia) Close() {
	m.closed = true
	if m.onClosed != nil {
		m.onClosed()
	}
}
func (m *fakeMedia) ApplyOffer(o webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	m.offerSDP = o.SDP
	if m.onICE != nil {
		m.onICE(webrtc.ICECandidateInit{Candidate: "candidate:local"})
	}
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}
func (m *fakeMedia) AddICECandidate(c webrtc.ICECandidateInit) error {
	m.candidates = append(m.candidates, c)
	return nil
}
func (m *fakeMedia) OnICECandidate(fn func(webrtc.ICECandidateInit)) { m.onICE = fn }
func (m *fakeMedia) OnClosed(fn func())                              { m.onClosed = fn }

func newTestService(media *fakeMedia) *Service {
	return NewService(Options{
		ICEServers: []string{"stun:stun.example.org:3478"},
		RateLimit:  rate.Inf,
		NewMedia: func(core.SessionID) (core.MediaConnection, error) {
			if media == nil {
				return nil, errors.New("no media")
			}
			return media, nil
		},
		Logger: zerolog.Nop(),
	})
}

func TestAttachGreetsPeer(t *testing.T) {
	svc := newTestService(nil)
	ft := &fakeTransport{}
	svc.Attach(context.Background(), "sid-1", ft)

	sent := ft.decoded(t)
	require.Len(t, sent, 3)

	cfg := narrow[messages.Config](t, sent[0])
	assert.Equal(t, protocol.SignallingVersion, cfg.ProtocolVersion)
	require.Len(t, cfg.PeerConnectionOptions.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.example.org:3478"}, cfg.PeerConnectionOptions.ICEServers[0].URLs)

	assert.Equal(t, messages.TypeIdentify, sent[1].MessageType())
	assert.Equal(t, messages.NewPlayerCount(1), narrow[messages.PlayerCount](t, sent[2]))
	assert.Equal(t, 1, svc.SessionCount())
}

func TestPingGetsPong(t *testing.T) {
	svc := newTestService(nil)
	ft := &fakeTransport{}
	svc.Attach(context.Background(), "sid-1", ft)
	ft.reset()

	ft.deliver(`{"type":"ping","time":1700000000123}`)

	sent := ft.decoded(t)
	require.Len(t, sent, 1)
	assert.Equal(t, messages.NewPong(1700000000123), narrow[messages.Pong](t, sent[0]))
}

func TestEndpointIDConfirmed(t *testing.T) {
	svc := newTestService(nil)
	ft := &fakeTransport{}
	svc.Attach(context.Background(), "sid-1", ft)
	ft.reset()

	ft.deliver(`{"type":"endpointId","id":"streamer1","protocolVersion":"1.3.0"}`)

	sent := ft.decoded(t)
	require.Len(t, sent, 1)
	assert.Equal(t, messages.NewEndpointIDConfirm("streamer1"), narrow[messages.EndpointIDConfirm](t, sent[0]))
	ep, ok := svc.Registry.Endpoint("sid-1")
	require.True(t, ok)
	assert.Equal(t, domain.EndpointID("streamer1"), ep.ID)
}

func TestEndpointIDKeepsUnknownFields(t *testing.T) {
	svc := newTestService(nil)
	ft := &fakeTransport{}
	svc.Attach(context.Background(), "sid-1", ft)
	ft.reset()

	ft.deliver(`{"type":"endpointId","id":"streamer1","protocolVersion":"1.3.0","payload":{"x":1}}`)

	sent := ft.decoded(t)
	require.Len(t, sent, 1)
	assert.Equal(t, "streamer1", narrow[messages.EndpointIDConfirm](t, sent[0]).CommittedID)
}

func TestPingWithForeignTimeGetsNoPong(t *testing.T) {
	svc := newTestService(nil)
	ft := &fakeTransport{}
	svc.Attach(context.Background(), "sid-1", ft)
	ft.reset()

	assert.NotPanics(t, func() { ft.deliver(`{"type":"ping","time":"soon"}`) })
	assert.Empty(t, ft.decoded(t))

	// the session is still served
	ft.deliver(`{"type":"ping","time":5}`)
	sent := ft.decoded(t)
	require.Len(t, sent, 1)
	assert.Equal(t, messages.NewPong(5), narrow[messages.Pong](t, sent[0]))
}

func TestEndpointIDRejected(t *testing.T) {
	svc := newTestService(nil)
	ft := &fakeTransport{}
	svc.Attach(context.Background(), "sid-1", ft)
	ft.reset()

	ft.deliver(`{"type":"endpointId","id":"  "}`)

	assert.Empty(t, ft.decoded(t))
	_, ok := svc.Registry.Endpoint("sid-1")
	assert.False(t, ok)
}

func TestUnknownTypeGetsNoReply(t *testing.T) {
	svc := newTestService(nil)
	ft := &fakeTransport{}
	svc.Attach(context.Background(), "sid-1", ft)
	ft.reset()

	ft.deliver(`{"type":"streamerList"}`)
	ft.deliver(`garbage`)
	assert.Empty(t, ft.decoded(t))
}

func TestOfferAnswerAndCandidates(t *testing.T) {
	media := &fakeMedia{}
	svc := newTestService(media)
	ft := &fakeTransport{}
	svc.Attach(context.Background(), "sid-1", ft)
	ft.reset()

	ft.deliver(`{"type":"offer","sdp":"v=0 offer"}`)

	assert.Equal(t, "v=0 offer", media.offerSDP)
	sent := ft.decoded(t)
	require.Len(t, sent, 2)
	assert.Equal(t, messages.NewIceCandidate(webrtc.ICECandidateInit{Candidate: "candidate:local"}), narrow[messages.IceCandidate](t, sent[0]))
	assert.Equal(t, messages.NewAnswer("v=0 answer"), narrow[messages.Answer](t, sent[1]))

	ft.deliver(`{"type":"iceCandidate","candidate":{"candidate":"candidate:remote","sdpMid":"0","sdpMLineIndex":0}}`)
	require.Len(t, media.candidates, 1)
	assert.Equal(t, "candidate:remote", media.candidates[0].Candidate)
}

func TestOfferFailureSendsNothing(t *testing.T) {
	media := &fakeMedia{applyErr: errors.New("bad sdp")}
	svc := newTestService(media)
	ft := &fakeTransport{}
	svc.Attach(context.Background(), "sid-1", ft)
	ft.reset()

	ft.deliver(`{"type":"offer","sdp":"nope"}`)

	assert.Empty(t, ft.decoded(t))
	assert.True(t, media.closed)
	_, ok := svc.Registry.Media("sid-1")
	assert.False(t, ok)
}

func TestCandidateWithoutMedia(t *testing.T) {
	svc := newTestService(nil)
	ft := &fakeTransport{}
	svc.Attach(context.Background(), "sid-1", ft)
	ft.reset()

	assert.NotPanics(t, func() {
		ft.deliver(`{"type":"iceCandidate","candidate":{"candidate":"candidate:remote"}}`)
	})
	assert.Empty(t, ft.decoded(t))
}

func TestDetachBroadcastsPlayerCount(t *testing.T) {
	svc := newTestService(nil)
	a, b := &fakeTransport{}, &fakeTransport{}
	svc.Attach(context.Background(), "sid-a", a)
	pb := svc.Attach(context.Background(), "sid-b", b)

	// a saw itself join, then b join
	sentA := a.decoded(t)
	assert.Equal(t, messages.NewPlayerCount(2), narrow[messages.PlayerCount](t, sentA[len(sentA)-1]))

	a.reset()
	svc.Detach("sid-b", pb)
	assert.Equal(t, 1, svc.SessionCount())
	sentA = a.decoded(t)
	require.Len(t, sentA, 1)
	assert.Equal(t, messages.NewPlayerCount(1), narrow[messages.PlayerCount](t, sentA[0]))

	a.reset()
	svc.Detach("sid-b", pb)
	assert.Empty(t, a.decoded(t), "second detach is a no-op")
}

func TestReattachReplacesSession(t *testing.T) {
	svc := newTestService(nil)
	first, second := &fakeTransport{}, &fakeTransport{}
	p1 := svc.Attach(context.Background(), "sid-1", first)
	svc.Attach(context.Background(), "sid-1", second)

	assert.Equal(t, CloseReplaced, first.closeCode)
	assert.Equal(t, 1, svc.SessionCount())

	svc.Detach("sid-1", p1)
	assert.Equal(t, 1, svc.SessionCount(), "stale protocol must not unbind the new session")
}

func TestInboundRateLimit(t *testing.T) {
	svc := NewService(Options{RateLimit: rate.Every(1 << 62), RateBurst: 2, Logger: zerolog.Nop()})
	ft := &fakeTransport{}
	svc.Attach(context.Background(), "sid-1", ft)
	ft.reset()

	for i := 0; i < 5; i++ {
		ft.deliver(`{"type":"ping","time":1}`)
	}
	assert.Len(t, ft.decoded(t), 2)
}
