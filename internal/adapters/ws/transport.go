// Package ws implements the signalling transport over gorilla/websocket.
package ws

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Signalling/internal/core"
	"github.com/dkeye/Signalling/internal/event"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ReadLimit        int64
	PingPeriod       time.Duration
	WriteWait        time.Duration
	SendBuffer       int
	HandshakeTimeout time.Duration
	Header           http.Header
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:        32768,
		PingPeriod:       54 * time.Second,
		WriteWait:        5 * time.Second,
		SendBuffer:       32,
		HandshakeTimeout: 10 * time.Second,
	}
}

var _ core.Transport = (*Transport)(nil)

type Option func(*Transport)

func WithOptions(o Options) Option {
	return func(t *Transport) { t.opts = o }
}

func WithLogger(l zerolog.Logger) Option {
	return func(t *Transport) { t.log = l }
}

// Transport is a single websocket endpoint. It can dial out (Connect) or wrap
// an already upgraded server-side socket (Accept). Every connection reuses the
// same listener table and inbound handler.
type Transport struct {
	event.Emitter

	opts Options
	log  zerolog.Logger
	ctx  context.Context

	mu        sync.Mutex
	cur       *wsConn
	onMessage func(string)
	connected atomic.Bool
}

func NewTransport(ctx context.Context, opts ...Option) *Transport {
	t := &Transport{
		opts: DefaultOptions(),
		log:  log.Logger.With().Str("module", "ws").Logger(),
		ctx:  ctx,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Accept wraps a server-side socket that is already open. Frames are not
// read until Run is called, so the inbound handler can be installed first.
func Accept(ctx context.Context, c *websocket.Conn, opts ...Option) *Transport {
	t := NewTransport(ctx, opts...)
	t.attach(c)
	return t
}

// Run starts the pumps of an accepted connection. It is a no-op otherwise.
func (t *Transport) Run() {
	t.mu.Lock()
	wc := t.cur
	t.mu.Unlock()
	if wc != nil {
		t.start(wc)
	}
}

func (t *Transport) SetOnMessage(fn func(string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = fn
}

func (t *Transport) deliver(text string) {
	t.mu.Lock()
	fn := t.onMessage
	t.mu.Unlock()
	if fn != nil {
		fn(text)
	}
}

// Connect dials url. An existing connection is replaced.
func (t *Transport) Connect(url string) bool {
	t.Disconnect(0, "")

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: t.opts.HandshakeTimeout,
	}
	c, resp, err := dialer.DialContext(t.ctx, url, t.opts.Header)
	if err != nil {
		ev := t.log.Error().Err(err).Str("url", url)
		if resp != nil {
			ev = ev.Int("status", resp.StatusCode)
		}
		ev.Msg("dial failed")
		return false
	}
	t.log.Info().Str("url", url).Msg("connected")
	t.start(t.attach(c))
	return true
}

func (t *Transport) attach(c *websocket.Conn) *wsConn {
	wc := newWSConn(c, t.opts, t.log)
	t.mu.Lock()
	t.cur = wc
	t.mu.Unlock()
	t.connected.Store(true)
	return wc
}

func (t *Transport) start(wc *wsConn) {
	wc.run(t.ctx, t.deliver, func(err error) {
		t.mu.Lock()
		if t.cur == wc {
			t.cur = nil
			t.connected.Store(false)
		}
		t.mu.Unlock()
		t.log.Info().AnErr("cause", err).Msg("connection ended")
	})
}

// Disconnect closes the current connection. Code 0 means a normal closure.
func (t *Transport) Disconnect(code int, reason string) {
	t.mu.Lock()
	wc := t.cur
	t.cur = nil
	t.connected.Store(false)
	t.mu.Unlock()
	if wc == nil {
		return
	}
	if code == 0 {
		code = websocket.CloseNormalClosure
	}
	wc.closeWith(code, reason)
}

func (t *Transport) IsConnected() bool {
	return t.connected.Load()
}

func (t *Transport) SendMessage(text string) {
	t.mu.Lock()
	wc := t.cur
	t.mu.Unlock()
	if wc == nil {
		t.log.Warn().Msg("send while disconnected")
		return
	}
	if err := wc.TrySend([]byte(text)); err != nil {
		t.log.Warn().Err(err).Msg("send dropped")
	}
}

// Done is closed when the current connection ends. Without a connection it
// is already closed.
func (t *Transport) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return t.cur.done
}
