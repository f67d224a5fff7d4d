package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// wsConn is one live websocket plus its outbound queue.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	opts Options
	log  zerolog.Logger
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

func newWSConn(c *websocket.Conn, opts Options, l zerolog.Logger) *wsConn {
	return &wsConn{
		conn: c,
		send: make(chan []byte, opts.SendBuffer),
		done: make(chan struct{}),
		opts: opts,
		log:  l,
	}
}

func (c *wsConn) TrySend(f []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

// closeWith writes a close frame and shuts the socket down.
func (c *wsConn) closeWith(code int, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	frame := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(c.opts.WriteWait)); err != nil &&
		!errors.Is(err, websocket.ErrCloseSent) {
		c.log.Debug().Err(err).Msg("close frame")
	}
	_ = c.conn.Close()
}

func (c *wsConn) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// run drives both pumps until either fails or ctx ends, then calls onExit.
func (c *wsConn) run(ctx context.Context, onFrame func(string), onExit func(error)) {
	c.once.Do(func() { c.spawn(ctx, onFrame, onExit) })
}

func (c *wsConn) spawn(ctx context.Context, onFrame func(string), onExit func(error)) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readPump(onFrame) })
	g.Go(func() error { return c.writePump(gctx) })
	go func() {
		<-gctx.Done()
		c.closeWith(websocket.CloseGoingAway, "")
	}()
	go func() {
		err := g.Wait()
		close(c.done)
		onExit(err)
	}()
}

func (c *wsConn) writePump(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-c.send:
			if !ok {
				c.log.Debug().Msg("writePump channel closed")
				return ErrClosed
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				c.log.Error().Err(err).Msg("writePump set deadline")
				return err
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Error().Err(err).Msg("writePump write error")
				return err
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				c.log.Warn().Err(err).Msg("writePump ping")
				return err
			}
		}
	}
}

func (c *wsConn) readPump(onFrame func(string)) error {
	c.conn.SetReadLimit(c.opts.ReadLimit)
	pongWait := c.opts.PingPeriod * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || c.isClosed() {
				c.log.Info().Msg("readPump closed")
				return ErrClosed
			}
			c.log.Error().Err(err).Msg("readPump read error")
			return err
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if msgType != websocket.TextMessage {
			c.log.Warn().Int("ws_type", msgType).Msg("readPump dropped non-text frame")
			continue
		}
		onFrame(string(data))
	}
}
