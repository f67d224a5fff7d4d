// Package signal bridges upgraded websocket requests to the signalling service.
package signal

import (
	"context"
	"net/http"

	"github.com/dkeye/Signalling/internal/adapters/ws"
	"github.com/dkeye/Signalling/internal/app"
	"github.com/dkeye/Signalling/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type SignalWSController struct {
	Service *app.Service
	Options ws.Options
}

func NewSignalWSController(svc *app.Service, opts ws.Options) *SignalWSController {
	return &SignalWSController{Service: svc, Options: opts}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and serves it until the socket closes.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	l := log.Logger.With().Str("module", "signal").Str("sid", string(sid)).Logger()
	l.Info().Msg("new WS connection")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Error().Err(err).Msg("ws upgrade")
		return
	}

	tr := ws.Accept(ctx, conn, ws.WithOptions(ctl.Options), ws.WithLogger(l))
	p := ctl.Service.Attach(ctx, sid, tr)
	tr.Run()

	go func() {
		<-tr.Done()
		l.Info().Msg("WS connection closed")
		ctl.Service.Detach(sid, p)
	}()
}
