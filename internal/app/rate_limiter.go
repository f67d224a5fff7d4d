package app

import (
	"sync/atomic"

	"github.com/dkeye/Signalling/internal/core"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// limitedTransport drops inbound frames above a token-bucket rate before
// they reach the protocol.
type limitedTransport struct {
	core.Transport
	lim     *rate.Limiter
	log     zerolog.Logger
	dropped atomic.Int64
}

func limitInbound(t core.Transport, limit rate.Limit, burst int, l zerolog.Logger) *limitedTransport {
	return &limitedTransport{
		Transport: t,
		lim:       rate.NewLimiter(limit, burst),
		log:       l,
	}
}

func (lt *limitedTransport) SetOnMessage(fn func(string)) {
	lt.Transport.SetOnMessage(func(text string) {
		if !lt.lim.Allow() {
			n := lt.dropped.Add(1)
			lt.log.Warn().Int64("dropped", n).Msg("inbound rate exceeded, frame dropped")
			return
		}
		fn(text)
	})
}

func (lt *limitedTransport) Dropped() int64 { return lt.dropped.Load() }
