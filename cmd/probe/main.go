// Command probe connects to a signalling server, prints all traffic and
// keeps the session alive with pings.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/dkeye/Signalling/internal/adapters/ws"
	"github.com/dkeye/Signalling/internal/domain"
	"github.com/dkeye/Signalling/internal/event"
	"github.com/dkeye/Signalling/internal/messages"
	"github.com/dkeye/Signalling/internal/protocol"
)

func main() {
	url := flag.StringP("url", "u", "ws://localhost:8080/api/ws/signal", "signalling endpoint")
	id := flag.String("id", "probe", "endpoint id announced on identify")
	every := flag.Duration("ping", 5*time.Second, "ping interval, 0 disables")
	watch := flag.StringSlice("watch", []string{event.NameMessage, event.NameOut}, "channels to print (message, out, unhandled or a message type)")
	verbose := flag.BoolP("verbose", "v", false, "debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tr := ws.NewTransport(ctx)
	p := protocol.New(tr)
	catalog := messages.Default()

	for _, name := range *watch {
		ch := event.Parse(name)
		p.On(ch, func(m domain.Message) {
			shown, err := catalog.Shape(m)
			if err != nil {
				log.Warn().Err(err).Str("type", string(m.MessageType())).Msg("payload does not fit catalog")
				shown = m
			}
			log.Info().Str("channel", ch.String()).Str("type", string(m.MessageType())).Interface("msg", shown).Msg("traffic")
		})
	}

	p.On(event.Type(messages.TypeIdentify), func(domain.Message) {
		if err := p.SendMessage(messages.NewEndpointID(*id, p.Version())); err != nil {
			log.Error().Err(err).Msg("endpointId")
		}
	})
	p.On(event.Type(messages.TypePong), func(m domain.Message) {
		if pong, err := messages.As[messages.Pong](m); err == nil {
			log.Info().Dur("rtt", time.Since(time.UnixMilli(pong.Time))).Msg("pong")
		}
	})

	if !p.Connect(*url) {
		log.Fatal().Str("url", *url).Msg("connect failed")
	}
	defer p.Disconnect(0, "probe exiting")

	var tick <-chan time.Time
	if *every > 0 {
		ticker := time.NewTicker(*every)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tr.Done():
			log.Warn().Msg("connection closed by server")
			return
		case <-tick:
			if err := p.SendMessage(messages.NewPing(time.Now().UnixMilli())); err != nil {
				log.Error().Err(err).Msg("ping")
			}
		}
	}
}
