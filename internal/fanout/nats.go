package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NatsBridge relays events between instances over a NATS subject.
type NatsBridge struct {
	log     zerolog.Logger
	nc      *nats.Conn
	subject string
	sink    Sink
}

func NewNatsBridge(logger zerolog.Logger, url, subject string, sink Sink) (*NatsBridge, error) {
	l := logger.With().Str("component", "nats_bridge").Logger()

	nc, err := nats.Connect(url,
		nats.Name("roamchat"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				l.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			l.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &NatsBridge{log: l, nc: nc, subject: subject, sink: sink}, nil
}

func (b *NatsBridge) Publish(_ context.Context, ev Event) error {
	payload, err := encode(ev)
	if err != nil {
		return err
	}

	if err := b.nc.Publish(b.subject, payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}

	return nil
}

// Run delivers relayed events to the local sink until ctx is cancelled.
func (b *NatsBridge) Run(ctx context.Context) error {
	sub, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) {
		ev, err := decode(msg.Data)
		if err != nil {
			b.log.Warn().Err(err).Msg("dropping relayed event")
			return
		}

		b.sink.Deliver(ev)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	<-ctx.Done()

	return sub.Unsubscribe()
}

func (b *NatsBridge) Close() error {
	return b.nc.Drain()
}
