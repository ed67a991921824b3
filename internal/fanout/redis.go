package fanout

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBridge relays events between instances over a Redis pub/sub channel.
// Events published on any instance are delivered to the local sink of every
// instance, including the publisher's.
type RedisBridge struct {
	log     zerolog.Logger
	client  *redis.Client
	channel string
	sink    Sink
}

func NewRedisBridge(logger zerolog.Logger, addr, password, channel string, sink Sink) (*RedisBridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBridge{
		log:     logger.With().Str("component", "redis_bridge").Logger(),
		client:  client,
		channel: channel,
		sink:    sink,
	}, nil
}

func (b *RedisBridge) Publish(ctx context.Context, ev Event) error {
	payload, err := encode(ev)
	if err != nil {
		return err
	}

	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}

	return nil
}

// Run delivers relayed events to the local sink until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			ev, err := decode([]byte(msg.Payload))
			if err != nil {
				b.log.Warn().Err(err).Msg("dropping relayed event")
				continue
			}

			b.sink.Deliver(ev)
		}
	}
}

func (b *RedisBridge) Close() error {
	return b.client.Close()
}
