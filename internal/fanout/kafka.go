package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSink appends every event to a Kafka topic keyed by its fan-out topic,
// so downstream consumers see per-room ordering. It does not deliver to
// websocket sessions.
type KafkaSink struct {
	w *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
	}
}

func (k *KafkaSink) Publish(ctx context.Context, ev Event) error {
	payload, err := encode(ev)
	if err != nil {
		return err
	}

	err = k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Topic),
		Value: payload,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}

	return nil
}

func (k *KafkaSink) Close() error {
	return k.w.Close()
}
