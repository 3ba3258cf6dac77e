package storage

import (
	"context"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaBroker is the production QueueBroker, publishing/subscribing each
// topic as its own Kafka topic. Grounded on the Nexus-Lite transaction
// pipeline's producer/consumer pair (kafka.Writer with LeastBytes
// balancing + Snappy compression for publish; kafka.NewReader for
// consume), generalized from one fixed ISO-20022 topic to the
// QueueBroker interface's arbitrary per-call topic.
type KafkaBroker struct {
	brokers []string
	writers map[string]*kafka.Writer
}

// NewKafkaBroker creates a KafkaBroker against the given broker addresses
// (host:port), derived by splitting brokerURL on commas.
func NewKafkaBroker(brokerURL string) *KafkaBroker {
	var brokers []string
	for _, b := range strings.Split(brokerURL, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return &KafkaBroker{brokers: brokers, writers: make(map[string]*kafka.Writer)}
}

func (b *KafkaBroker) writerFor(topic string) *kafka.Writer {
	if w, ok := b.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(b.brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		Compression:  kafka.Snappy,
		BatchTimeout: 10 * time.Millisecond,
	}
	b.writers[topic] = w
	return w
}

// Publish writes payload to topic.
func (b *KafkaBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.writerFor(topic).WriteMessages(ctx, kafka.Message{Value: payload})
}

// Subscribe starts a reader for topic from the end of the log and forwards
// every message's value onto the returned channel until ctx is canceled.
func (b *KafkaBroker) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: b.brokers,
		Topic:   topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	reader.SetOffset(kafka.LastOffset)

	out := make(chan []byte, 64)
	go func() {
		defer reader.Close()
		defer close(out)
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				return
			}
			select {
			case out <- msg.Value:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close closes every writer opened by Publish.
func (b *KafkaBroker) Close() error {
	for _, w := range b.writers {
		_ = w.Close()
	}
	return nil
}
