package events

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"lendit/pkg/domain"
)

// Kafka publishes committed events to one topic, keyed by aggregate id so
// per-aggregate ordering survives partitioning.
type Kafka struct {
	client *kgo.Client
	topic  string
}

func NewKafka(brokers []string, topic string) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Kafka{client: client, topic: topic}, nil
}

func (k *Kafka) Publish(ctx context.Context, e domain.Event) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(e.AggregateID()),
		Value: data,
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event %s: %w", e.EventID(), err)
	}
	return nil
}

func (k *Kafka) Close() {
	k.client.Close()
}
