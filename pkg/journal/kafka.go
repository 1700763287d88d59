package journal

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"golang.org/x/xerrors"
)

// Kafka publishes entries to a topic, keyed by request name so one participant's history stays on one partition.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
}

func DialKafka(brokers []string, topic string) (*Kafka, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, xerrors.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafka(producer, topic), nil
}

func NewKafka(producer sarama.SyncProducer, topic string) *Kafka {
	return &Kafka{producer: producer, topic: topic}
}

func (k *Kafka) Write(_ context.Context, e Entry) error {
	value, err := json.Marshal(e)
	if err != nil {
		return xerrors.Errorf("failed to marshal journal entry: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Value: sarama.ByteEncoder(value),
	}
	if e.Name != "" {
		msg.Key = sarama.StringEncoder(e.Name)
	}
	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return xerrors.Errorf("failed to send journal entry to kafka: %w", err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.producer.Close()
}
