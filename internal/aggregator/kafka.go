package aggregator

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"

	"marketflow/internal/saga"
)

// KafkaSink mirrors every outcome to a Kafka topic so external dashboards
// can consume the mark stream without touching the database.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaSink builds an idempotent synchronous producer for the topic.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &KafkaSink{producer: producer, topic: topic}, nil
}

// Success mirrors the completed instance, keyed by {type}:{tid}.
func (s *KafkaSink) Success(_ context.Context, t saga.Type, out saga.TransactionOutput) error {
	return s.send(string(t)+":"+out.TID, "success", out)
}

// Poison mirrors the mark, keyed by {type}:{tid}.
func (s *KafkaSink) Poison(_ context.Context, t saga.Type, mark saga.TransactionMark) error {
	return s.send(string(t)+":"+mark.TID, "poison", mark)
}

func (s *KafkaSink) send(key, kind string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, _, err = s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(kind)},
		},
	})
	return err
}

// Close releases the producer.
func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
