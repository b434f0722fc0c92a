package listener

import (
	"encoding/json"
	"fmt"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// producer abstracts ck.Producer for testability.
type producer interface {
	Produce(msg *ck.Message, deliveryChan chan ck.Event) error
	Close()
}

// Publisher sends commands to the topic a Consumer reads.
type Publisher struct {
	p       producer
	topic   string
	timeout time.Duration
}

func NewPublisher(bootstrap, topic string) (*Publisher, error) {
	p, err := ck.NewProducer(&ck.ConfigMap{
		"bootstrap.servers":  bootstrap,
		"enable.idempotence": true,
		"acks":               "all",
	})
	if err != nil {
		return nil, fmt.Errorf("producer: %w", err)
	}
	return &Publisher{p: p, topic: topic, timeout: 10 * time.Second}, nil
}

// Send produces cmd and waits for its delivery report.
func (pb *Publisher) Send(cmd Command) error {
	b, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	delivery := make(chan ck.Event, 1)
	msg := &ck.Message{
		TopicPartition: ck.TopicPartition{Topic: &pb.topic, Partition: ck.PartitionAny},
		Key:            []byte(cmd.Type),
		Value:          b,
	}
	if err := pb.p.Produce(msg, delivery); err != nil {
		return fmt.Errorf("produce: %w", err)
	}
	select {
	case ev := <-delivery:
		m, ok := ev.(*ck.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %v", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("delivery: %w", m.TopicPartition.Error)
		}
		return nil
	case <-time.After(pb.timeout):
		return fmt.Errorf("delivery timed out after %s", pb.timeout)
	}
}

func (pb *Publisher) Close() { pb.p.Close() }
