package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of a kafka.Writer used by KafkaPublisher
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaOpts configure a KafkaPublisher
type KafkaOpts struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// KafkaPublisher writes events to a kafka topic. Each message is keyed
// by the name of the set, so that the changes of a set keep their order
type KafkaPublisher struct {
	writer MessageWriter
}

// NewKafkaPublisher creates a publisher that writes to the brokers
// in opts
func NewKafkaPublisher(opts KafkaOpts) (*KafkaPublisher, error) {
	if len(opts.Brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if opts.Topic == "" {
		return nil, errors.New("kafka publisher requires a topic")
	}

	batchTimeout := opts.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = 10 * time.Millisecond
	}

	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(opts.Brokers...),
		Topic:        opts.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: batchTimeout,
	}), nil
}

// NewKafkaPublisherWithWriter creates a publisher over writer
func NewKafkaPublisherWithWriter(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		value, err := json.Marshal(event)
		if err != nil {
			return errors.Wrapf(err, "failed to encode event for set %s", event.Set)
		}

		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.Set),
			Value: value,
			Time:  event.Time,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return errors.Wrapf(err, "failed to write %d events to kafka", len(msgs))
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
