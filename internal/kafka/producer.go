package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// ReportEvent is the payload published on report lifecycle topics.
type ReportEvent struct {
	RunID      string    `json:"run_id"`
	Identifier string    `json:"identifier"`
	Organizer  string    `json:"organizer"`
	Filename   string    `json:"filename,omitempty"`
	Error      string    `json:"error,omitempty"`
	Duration   string    `json:"duration"`
	FinishedAt time.Time `json:"finished_at"`
}

type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a producer that can publish to any topic on the given
// brokers.
func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{writer: writer}
}

// PublishReportEvent streams a report lifecycle event, keyed by run ID.
func (p *Producer) PublishReportEvent(ctx context.Context, topic string, event ReportEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(event.RunID),
		Value: value,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
