package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/biblioteca-utp/portal-service/pkg/kafka"
)

const (
	TypeReservationCreated = "reservation.created"
	TypeOrderStatusChanged = "order.status_changed"
	TypeUserBlocked        = "user.blocked"
	TypeUserUnblocked      = "user.unblocked"
)

type Event struct {
	Type    string    `json:"type"`
	OrderID int64     `json:"orderId,omitempty"`
	BookID  int64     `json:"bookId,omitempty"`
	UserID  int64     `json:"userId,omitempty"`
	Status  string    `json:"status,omitempty"`
	At      time.Time `json:"at"`
}

// Producer publishes domain events. Publishing is best-effort: callers log
// failures and never fail the user action over them.
type Producer interface {
	Publish(ctx context.Context, e Event) error
}

type kafkaProducer struct {
	producer sarama.SyncProducer
	topic    string
	log      *zap.Logger
}

// NewProducer returns a kafka-backed producer, or a nop one when no brokers
// are configured.
func NewProducer(cfg kafka.Config, log *zap.Logger) (Producer, error) {
	if !cfg.Enabled() {
		log.Info("kafka brokers not configured, events disabled")
		return Nop{}, nil
	}
	p, err := kafka.NewProducer(cfg)
	if err != nil {
		return nil, err
	}
	return &kafkaProducer{
		producer: p,
		topic:    cfg.Topic,
		log:      log.Named("events"),
	}, nil
}

func (p *kafkaProducer) Publish(_ context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return err
	}
	p.log.Debug("event published",
		zap.String("type", e.Type),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
