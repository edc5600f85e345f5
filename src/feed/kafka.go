package feed

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"order-matching-engine/src/engine"
	"order-matching-engine/src/logger"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes every trade to a Kafka topic, keyed by symbol so
// one symbol's trades stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	log    *logger.Logger
}

// NewKafkaPublisher creates an asynchronous publisher. Delivery failures are
// logged, never returned to the engine.
func NewKafkaPublisher(brokers []string, topic string, l *logger.Logger) *KafkaPublisher {
	p := &KafkaPublisher{log: l}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		BatchTimeout: 10 * time.Millisecond,
		Completion:   p.completion,
	}
	return p
}

func newKafkaPublisher(w messageWriter, l *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, log: l}
}

func (p *KafkaPublisher) OnTrade(ev engine.TradeEvent) {
	value, err := Encode(ev)
	if err != nil {
		p.log.Error(errors.Wrap(err, "encode trade"), logger.NewField("trade_id", ev.Trade.TradeID))
		return
	}

	msg := kafka.Message{
		Key:   []byte(ev.Symbol),
		Value: value,
		Time:  time.Unix(0, ev.Trade.Timestamp),
	}
	if err := p.writer.WriteMessages(context.Background(), msg); err != nil {
		p.log.Error(errors.Wrap(err, "publish trade"),
			logger.NewField("symbol", ev.Symbol),
			logger.NewField("trade_id", ev.Trade.TradeID),
		)
	}
}

func (p *KafkaPublisher) completion(msgs []kafka.Message, err error) {
	if err == nil {
		return
	}
	p.log.Error(errors.Wrapf(err, "deliver %d trade messages", len(msgs)))
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return errors.Wrap(p.writer.Close(), "close kafka writer")
}
