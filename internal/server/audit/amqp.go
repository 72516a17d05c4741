package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/salesdash/internal/logging"
	"github.com/streadway/amqp"
)

// Publisher is the part of *amqp.Channel used by AMQPSink.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes events as JSON to a RabbitMQ exchange, routed by event
// type ("audit.login_failed", ...).
type AMQPSink struct {
	pub      Publisher
	exchange string
	logger   logging.Logger
	conn     *amqp.Connection
}

// NewAMQPSink wraps an existing publisher.
func NewAMQPSink(pub Publisher, exchange string, l logging.Logger) *AMQPSink {
	return &AMQPSink{pub: pub, exchange: exchange, logger: l.With("module", "audit_amqp")}
}

// DialAMQPSink connects to url, declares a durable topic exchange and returns
// a sink publishing to it. Close releases the connection.
func DialAMQPSink(url, exchange string, l logging.Logger) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	s := NewAMQPSink(ch, exchange, l)
	s.conn = conn
	return s, nil
}

func (s *AMQPSink) Emit(ctx context.Context, e Event) {
	body, err := json.Marshal(e)
	if err != nil {
		s.logger.Error(ctx, "audit marshal failed", "error", err)
		return
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.At,
		Type:         string(e.Type),
		Body:         body,
	}
	if err := s.pub.Publish(s.exchange, "audit."+string(e.Type), false, false, msg); err != nil {
		s.logger.Error(ctx, "audit publish failed", "event", string(e.Type), "error", err)
	}
}

// Close closes the underlying connection when the sink was dialed.
func (s *AMQPSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
