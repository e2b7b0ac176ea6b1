package outbox

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"interview-scheduler/internal/telemetry"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitSink publishes to a durable topic exchange with routing key = event type.
type RabbitSink struct {
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
}

func DialRabbit(url, exchange string) (*RabbitSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq declare exchange %q: %w", exchange, err)
	}

	return &RabbitSink{conn: conn, channel: ch, exchange: exchange}, nil
}

func (s *RabbitSink) Write(ctx context.Context, records []Record) error {
	for _, r := range records {
		headers := amqp.Table{
			"event_id":   r.EventID,
			"event_type": r.EventType,
		}
		carrier := propagation.MapCarrier{}
		otel.GetTextMapPropagator().Inject(telemetry.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate), carrier)
		for k, v := range carrier {
			headers[k] = v
		}

		err := s.channel.PublishWithContext(ctx, s.exchange, r.EventType, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    r.EventID,
			Type:         r.EventType,
			Timestamp:    r.CreatedAt,
			Headers:      headers,
			Body:         r.Payload,
		})
		if err != nil {
			return fmt.Errorf("publish %s: %w", r.EventID, err)
		}
	}
	return nil
}

func (s *RabbitSink) Close() error {
	if s == nil || s.channel == nil {
		return nil
	}
	if err := s.channel.Close(); err != nil {
		return err
	}
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
