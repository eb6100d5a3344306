package notify

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"

	"github.com/example/campus-portal/internal/breaker"
)

// amqpChannel is the part of *amqp.Channel the publisher needs.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes changes to a durable fanout exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
	cb       *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewAMQPPublisher dials url and declares exchange.
func NewAMQPPublisher(url, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "notify: dial amqp")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "notify: open amqp channel")
	}

	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, errors.Wrapf(err, "notify: declare exchange %s", exchange)
	}

	publisher := newAMQPPublisher(ch, exchange, logger)
	publisher.conn = conn
	return publisher, nil
}

func newAMQPPublisher(ch amqpChannel, exchange string, logger *slog.Logger) *AMQPPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPPublisher{
		ch:       ch,
		exchange: exchange,
		cb:       breaker.New(breaker.AMQP, logger),
		logger:   logger,
	}
}

// Publish sends change as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, change Change) error {
	body, err := change.encode()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.ch.PublishWithContext(ctx,
			p.exchange,
			string(change.Kind),
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    change.ID,
				Timestamp:    change.OccurredAt,
				Type:         string(change.Kind),
				Body:         body,
			},
		)
	})
	return errors.Wrapf(err, "notify: publish change %s", change.ID)
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			return errors.WithStack(err)
		}
	}
	if p.conn != nil {
		return errors.WithStack(p.conn.Close())
	}
	return nil
}
