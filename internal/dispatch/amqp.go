package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	dErrors "handover/pkg/domain-errors"
)

// AMQPDispatcher publishes entitlements to a topic exchange. The message id is
// the registration id so downstream consumers can drop redeliveries.
type AMQPDispatcher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
}

// NewAMQPDispatcher dials the broker and declares the exchange.
func NewAMQPDispatcher(url, exchange string, logger *slog.Logger) (*AMQPDispatcher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPDispatcher{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

func (d *AMQPDispatcher) Dispatch(ctx context.Context, e Entitlement) error {
	msg, err := newPublishing(e)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode entitlement")
	}
	if err := d.channel.PublishWithContext(ctx, d.exchange, RoutingKeySend, false, false, msg); err != nil {
		d.logger.ErrorContext(ctx, "entitlement publish failed",
			"registration_id", e.RegistrationID,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "entitlement dispatch failed")
	}
	d.logger.InfoContext(ctx, "entitlement dispatched",
		"registration_id", e.RegistrationID,
		"exchange", d.exchange,
	)
	return nil
}

func (d *AMQPDispatcher) Close() error {
	if err := d.channel.Close(); err != nil {
		d.logger.Warn("close channel", "error", err)
	}
	return d.conn.Close()
}

func newPublishing(e Entitlement) (amqp.Publishing, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.RegistrationID.String(),
		Timestamp:    e.RequestedAt,
		Type:         RoutingKeySend,
		Body:         body,
	}, nil
}
