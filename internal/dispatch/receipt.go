package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	dErrors "handover/pkg/domain-errors"
)

// receiptRetryDelay spaces out requeues of receipts the store cannot apply yet.
const receiptRetryDelay = time.Second

// ReceiptConsumer applies delivery receipts from the broker.
type ReceiptConsumer struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	queue      string
	recorder   DeliveryRecorder
	logger     *slog.Logger
	retryDelay time.Duration
}

// NewReceiptConsumer declares the receipt queue and binds it to the exchange.
func NewReceiptConsumer(url, exchange, queue string, recorder DeliveryRecorder, logger *slog.Logger) (*ReceiptConsumer, error) {
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
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(q.Name, RoutingKeyDelivered, exchange, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bind queue %s: %w", queue, err)
	}
	return &ReceiptConsumer{
		conn:       conn,
		channel:    ch,
		queue:      q.Name,
		recorder:   recorder,
		logger:     logger,
		retryDelay: receiptRetryDelay,
	}, nil
}

// Run consumes receipts until ctx is cancelled or the channel closes.
func (c *ReceiptConsumer) Run(ctx context.Context) error {
	deliveries, err := c.channel.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("receipt channel closed")
			}
			c.Handle(ctx, d)
		}
	}
}

// Handle applies one receipt. Malformed receipts and receipts for unknown
// registrations are dropped. Anything else is requeued after retryDelay,
// including a receipt that reached us before its send was recorded.
func (c *ReceiptConsumer) Handle(ctx context.Context, d amqp.Delivery) {
	var receipt Receipt
	if err := json.Unmarshal(d.Body, &receipt); err != nil || receipt.RegistrationID.IsNil() {
		c.logger.WarnContext(ctx, "dropping malformed delivery receipt", "message_id", d.MessageId, "error", err)
		c.nack(ctx, d, false)
		return
	}
	at := receipt.DeliveredAt
	if at.IsZero() {
		at = d.Timestamp
	}

	err := c.recorder.MarkDelivered(ctx, receipt.BuilderID, receipt.RegistrationID, at)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.ErrorContext(ctx, "ack delivery receipt", "error", ackErr)
		}
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		c.logger.WarnContext(ctx, "delivery receipt for unknown registration",
			"registration_id", receipt.RegistrationID,
		)
		c.nack(ctx, d, false)
	default:
		c.logger.WarnContext(ctx, "failed to apply delivery receipt, requeueing",
			"registration_id", receipt.RegistrationID,
			"retryable", dErrors.Retryable(dErrors.CodeOf(err)),
			"error", err,
		)
		c.backoff(ctx)
		c.nack(ctx, d, true)
	}
}

func (c *ReceiptConsumer) backoff(ctx context.Context) {
	if c.retryDelay <= 0 {
		return
	}
	t := time.NewTimer(c.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (c *ReceiptConsumer) nack(ctx context.Context, d amqp.Delivery, requeue bool) {
	if err := d.Nack(false, requeue); err != nil {
		c.logger.ErrorContext(ctx, "nack delivery receipt", "error", err)
	}
}

func (c *ReceiptConsumer) Close() error {
	if err := c.channel.Close(); err != nil {
		c.logger.Warn("close channel", "error", err)
	}
	return c.conn.Close()
}
