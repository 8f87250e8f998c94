// Package service provides the RabbitMQ publisher used by the intake
// handler.  Every Publish call opens and closes its own connection so that
// concurrent requests share no broker state.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/tickethub/internal/queue"
)

// ErrNotConfirmed is returned when the broker nacks a published message.
var ErrNotConfirmed = errors.New("broker did not confirm the message")

// Publisher enqueues raw purchase payloads.
type Publisher struct {
	url           string
	queue         string
	deliveryLimit int
}

// NewPublisher returns a Publisher for the given broker URL and queue.
func NewPublisher(url, queueName string, deliveryLimit int) *Publisher {
	if queueName == "" {
		queueName = queue.DefaultQueueName
	}
	return &Publisher{url: url, queue: queueName, deliveryLimit: deliveryLimit}
}

// Publish writes body to the purchase queue as one persistent message and
// waits for the broker to confirm it.  body is sent exactly as received.
func (p *Publisher) Publish(ctx context.Context, body []byte) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if err := queue.Declare(ch, p.queue, p.deliveryLimit); err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("rabbitmq: confirm mode failed: %w", err)
	}

	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		NewPublishing(body, time.Now()),
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish failed: %w", err)
	}
	ok, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq: waiting for confirm: %w", err)
	}
	if !ok {
		return ErrNotConfirmed
	}
	return nil
}

// NewPublishing wraps a raw payload in the message properties the consumer
// relies on: a message id for log correlation and the enqueue timestamp.
func NewPublishing(body []byte, now time.Time) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    uuid.NewString(),
		Type:         queue.MessageType,
		Timestamp:    now.UTC(),
		Body:         body,
	}
}
