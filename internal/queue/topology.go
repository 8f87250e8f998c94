// Package queue binds the purchase processor to RabbitMQ.  It declares the
// durable purchase queue with a delivery limit and a dead-letter route so
// poison messages are quarantined by the broker rather than by this code.
package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultQueueName is the queue intake publishes to and the consumer drains.
	DefaultQueueName = "tickethub"
	// DeadLetterExchange receives messages that exceeded the delivery limit.
	DeadLetterExchange = "tickethub.dlx"
	// MessageType tags every purchase message with its payload schema.
	MessageType = "ticket.purchase.v1"
)

// PoisonQueueName is where deliveries land once the broker gives up on them.
func PoisonQueueName(queue string) string { return queue + "-poison" }

// Declarer is the subset of *amqp.Channel needed to declare topology.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// QueueArgs returns the arguments for the purchase queue.  A quorum queue
// is used because it counts redeliveries and honours x-delivery-limit.
func QueueArgs(queue string, deliveryLimit int) amqp.Table {
	args := amqp.Table{
		"x-queue-type":              "quorum",
		"x-dead-letter-exchange":    DeadLetterExchange,
		"x-dead-letter-routing-key": PoisonQueueName(queue),
	}
	if deliveryLimit > 0 {
		args["x-delivery-limit"] = int32(deliveryLimit)
	}
	return args
}

// Declare creates the dead-letter exchange, the poison queue and the purchase
// queue.  Every call is idempotent as long as the arguments do not change.
func Declare(ch Declarer, queue string, deliveryLimit int) error {
	if err := ch.ExchangeDeclare(DeadLetterExchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	poison := PoisonQueueName(queue)
	if _, err := ch.QueueDeclare(poison, true, false, false, false, nil); err != nil {
		return fmt.Errorf("poison queue declare: %w", err)
	}
	if err := ch.QueueBind(poison, poison, DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("poison queue bind: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, QueueArgs(queue, deliveryLimit)); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}
