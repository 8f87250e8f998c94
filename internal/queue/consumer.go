package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/tickethub/internal/consumer"
)

var errDeliveriesClosed = errors.New("deliveries channel closed")

// Handler processes one message and reports what should happen to it.
type Handler interface {
	Handle(ctx context.Context, msg consumer.Message) consumer.Outcome
}

// Config controls the consumer loop.
type Config struct {
	URL             string
	Queue           string
	Workers         int
	DeliveryLimit   int
	ShutdownTimeout time.Duration
}

// Consumer drains the purchase queue with a fixed pool of workers.
type Consumer struct {
	cfg     Config
	handler Handler
	logger  *log.Logger
}

// NewConsumer fills in defaults for unset Config fields.
func NewConsumer(cfg Config, h Handler, logger *log.Logger) *Consumer {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueueName
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.New("purchase-consumer")
	}
	return &Consumer{cfg: cfg, handler: h, logger: logger}
}

// Run connects to the broker and consumes until ctx is cancelled.  Broker
// outages are retried with exponential backoff; Run only returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.cfg.URL)
		if err != nil {
			c.logger.Warnf("failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warnf("consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.cfg.Workers, 0, false); err != nil {
		c.logger.Warnf("set QoS failed: %v", err)
	}
	if err := Declare(ch, c.cfg.Queue, c.cfg.DeliveryLimit); err != nil {
		return err
	}

	msgs, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.logger.Infoj(log.JSON{"event": "consumer_started", "queue": c.cfg.Queue, "workers": c.cfg.Workers})
	return c.serve(ctx, msgs)
}

// serve runs the worker pool over deliveries.  It returns when the channel
// closes or ctx is cancelled, after in-flight messages finish or the
// shutdown timeout passes.
func (c *Consumer) serve(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	// In-flight messages are finished even after shutdown begins.
	work := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					c.dispatch(work, d)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		select {
		case <-done:
			c.logger.Info("all workers completed gracefully")
		case <-time.After(c.cfg.ShutdownTimeout):
			c.logger.Warn("shutdown timed out waiting for workers")
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errDeliveriesClosed
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) {
	msg := consumer.Message{
		ID:          d.MessageId,
		Body:        d.Body,
		EnqueuedAt:  d.Timestamp,
		Redelivered: d.Redelivered,
	}
	out := c.handler.Handle(ctx, msg)
	if err := settle(d, out); err != nil {
		c.logger.Errorj(log.JSON{
			"event":       "settle_failed",
			"message_id":  d.MessageId,
			"disposition": out.Disposition.String(),
			"error":       err.Error(),
		})
	}
}

// settle translates an Outcome into the broker call.  Rejected messages are
// acknowledged: redelivery cannot repair them and they are not worth
// quarantining.  Retryable messages are requeued and the queue's delivery
// limit decides when they become poison.
func settle(d amqp.Delivery, out consumer.Outcome) error {
	switch out.Disposition {
	case consumer.Processed, consumer.Rejected:
		return d.Ack(false)
	default:
		return d.Nack(false, true)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
