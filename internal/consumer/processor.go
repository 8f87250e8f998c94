// Package consumer holds the per-message purchase logic.  It knows nothing
// about the broker: Handle returns an Outcome and the queue package turns it
// into an ack or a nack.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/tickethub/internal/model"
	"github.com/iliyamo/tickethub/internal/repository"
)

// Store persists one purchase record.
type Store interface {
	Insert(ctx context.Context, rec model.PurchaseRecord) (uint64, error)
}

// Message is the broker-independent view of one delivery.
type Message struct {
	ID          string
	Body        []byte
	EnqueuedAt  time.Time
	Redelivered bool
}

// Processor turns queued purchase payloads into stored records.  It keeps no
// state between messages and may be shared by any number of workers.
type Processor struct {
	store  Store
	logger *log.Logger
}

// NewProcessor builds a Processor.  A nil store is accepted; every message
// then fails as a configuration error and stays on the queue.
func NewProcessor(store Store, logger *log.Logger) *Processor {
	if logger == nil {
		logger = log.New("purchase-consumer")
	}
	return &Processor{store: store, logger: logger}
}

// Handle runs one message through decode, validate, normalize and persist.
// Panics are converted into a Retryable outcome.
func (p *Processor) Handle(ctx context.Context, msg Message) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Disposition: Retryable, Err: fmt.Errorf("panic while processing: %v", r)}
			p.logger.Errorj(log.JSON{
				"event":      "purchase_panic",
				"message_id": msg.ID,
				"error":      out.Err.Error(),
				"stack":      string(debug.Stack()),
			})
		}
	}()

	req, err := model.Decode(msg.Body)
	if err != nil {
		p.logger.Warnj(log.JSON{
			"event":      "purchase_dropped",
			"message_id": msg.ID,
			"reason":     "malformed payload",
			"error":      err.Error(),
			"bytes":      len(msg.Body),
		})
		return Outcome{Disposition: Rejected, Err: err}
	}

	fields := req.LogFields()
	fields["message_id"] = msg.ID
	fields["redelivered"] = msg.Redelivered

	if err := req.Validate(); err != nil {
		fields["event"] = "purchase_dropped"
		fields["error"] = err.Error()
		p.logger.Warnj(fields)
		return Outcome{Disposition: Rejected, Err: err}
	}

	if p.store == nil {
		fields["event"] = "purchase_retry"
		fields["error"] = repository.ErrStoreNotConfigured.Error()
		p.logger.Errorj(fields)
		return Outcome{Disposition: Retryable, Err: repository.ErrStoreNotConfigured}
	}

	enqueued := msg.EnqueuedAt
	if enqueued.IsZero() {
		enqueued = time.Now()
	}
	rec := req.Normalize(enqueued)

	id, err := p.store.Insert(ctx, rec)
	if err != nil {
		fields["event"] = "purchase_retry"
		fields["error"] = err.Error()
		fields["timeout"] = errors.Is(err, repository.ErrStoreTimeout)
		p.logger.Errorj(fields)
		return Outcome{Disposition: Retryable, Err: err}
	}

	fields["event"] = "purchase_saved"
	fields["record_id"] = id
	p.logger.Infoj(fields)
	return Outcome{Disposition: Processed, RecordID: id}
}
