package consumer

import "fmt"

// Disposition tells the queue layer what to do with a delivery.
type Disposition int

const (
	// Processed: the purchase is stored; remove the message.
	Processed Disposition = iota
	// Rejected: the message can never succeed; remove it without storing.
	Rejected
	// Retryable: leave the message for the broker to redeliver.
	Retryable
)

func (d Disposition) String() string {
	switch d {
	case Processed:
		return "processed"
	case Rejected:
		return "rejected"
	case Retryable:
		return "retryable"
	default:
		return fmt.Sprintf("unknown disposition: %d", int(d))
	}
}

// Outcome is the result of handling one message.  Err carries the cause for
// Rejected and Retryable; RecordID is set for Processed.
type Outcome struct {
	Disposition Disposition
	RecordID    uint64
	Err         error
}
