// Package repository holds the storage side of the purchase pipeline.  The
// sentinel errors below let the consumer tell a misconfigured store apart
// from a store that timed out or refused the insert; all of them leave the
// message eligible for redelivery.
package repository

import "errors"

// ErrStoreNotConfigured is returned when no database handle was injected.
// The consumer treats it as a configuration error: the message is not
// acknowledged.
var ErrStoreNotConfigured = errors.New("purchase store is not configured")

// ErrStoreTimeout is returned when the insert exceeded the configured
// storage timeout.
var ErrStoreTimeout = errors.New("purchase store timed out")
