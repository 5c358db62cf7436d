// Package boarderr defines the error taxonomy shared across the board:
// validation failures, missing records, device trouble, platform-rejected
// playback, and aborted store transactions.
package boarderr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks empty or malformed required input. Surfaced to
	// the caller; the operation performs no partial writes.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an operation against a thread or message id that
	// is no longer present. Benign on the idempotent delete paths.
	ErrNotFound = errors.New("not found")
	// ErrDevice marks an unavailable or permission-denied audio device.
	ErrDevice = errors.New("device unavailable")
	// ErrPlaybackRejected marks playback blocked by a suspended audio
	// pipeline. Handled internally with exactly one resume-and-retry.
	ErrPlaybackRejected = errors.New("playback rejected")
	// ErrTransaction marks an aborted store transaction. Not retried;
	// derived-state recomputation is skipped for that cycle.
	ErrTransaction = errors.New("transaction aborted")
)

// Kind is a coarse classification of an error for dispatch decisions.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindDevice           Kind = "device"
	KindPlaybackRejected Kind = "playback_rejected"
	KindTransaction      Kind = "transaction"
	KindUnknown          Kind = "unknown"
)

// KindOf maps an error to its Kind by unwrapping to the sentinels above.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrDevice):
		return KindDevice
	case errors.Is(err, ErrPlaybackRejected):
		return KindPlaybackRejected
	case errors.Is(err, ErrTransaction):
		return KindTransaction
	}
	return KindUnknown
}

// Validation wraps a descriptive message with ErrValidation.
func Validation(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

// NotFound wraps a record description with ErrNotFound.
func NotFound(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Device wraps an underlying device failure with ErrDevice.
func Device(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, ErrDevice)
}

// Transaction wraps an underlying store failure with ErrTransaction.
func Transaction(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, ErrTransaction)
}
