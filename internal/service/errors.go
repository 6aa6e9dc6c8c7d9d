package service

import (
	"errors"
	"fmt"

	"slotbook/internal/availability"
)

var (
	// ErrSlotConflict means another booking won the slot. It is final for that slot.
	ErrSlotConflict   = errors.New("slot conflict")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrRateLimited    = errors.New("too many booking attempts")
	ErrUnknownService = errors.New("unknown or inactive service")
)

// RejectionError carries a non-bookable gate decision to the transport layer.
type RejectionError struct {
	Decision availability.Decision
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("booking rejected: %s", e.Decision)
}

// AsRejection unwraps a RejectionError from err.
func AsRejection(err error) (availability.Decision, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Decision, true
	}
	return availability.Bookable, false
}
