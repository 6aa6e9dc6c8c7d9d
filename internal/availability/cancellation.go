package availability

import (
	"errors"
	"fmt"
	"time"

	"slotbook/internal/models"
)

// CancellationWindow is how far ahead of its start a reservation must still be to be cancelled.
const CancellationWindow = 2 * time.Hour

var (
	ErrNotConfirmed             = errors.New("only confirmed reservations can be cancelled")
	ErrAlreadyCancelled         = errors.New("reservation is already cancelled")
	ErrCancellationWindowClosed = errors.New("reservation starts in less than 2 hours")
)

// CheckCancellation returns nil when r may be cancelled at now, or the reason it may not.
func CheckCancellation(r *models.Reservation, now time.Time) error {
	switch r.Status {
	case models.StatusConfirmed:
	case models.StatusCancelled:
		return ErrAlreadyCancelled
	default:
		return ErrNotConfirmed
	}

	start, err := r.StartsAt(now.Location())
	if err != nil {
		return fmt.Errorf("reservation %s: %w", r.ID, err)
	}
	if start.Sub(now) < CancellationWindow {
		return ErrCancellationWindowClosed
	}
	return nil
}

// CanCancel permits cancellation of confirmed reservations starting at least
// CancellationWindow after now.
func CanCancel(r *models.Reservation, now time.Time) bool {
	return CheckCancellation(r, now) == nil
}
