package models

// Reservation statuses. Only confirmed reservations occupy a slot.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Sync task statuses.
const (
	SyncStatusPending   = "pending"
	SyncStatusRetry     = "retry"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

const (
	// DefaultSlotGuardTTL bounds how long a booking attempt may hold a slot guard, in seconds.
	DefaultSlotGuardTTL = 10

	// DefaultBookingAttempts per client per window.
	DefaultBookingAttempts = 10

	// DefaultBookingWindow in seconds.
	DefaultBookingWindow = 60

	// WorkerQueueSize is the in-memory sync queue capacity.
	WorkerQueueSize = 128
)

func IsValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}
