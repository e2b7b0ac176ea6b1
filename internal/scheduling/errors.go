package scheduling

import "errors"

var (
	ErrSlotNotFound           = errors.New("slot not found")
	ErrBookingNotFound        = errors.New("booking not found")
	ErrInterviewerNotFound    = errors.New("interviewer not found")
	ErrSlotUnavailable        = errors.New("slot is not available")
	ErrDuplicateActiveBooking = errors.New("candidate already has an active booking")
	ErrCapacityExceeded       = errors.New("interviewer has reached the weekly interview limit")
	ErrCandidateMismatch      = errors.New("candidate email does not match booking")
	ErrConcurrentModification = errors.New("record was modified by another transaction")
)

// Errors reported by Store implementations.
var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("version conflict")
)

// IsRetryable reports whether the caller may retry the operation from a fresh read.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
