package scheduling

import (
	"context"
	"time"

	"interview-scheduler/internal/cursor"
)

type Isolation int

const (
	ReadCommitted Isolation = iota
	RepeatableRead
)

func (i Isolation) String() string {
	switch i {
	case RepeatableRead:
		return "repeatable read"
	default:
		return "read committed"
	}
}

// Store runs transactions over interviewers, rules, slots and bookings.
//
// Writes done through a Tx become visible together when fn returns nil, and not
// at all otherwise. If the commit detects that a record changed underneath the
// transaction, InTx returns an error wrapping ErrVersionConflict.
type Store interface {
	InTx(ctx context.Context, iso Isolation, fn func(tx Tx) error) error
}

// Tx is the read/write surface the core needs from storage. Lookups return
// ErrNotFound for a missing id; conditional writes return ErrVersionConflict
// when the stored version differs from the expected one.
type Tx interface {
	GetInterviewer(ctx context.Context, id int64) (Interviewer, error)
	GetInterviewerByEmail(ctx context.Context, email string) (Interviewer, error)
	InsertInterviewer(ctx context.Context, iv *Interviewer) error
	// UpdateInterviewer writes name and capacity, bumping the version.
	UpdateInterviewer(ctx context.Context, iv *Interviewer, expectedVersion int64) error

	ListAvailabilityRules(ctx context.Context, interviewerID int64) ([]AvailabilityRule, error)
	ReplaceAvailabilityRules(ctx context.Context, interviewerID int64, rules []AvailabilityRule) ([]AvailabilityRule, error)

	GetSlot(ctx context.Context, id int64) (TimeSlot, error)
	// ListSlotsInRange returns every slot of the interviewer with start in [from, to).
	ListSlotsInRange(ctx context.Context, interviewerID int64, from, to time.Time) ([]TimeSlot, error)
	InsertSlots(ctx context.Context, slots []TimeSlot) ([]TimeSlot, error)
	// UpdateSlotStatus succeeds only if the stored version equals expectedVersion
	// and returns the new version.
	UpdateSlotStatus(ctx context.Context, id, expectedVersion int64, status SlotStatus) (int64, error)
	// CountBookedSlots counts BOOKED slots of the interviewer with start in [from, to).
	CountBookedSlots(ctx context.Context, interviewerID int64, from, to time.Time) (int, error)
	// ListAvailableSlots returns up to limit AVAILABLE slots ordered by (start, id),
	// strictly after the position when it is not nil.
	ListAvailableSlots(ctx context.Context, after *cursor.Position, limit int) ([]TimeSlot, error)

	// WeekLoadVersion returns the version of the interviewer's load record for the
	// week starting at weekStart, or 0 if none exists yet.
	WeekLoadVersion(ctx context.Context, interviewerID int64, weekStart time.Time) (int64, error)
	BumpWeekLoad(ctx context.Context, interviewerID int64, weekStart time.Time, expectedVersion int64) error

	// CandidateLoadVersion returns the version of the booking record kept per
	// candidate email, or 0 if none exists yet.
	CandidateLoadVersion(ctx context.Context, email string) (int64, error)
	BumpCandidateLoad(ctx context.Context, email string, expectedVersion int64) error

	GetBooking(ctx context.Context, id int64) (Booking, error)
	FindBookingsByEmail(ctx context.Context, email string) ([]Booking, error)
	InsertBooking(ctx context.Context, b *Booking) error
	UpdateBooking(ctx context.Context, b Booking) error

	AppendEvent(ctx context.Context, evt Event) error
}
