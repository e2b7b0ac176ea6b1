package scheduling

import (
	"time"

	"interview-scheduler/internal/timemath"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "AVAILABLE"
	SlotBooked    SlotStatus = "BOOKED"
	SlotCancelled SlotStatus = "CANCELLED"
)

func (s SlotStatus) Valid() bool {
	switch s {
	case SlotAvailable, SlotBooked, SlotCancelled:
		return true
	}
	return false
}

// Interviewer owns availability rules and slots by id; nothing holds a live reference back.
type Interviewer struct {
	ID                   int64     `json:"id"`
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	MaxInterviewsPerWeek int       `json:"maxInterviewsPerWeek"`
	Version              int64     `json:"version"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// AvailabilityRule is a recurring weekly window that is cut into fixed-length slots.
type AvailabilityRule struct {
	ID                  int64              `json:"id"`
	InterviewerID       int64              `json:"interviewerId"`
	DayOfWeek           time.Weekday       `json:"dayOfWeek"`
	StartTime           timemath.ClockTime `json:"startTime"`
	EndTime             timemath.ClockTime `json:"endTime"`
	SlotDurationMinutes int                `json:"slotDurationMinutes"`
}

func (r AvailabilityRule) SlotDuration() time.Duration {
	return time.Duration(r.SlotDurationMinutes) * time.Minute
}

func (r AvailabilityRule) Valid() bool {
	return r.StartTime.Valid() && r.EndTime.Valid() && r.StartTime < r.EndTime && r.SlotDurationMinutes > 0
}

type TimeSlot struct {
	ID            int64      `json:"id"`
	InterviewerID int64      `json:"interviewerId"`
	Start         time.Time  `json:"slotDateTime"`
	Status        SlotStatus `json:"status"`
	Version       int64      `json:"-"`
}

// Booking references exactly one slot. SlotStart and InterviewerID are resolved
// from the slot when the booking is returned to a caller.
type Booking struct {
	ID             int64     `json:"bookingId"`
	SlotID         int64     `json:"timeSlotId"`
	CandidateName  string    `json:"candidateName"`
	CandidateEmail string    `json:"candidateEmail"`
	CreatedAt      time.Time `json:"bookingDateTime"`
	UpdatedAt      time.Time `json:"updatedAt"`

	SlotStart     time.Time `json:"slotDateTime"`
	InterviewerID int64     `json:"interviewerId"`
}

// Event is a domain event written in the same transaction as the change it describes.
type Event struct {
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	OccurredAt    time.Time
}
