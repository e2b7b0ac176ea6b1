package scheduling

import (
	"encoding/json"
	"strconv"
	"time"
)

const (
	EventBookingCreated     = "booking.created.v1"
	EventBookingTransferred = "booking.transferred.v1"
	EventSlotsGenerated     = "slots.generated.v1"
)

type bookingEventPayload struct {
	BookingID      int64     `json:"booking_id"`
	SlotID         int64     `json:"slot_id"`
	PreviousSlotID int64     `json:"previous_slot_id,omitempty"`
	InterviewerID  int64     `json:"interviewer_id"`
	CandidateName  string    `json:"candidate_name"`
	CandidateEmail string    `json:"candidate_email"`
	SlotStart      time.Time `json:"slot_start"`
}

type slotsGeneratedPayload struct {
	InterviewerID int64     `json:"interviewer_id"`
	Count         int       `json:"count"`
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
}

func bookingEvent(eventType string, b Booking, previousSlotID int64, at time.Time) (Event, error) {
	payload, err := json.Marshal(bookingEventPayload{
		BookingID:      b.ID,
		SlotID:         b.SlotID,
		PreviousSlotID: previousSlotID,
		InterviewerID:  b.InterviewerID,
		CandidateName:  b.CandidateName,
		CandidateEmail: b.CandidateEmail,
		SlotStart:      b.SlotStart.UTC(),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "booking",
		AggregateID:   strconv.FormatInt(b.ID, 10),
		Type:          eventType,
		Payload:       payload,
		OccurredAt:    at,
	}, nil
}

func slotsGeneratedEvent(interviewerID int64, count int, from, to, at time.Time) (Event, error) {
	payload, err := json.Marshal(slotsGeneratedPayload{
		InterviewerID: interviewerID,
		Count:         count,
		From:          from.UTC(),
		To:            to.UTC(),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "interviewer",
		AggregateID:   strconv.FormatInt(interviewerID, 10),
		Type:          EventSlotsGenerated,
		Payload:       payload,
		OccurredAt:    at,
	}, nil
}
