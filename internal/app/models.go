package app

import (
	"fmt"
	"time"

	"interview-scheduler/internal/scheduling"
	"interview-scheduler/internal/timemath"
)

type response struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Retryable bool      `json:"retryable,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type availabilityRuleReq struct {
	DayOfWeek           string `json:"dayOfWeek" binding:"required"`
	StartTime           string `json:"startTime" binding:"required"`
	EndTime             string `json:"endTime" binding:"required"`
	SlotDurationMinutes int    `json:"slotDurationMinutes" binding:"required,gt=0"`
}

type availabilityReq struct {
	Name                 string                `json:"name" binding:"required"`
	Email                string                `json:"email" binding:"required,email"`
	MaxInterviewsPerWeek int                   `json:"maxInterviewsPerWeek" binding:"required,gt=0"`
	AvailabilityRules    []availabilityRuleReq `json:"availabilityRules" binding:"dive"`
}

func (r availabilityReq) toDomain() (scheduling.Availability, error) {
	rules := make([]scheduling.AvailabilityRule, 0, len(r.AvailabilityRules))
	for i, in := range r.AvailabilityRules {
		rule, err := in.toDomain()
		if err != nil {
			return scheduling.Availability{}, fmt.Errorf("availabilityRules[%d]: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return scheduling.Availability{
		Name:                 r.Name,
		Email:                r.Email,
		MaxInterviewsPerWeek: r.MaxInterviewsPerWeek,
		Rules:                rules,
	}, nil
}

func (r availabilityRuleReq) toDomain() (scheduling.AvailabilityRule, error) {
	day, err := timemath.ParseWeekday(r.DayOfWeek)
	if err != nil {
		return scheduling.AvailabilityRule{}, err
	}
	start, err := timemath.ParseClock(r.StartTime)
	if err != nil {
		return scheduling.AvailabilityRule{}, fmt.Errorf("startTime: %w", err)
	}
	end, err := timemath.ParseClock(r.EndTime)
	if err != nil {
		return scheduling.AvailabilityRule{}, fmt.Errorf("endTime: %w", err)
	}
	if start >= end {
		return scheduling.AvailabilityRule{}, fmt.Errorf("startTime %s must be before endTime %s", start, end)
	}
	return scheduling.AvailabilityRule{
		DayOfWeek:           day,
		StartTime:           start,
		EndTime:             end,
		SlotDurationMinutes: r.SlotDurationMinutes,
	}, nil
}

type interviewerResp struct {
	scheduling.Interviewer
	GeneratedSlots int `json:"generatedSlots"`
}

type bookingReq struct {
	TimeSlotID     int64  `json:"timeSlotId" binding:"required,gt=0"`
	CandidateName  string `json:"candidateName" binding:"required"`
	CandidateEmail string `json:"candidateEmail" binding:"required,email"`
}

type updateBookingReq struct {
	BookingID      int64  `json:"bookingId" binding:"required,gt=0"`
	NewTimeSlotID  int64  `json:"newTimeSlotId" binding:"required,gt=0"`
	CandidateName  string `json:"candidateName" binding:"required"`
	CandidateEmail string `json:"candidateEmail" binding:"required,email"`
}

type slotPageResp struct {
	TimeSlots   []scheduling.TimeSlot `json:"timeSlots"`
	NextCursor  string                `json:"nextCursor,omitempty"`
	HasNextPage bool                  `json:"hasNextPage"`
	PageSize    int                   `json:"pageSize"`
}

type generateResp struct {
	GeneratedSlots int                   `json:"generatedSlots"`
	TimeSlots      []scheduling.TimeSlot `json:"timeSlots"`
}
