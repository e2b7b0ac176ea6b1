package app

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"interview-scheduler/internal/scheduling"
	"interview-scheduler/internal/timemath"
)

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

type BookingService interface {
	Claim(ctx context.Context, req scheduling.ClaimRequest) (scheduling.Booking, error)
	Transfer(ctx context.Context, req scheduling.TransferRequest) (scheduling.Booking, error)
	GetBooking(ctx context.Context, id int64) (scheduling.Booking, error)
}

type SlotLister interface {
	List(ctx context.Context, token string, pageSize int) (scheduling.Page, error)
}

type AvailabilityService interface {
	SubmitAvailability(ctx context.Context, req scheduling.Availability, opts ...scheduling.GenerateOption) (scheduling.Interviewer, []scheduling.TimeSlot, error)
	Regenerate(ctx context.Context, interviewerID int64, opts ...scheduling.GenerateOption) ([]scheduling.TimeSlot, error)
	GetByID(ctx context.Context, id int64) (scheduling.Interviewer, error)
	GetByEmail(ctx context.Context, email string) (scheduling.Interviewer, error)
	Rules(ctx context.Context, interviewerID int64) ([]scheduling.AvailabilityRule, error)
}

type CalendarService interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	BusyIntervals(ctx context.Context, tok *oauth2.Token, from, to time.Time) ([]timemath.Interval, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}
