package app

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"interview-scheduler/internal/gcal"
	"interview-scheduler/internal/scheduling"
	"interview-scheduler/internal/timemath"
)

const GoogleTokenHeader = "X-Google-Token"

func invalid(err error) error {
	return fmt.Errorf("%w: %v", errValidation, err)
}

func paramID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid(fmt.Errorf("%s must be a positive integer", name))
	}
	return id, nil
}

// POST /interviewers/availability
func (a *App) SubmitAvailabilityHandler(c *gin.Context) {
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, invalid(err))
		return
	}
	avail, err := req.toDomain()
	if err != nil {
		a.fail(c, invalid(err))
		return
	}

	ctx := c.Request.Context()
	busy, err := a.busyIntervals(ctx, c.GetHeader(GoogleTokenHeader))
	if err != nil {
		a.calendarFail(c, err)
		return
	}

	iv, slots, err := a.Interviewers.SubmitAvailability(ctx, avail, scheduling.ExcludeBusy(busy))
	if err != nil {
		a.fail(c, err)
		return
	}
	a.Metrics.AddGenerated(len(slots))

	a.ok(c, http.StatusCreated, "Availability saved", interviewerResp{Interviewer: iv, GeneratedSlots: len(slots)})
}

// POST /interviewers/:id/generate
func (a *App) RegenerateHandler(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		a.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	busy, err := a.busyIntervals(ctx, c.GetHeader(GoogleTokenHeader))
	if err != nil {
		a.calendarFail(c, err)
		return
	}

	slots, err := a.Interviewers.Regenerate(ctx, id, scheduling.ExcludeBusy(busy))
	if err != nil {
		a.fail(c, err)
		return
	}
	a.Metrics.AddGenerated(len(slots))

	if slots == nil {
		slots = []scheduling.TimeSlot{}
	}
	a.ok(c, http.StatusOK, "Slots generated", generateResp{GeneratedSlots: len(slots), TimeSlots: slots})
}

// GET /interviewers/:id
func (a *App) GetInterviewerHandler(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		a.fail(c, err)
		return
	}
	iv, err := a.Interviewers.GetByID(c.Request.Context(), id)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.ok(c, http.StatusOK, "Interviewer found", iv)
}

// GET /interviewers/:id/availability
func (a *App) ListAvailabilityHandler(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		a.fail(c, err)
		return
	}
	rules, err := a.Interviewers.Rules(c.Request.Context(), id)
	if err != nil {
		a.fail(c, err)
		return
	}
	if rules == nil {
		rules = []scheduling.AvailabilityRule{}
	}
	a.ok(c, http.StatusOK, "Availability rules", rules)
}

// GET /interviewers/email/:email
func (a *App) GetInterviewerByEmailHandler(c *gin.Context) {
	iv, err := a.Interviewers.GetByEmail(c.Request.Context(), c.Param("email"))
	if err != nil {
		a.fail(c, err)
		return
	}
	a.ok(c, http.StatusOK, "Interviewer found", iv)
}

// POST /bookings
func (a *App) CreateBookingHandler(c *gin.Context) {
	var req bookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, invalid(err))
		return
	}

	start := time.Now()
	b, err := a.Bookings.Claim(c.Request.Context(), scheduling.ClaimRequest{
		SlotID:         req.TimeSlotID,
		CandidateName:  req.CandidateName,
		CandidateEmail: req.CandidateEmail,
	})
	a.Metrics.ObserveBooking("claim", outcome(err), time.Since(start))
	if err != nil {
		a.fail(c, err)
		return
	}
	a.ok(c, http.StatusCreated, "Booking created", b)
}

// PUT /bookings
func (a *App) UpdateBookingHandler(c *gin.Context) {
	var req updateBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, invalid(err))
		return
	}

	start := time.Now()
	b, err := a.Bookings.Transfer(c.Request.Context(), scheduling.TransferRequest{
		BookingID:      req.BookingID,
		NewSlotID:      req.NewTimeSlotID,
		CandidateName:  req.CandidateName,
		CandidateEmail: req.CandidateEmail,
	})
	a.Metrics.ObserveBooking("transfer", outcome(err), time.Since(start))
	if err != nil {
		a.fail(c, err)
		return
	}
	a.ok(c, http.StatusOK, "Booking updated", b)
}

// GET /bookings/:id
func (a *App) GetBookingHandler(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		a.fail(c, err)
		return
	}
	b, err := a.Bookings.GetBooking(c.Request.Context(), id)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.ok(c, http.StatusOK, "Booking found", b)
}

// busyIntervals imports the caller's calendar for the generation horizon.
// Without a token there is nothing to exclude.
func (a *App) busyIntervals(ctx context.Context, rawToken string) ([]timemath.Interval, error) {
	if rawToken == "" {
		return nil, nil
	}
	if a.Calendar == nil {
		return nil, gcal.ErrNotConfigured
	}
	tok, err := gcal.ParseToken(rawToken)
	if err != nil {
		return nil, err
	}
	from := timemath.StartOfDay(a.Clock.Now().In(a.Location))
	to := from.AddDate(0, 0, a.HorizonWeeks*7)
	return a.Calendar.BusyIntervals(ctx, tok, from, to)
}
