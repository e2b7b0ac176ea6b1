package app_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/oauth2"

	"interview-scheduler/internal/app"
	"interview-scheduler/internal/app/mocks"
	"interview-scheduler/internal/config"
	"interview-scheduler/internal/cursor"
	"interview-scheduler/internal/ratelimit"
	"interview-scheduler/internal/scheduling"
	"interview-scheduler/internal/timemath"
)

const adminToken = "admin-token"

var now = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

type harness struct {
	bookings     *mocks.MockBookingService
	slots        *mocks.MockSlotLister
	interviewers *mocks.MockAvailabilityService
	calendar     *mocks.MockCalendarService
	store        *mocks.MockPinger
	handler      http.Handler
}

type options struct {
	calendar bool
	limiter  ratelimit.Limiter
}

func newHarness(t *testing.T, opts options) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)

	h := &harness{
		bookings:     mocks.NewMockBookingService(ctrl),
		slots:        mocks.NewMockSlotLister(ctrl),
		interviewers: mocks.NewMockAvailabilityService(ctrl),
		calendar:     mocks.NewMockCalendarService(ctrl),
		store:        mocks.NewMockPinger(ctrl),
	}
	a := &app.App{
		Bookings:     h.bookings,
		Slots:        h.slots,
		Interviewers: h.interviewers,
		Store:        h.store,
		Clock:        timemath.NewFixedClock(now),
		Location:     time.UTC,
		HorizonWeeks: 2,
	}
	if opts.calendar {
		a.Calendar = h.calendar
	}
	h.handler = app.NewRouter(a, app.RouterConfig{
		Auth:    config.AuthConfig{StaticTokens: []string{adminToken}},
		Limiter: opts.limiter,
	})
	return h
}

func (h *harness) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Retryable bool            `json:"retryable"`
	Timestamp time.Time       `json:"timestamp"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestCreateBooking(t *testing.T) {
	h := newHarness(t, options{})

	slotStart := now.Add(26 * time.Hour)
	h.bookings.EXPECT().
		Claim(gomock.Any(), scheduling.ClaimRequest{SlotID: 7, CandidateName: "Ann", CandidateEmail: "ann@example.com"}).
		Return(scheduling.Booking{ID: 1, SlotID: 7, CandidateName: "Ann", CandidateEmail: "ann@example.com", SlotStart: slotStart, InterviewerID: 3}, nil)

	rec := h.do(http.MethodPost, "/api/v1/bookings", `{"timeSlotId":7,"candidateName":"Ann","candidateEmail":"ann@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	env := decode(t, rec)
	assert.True(t, env.Success)
	assert.False(t, env.Timestamp.IsZero())

	var b scheduling.Booking
	require.NoError(t, json.Unmarshal(env.Data, &b))
	assert.Equal(t, int64(1), b.ID)
	assert.Equal(t, int64(7), b.SlotID)
	assert.True(t, b.SlotStart.Equal(slotStart))
}

func TestCreateBookingErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		kind      string
		retryable bool
	}{
		{"slot not found", scheduling.ErrSlotNotFound, http.StatusNotFound, "SlotNotFound", false},
		{"unavailable", fmt.Errorf("%w: slot 7 is BOOKED", scheduling.ErrSlotUnavailable), http.StatusBadRequest, "SlotUnavailable", false},
		{"duplicate", scheduling.ErrDuplicateActiveBooking, http.StatusBadRequest, "DuplicateActiveBooking", false},
		{"capacity", fmt.Errorf("%w (2)", scheduling.ErrCapacityExceeded), http.StatusBadRequest, "CapacityExceeded", false},
		{"conflict", scheduling.ErrConcurrentModification, http.StatusConflict, "ConcurrentModification", true},
		{"infrastructure", errors.New("connection reset"), http.StatusInternalServerError, "InternalError", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, options{})
			h.bookings.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(scheduling.Booking{}, tt.err)

			rec := h.do(http.MethodPost, "/api/v1/bookings", `{"timeSlotId":7,"candidateName":"Ann","candidateEmail":"ann@example.com"}`)
			assert.Equal(t, tt.status, rec.Code)

			env := decode(t, rec)
			assert.False(t, env.Success)
			assert.Equal(t, tt.kind, env.Error)
			assert.Equal(t, tt.retryable, env.Retryable)
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, env.Message, "connection reset")
			}
		})
	}
}

func TestCreateBookingValidation(t *testing.T) {
	bodies := map[string]string{
		"missing email": `{"timeSlotId":7,"candidateName":"Ann"}`,
		"bad email":     `{"timeSlotId":7,"candidateName":"Ann","candidateEmail":"ann"}`,
		"missing slot":  `{"candidateName":"Ann","candidateEmail":"ann@example.com"}`,
		"not json":      `{`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, options{})

			rec := h.do(http.MethodPost, "/api/v1/bookings", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "ValidationError", decode(t, rec).Error)
		})
	}
}

func TestUpdateBooking(t *testing.T) {
	h := newHarness(t, options{})

	h.bookings.EXPECT().
		Transfer(gomock.Any(), scheduling.TransferRequest{BookingID: 1, NewSlotID: 9, CandidateName: "Ann B", CandidateEmail: "ann@example.com"}).
		Return(scheduling.Booking{ID: 1, SlotID: 9, CandidateName: "Ann B"}, nil)

	rec := h.do(http.MethodPut, "/api/v1/bookings", `{"bookingId":1,"newTimeSlotId":9,"candidateName":"Ann B","candidateEmail":"ann@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode(t, rec).Success)
}

func TestUpdateBookingMismatch(t *testing.T) {
	h := newHarness(t, options{})
	h.bookings.EXPECT().Transfer(gomock.Any(), gomock.Any()).Return(scheduling.Booking{}, scheduling.ErrCandidateMismatch)

	rec := h.do(http.MethodPut, "/api/v1/bookings", `{"bookingId":1,"newTimeSlotId":9,"candidateName":"Eve","candidateEmail":"eve@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CandidateMismatch", decode(t, rec).Error)
}

func TestGetBooking(t *testing.T) {
	h := newHarness(t, options{})
	h.bookings.EXPECT().GetBooking(gomock.Any(), int64(5)).Return(scheduling.Booking{ID: 5}, nil)
	h.bookings.EXPECT().GetBooking(gomock.Any(), int64(6)).Return(scheduling.Booking{}, scheduling.ErrBookingNotFound)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/bookings/5", "").Code)

	rec := h.do(http.MethodGet, "/api/v1/bookings/6", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "BookingNotFound", decode(t, rec).Error)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/v1/bookings/abc", "").Code)
}

func TestListAvailableSlots(t *testing.T) {
	h := newHarness(t, options{})

	items := []scheduling.TimeSlot{
		{ID: 1, InterviewerID: 1, Start: now.Add(time.Hour), Status: scheduling.SlotAvailable},
		{ID: 2, InterviewerID: 1, Start: now.Add(2 * time.Hour), Status: scheduling.SlotAvailable},
	}
	h.slots.EXPECT().List(gomock.Any(), "tok", 2).
		Return(scheduling.Page{Items: items, NextCursor: "next", HasMore: true, PageSize: 2}, nil)

	rec := h.do(http.MethodGet, "/api/v1/time-slots/available?cursor=tok&pageSize=2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page struct {
		TimeSlots   []scheduling.TimeSlot `json:"timeSlots"`
		NextCursor  string                `json:"nextCursor"`
		HasNextPage bool                  `json:"hasNextPage"`
		PageSize    int                   `json:"pageSize"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &page))
	assert.Len(t, page.TimeSlots, 2)
	assert.Equal(t, "next", page.NextCursor)
	assert.True(t, page.HasNextPage)
	assert.Equal(t, 2, page.PageSize)
}

func TestListAvailableSlotsErrors(t *testing.T) {
	h := newHarness(t, options{})
	h.slots.EXPECT().List(gomock.Any(), "garbage", 0).Return(scheduling.Page{}, fmt.Errorf("%w: bad token", cursor.ErrInvalidCursor))

	rec := h.do(http.MethodGet, "/api/v1/time-slots/available?cursor=garbage", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidCursor", decode(t, rec).Error)

	rec = h.do(http.MethodGet, "/api/v1/time-slots/available?pageSize=ten", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationError", decode(t, rec).Error)
}

const availabilityBody = `{
	"name": "Ivy",
	"email": "ivy@example.com",
	"maxInterviewsPerWeek": 3,
	"availabilityRules": [
		{"dayOfWeek": "MONDAY", "startTime": "09:00", "endTime": "10:00", "slotDurationMinutes": 30}
	]
}`

func TestSubmitAvailability(t *testing.T) {
	h := newHarness(t, options{})

	h.interviewers.EXPECT().
		SubmitAvailability(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, req scheduling.Availability, _ ...scheduling.GenerateOption) (scheduling.Interviewer, []scheduling.TimeSlot, error) {
			assert.Equal(t, "ivy@example.com", req.Email)
			require.Len(t, req.Rules, 1)
			assert.Equal(t, time.Monday, req.Rules[0].DayOfWeek)
			assert.Equal(t, timemath.MustClock("09:00"), req.Rules[0].StartTime)
			return scheduling.Interviewer{ID: 4, Name: req.Name, Email: req.Email, MaxInterviewsPerWeek: 3, Version: 1},
				make([]scheduling.TimeSlot, 4), nil
		})

	rec := h.do(http.MethodPost, "/api/v1/interviewers/availability", availabilityBody, "Authorization", "Bearer "+adminToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got struct {
		ID             int64 `json:"id"`
		GeneratedSlots int   `json:"generatedSlots"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
	assert.Equal(t, int64(4), got.ID)
	assert.Equal(t, 4, got.GeneratedSlots)
}

func TestSubmitAvailabilityAuth(t *testing.T) {
	h := newHarness(t, options{})

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/v1/interviewers/availability", availabilityBody).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/v1/interviewers/availability", availabilityBody, "Authorization", "Bearer wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/v1/interviewers/availability", availabilityBody, "Authorization", adminToken).Code)
}

func TestSubmitAvailabilityInvalidRule(t *testing.T) {
	bodies := map[string]string{
		"bad day":        `{"name":"Ivy","email":"ivy@example.com","maxInterviewsPerWeek":3,"availabilityRules":[{"dayOfWeek":"FUNDAY","startTime":"09:00","endTime":"10:00","slotDurationMinutes":30}]}`,
		"end before":     `{"name":"Ivy","email":"ivy@example.com","maxInterviewsPerWeek":3,"availabilityRules":[{"dayOfWeek":"MONDAY","startTime":"10:00","endTime":"09:00","slotDurationMinutes":30}]}`,
		"zero duration":  `{"name":"Ivy","email":"ivy@example.com","maxInterviewsPerWeek":3,"availabilityRules":[{"dayOfWeek":"MONDAY","startTime":"09:00","endTime":"10:00","slotDurationMinutes":0}]}`,
		"zero capacity":  `{"name":"Ivy","email":"ivy@example.com","maxInterviewsPerWeek":0,"availabilityRules":[]}`,
		"bad clock time": `{"name":"Ivy","email":"ivy@example.com","maxInterviewsPerWeek":3,"availabilityRules":[{"dayOfWeek":"MONDAY","startTime":"9am","endTime":"10:00","slotDurationMinutes":30}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, options{})
			rec := h.do(http.MethodPost, "/api/v1/interviewers/availability", body, "Authorization", "Bearer "+adminToken)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "ValidationError", decode(t, rec).Error)
		})
	}
}

func TestSubmitAvailabilityWithCalendar(t *testing.T) {
	h := newHarness(t, options{calendar: true})

	from := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	h.calendar.EXPECT().
		BusyIntervals(gomock.Any(), gomock.Any(), from, from.AddDate(0, 0, 14)).
		DoAndReturn(func(_ any, tok *oauth2.Token, _, _ time.Time) ([]timemath.Interval, error) {
			assert.Equal(t, "abc", tok.AccessToken)
			return []timemath.Interval{{Start: from.Add(9 * time.Hour), End: from.Add(10 * time.Hour)}}, nil
		})
	h.interviewers.EXPECT().
		SubmitAvailability(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(scheduling.Interviewer{ID: 1}, nil, nil)

	rec := h.do(http.MethodPost, "/api/v1/interviewers/availability", availabilityBody,
		"Authorization", "Bearer "+adminToken,
		app.GoogleTokenHeader, `{"access_token":"abc"}`)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestSubmitAvailabilityCalendarFailures(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		h := newHarness(t, options{})
		rec := h.do(http.MethodPost, "/api/v1/interviewers/availability", availabilityBody,
			"Authorization", "Bearer "+adminToken, app.GoogleTokenHeader, `{"access_token":"abc"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "CalendarNotConfigured", decode(t, rec).Error)
	})

	t.Run("bad token", func(t *testing.T) {
		h := newHarness(t, options{calendar: true})
		rec := h.do(http.MethodPost, "/api/v1/interviewers/availability", availabilityBody,
			"Authorization", "Bearer "+adminToken, app.GoogleTokenHeader, `not-json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "InvalidGoogleToken", decode(t, rec).Error)
	})

	t.Run("google down", func(t *testing.T) {
		h := newHarness(t, options{calendar: true})
		h.calendar.EXPECT().BusyIntervals(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("503"))
		rec := h.do(http.MethodPost, "/api/v1/interviewers/availability", availabilityBody,
			"Authorization", "Bearer "+adminToken, app.GoogleTokenHeader, `{"access_token":"abc"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestInterviewerLookups(t *testing.T) {
	h := newHarness(t, options{})
	auth := []string{"Authorization", "Bearer " + adminToken}

	h.interviewers.EXPECT().GetByID(gomock.Any(), int64(2)).Return(scheduling.Interviewer{ID: 2}, nil)
	h.interviewers.EXPECT().GetByID(gomock.Any(), int64(3)).Return(scheduling.Interviewer{}, scheduling.ErrInterviewerNotFound)
	h.interviewers.EXPECT().GetByEmail(gomock.Any(), "ivy@example.com").Return(scheduling.Interviewer{ID: 2}, nil)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/interviewers/2", "", auth...).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/v1/interviewers/3", "", auth...).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/interviewers/email/ivy@example.com", "", auth...).Code)
}

func TestListAvailability(t *testing.T) {
	h := newHarness(t, options{})
	auth := []string{"Authorization", "Bearer " + adminToken}

	h.interviewers.EXPECT().Rules(gomock.Any(), int64(2)).Return([]scheduling.AvailabilityRule{{
		ID: 1, InterviewerID: 2, DayOfWeek: time.Monday,
		StartTime: timemath.MustClock("09:00"), EndTime: timemath.MustClock("10:00"), SlotDurationMinutes: 30,
	}}, nil)

	rec := h.do(http.MethodGet, "/api/v1/interviewers/2/availability", "", auth...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rules []map[string]any
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &rules))
	require.Len(t, rules, 1)
	assert.Equal(t, "09:00", rules[0]["startTime"])
}

func TestRegenerate(t *testing.T) {
	h := newHarness(t, options{})
	h.interviewers.EXPECT().Regenerate(gomock.Any(), int64(2), gomock.Any()).Return([]scheduling.TimeSlot{{ID: 10}}, nil)

	rec := h.do(http.MethodPost, "/api/v1/interviewers/2/generate", "", "Authorization", "Bearer "+adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got struct {
		GeneratedSlots int `json:"generatedSlots"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
	assert.Equal(t, 1, got.GeneratedSlots)
}

func TestGoogleAuthFlow(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		h := newHarness(t, options{})
		rec := h.do(http.MethodGet, "/api/v1/calendar/auth", "", "Authorization", "Bearer "+adminToken)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("auth url", func(t *testing.T) {
		h := newHarness(t, options{calendar: true})
		h.calendar.EXPECT().AuthURL(gomock.Any()).Return("https://accounts.google.com/o/oauth2/auth?x=1")

		rec := h.do(http.MethodGet, "/api/v1/calendar/auth", "", "Authorization", "Bearer "+adminToken)
		require.Equal(t, http.StatusOK, rec.Code)

		var got map[string]string
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
		assert.Contains(t, got["authUrl"], "accounts.google.com")
		assert.NotEmpty(t, got["state"])
	})

	t.Run("callback", func(t *testing.T) {
		h := newHarness(t, options{calendar: true})
		h.calendar.EXPECT().Exchange(gomock.Any(), "code-1").Return(&oauth2.Token{AccessToken: "abc"}, nil)

		rec := h.do(http.MethodGet, "/oauth2callback?code=code-1&state=s", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got map[string]string
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
		assert.Contains(t, got["token"], `"access_token":"abc"`)
		assert.Equal(t, "s", got["state"])
	})

	t.Run("callback without code", func(t *testing.T) {
		h := newHarness(t, options{calendar: true})
		assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/oauth2callback", "").Code)
	})

	t.Run("callback exchange fails", func(t *testing.T) {
		h := newHarness(t, options{calendar: true})
		h.calendar.EXPECT().Exchange(gomock.Any(), "bad").Return(nil, errors.New("invalid_grant"))
		assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/oauth2callback?code=bad", "").Code)
	})
}

func TestHealth(t *testing.T) {
	h := newHarness(t, options{})
	h.store.EXPECT().Ping(gomock.Any()).Return(nil)
	h.store.EXPECT().Ping(gomock.Any()).Return(errors.New("db down"))

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/readyz", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, h.do(http.MethodGet, "/readyz", "").Code)
}

func TestBookingRateLimit(t *testing.T) {
	h := newHarness(t, options{limiter: ratelimit.NewMemory(1, time.Minute, nil)})
	h.bookings.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(scheduling.Booking{ID: 1}, nil).Times(1)

	body := `{"timeSlotId":7,"candidateName":"Ann","candidateEmail":"ann@example.com"}`
	assert.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/v1/bookings", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, h.do(http.MethodPost, "/api/v1/bookings", body).Code)

	metrics := h.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), `scheduler_booking_requests_total{op="claim",outcome="ok"} 1`)
	assert.Contains(t, metrics.Body.String(), "scheduler_rate_limited_total 1")
}
