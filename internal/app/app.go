// Package app is the HTTP boundary of the scheduler: request binding, auth,
// error-kind to status mapping and the Google Calendar OAuth flow.
package app

import (
	"time"

	"go.uber.org/zap"

	"interview-scheduler/internal/metrics"
	"interview-scheduler/internal/scheduling"
	"interview-scheduler/internal/timemath"
)

type App struct {
	Bookings     BookingService
	Slots        SlotLister
	Interviewers AvailabilityService
	// Calendar is nil when Google OAuth is not configured.
	Calendar CalendarService
	Store    Pinger
	Metrics  *metrics.Collector

	Clock        timemath.Clock
	Location     *time.Location
	HorizonWeeks int
	Log          *zap.Logger
}

func (a *App) defaults() {
	if a.Metrics == nil {
		a.Metrics = metrics.NewCollector()
	}
	if a.Clock == nil {
		a.Clock = timemath.SystemClock{}
	}
	if a.Location == nil {
		a.Location = time.UTC
	}
	if a.HorizonWeeks <= 0 {
		a.HorizonWeeks = scheduling.DefaultHorizonWeeks
	}
	if a.Log == nil {
		a.Log = zap.NewNop()
	}
}
