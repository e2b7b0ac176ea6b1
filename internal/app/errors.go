package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"interview-scheduler/internal/cursor"
	"interview-scheduler/internal/gcal"
	"interview-scheduler/internal/scheduling"
)

var errValidation = errors.New("validation failed")

type errorKind struct {
	target error
	name   string
	status int
}

var errorKinds = []errorKind{
	{scheduling.ErrSlotNotFound, "SlotNotFound", http.StatusNotFound},
	{scheduling.ErrBookingNotFound, "BookingNotFound", http.StatusNotFound},
	{scheduling.ErrInterviewerNotFound, "InterviewerNotFound", http.StatusNotFound},
	{scheduling.ErrSlotUnavailable, "SlotUnavailable", http.StatusBadRequest},
	{scheduling.ErrDuplicateActiveBooking, "DuplicateActiveBooking", http.StatusBadRequest},
	{scheduling.ErrCapacityExceeded, "CapacityExceeded", http.StatusBadRequest},
	{scheduling.ErrCandidateMismatch, "CandidateMismatch", http.StatusBadRequest},
	{cursor.ErrInvalidCursor, "InvalidCursor", http.StatusBadRequest},
	{gcal.ErrInvalidToken, "InvalidGoogleToken", http.StatusBadRequest},
	{errValidation, "ValidationError", http.StatusBadRequest},
	{scheduling.ErrConcurrentModification, "ConcurrentModification", http.StatusConflict},
}

// classify maps err to its wire name and status. Unknown errors are internal.
func classify(err error) (string, int) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.name, k.status
		}
	}
	return "InternalError", http.StatusInternalServerError
}

// outcome is the metrics label for the result of a booking call.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	name, _ := classify(err)
	return name
}

func (a *App) fail(c *gin.Context, err error) {
	name, status := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		msg = "internal server error"
	}
	_ = c.Error(err)
	c.JSON(status, response{
		Success:   false,
		Message:   msg,
		Error:     name,
		Retryable: scheduling.IsRetryable(err),
		Timestamp: time.Now().UTC(),
	})
}

func (a *App) ok(c *gin.Context, status int, msg string, data any) {
	c.JSON(status, response{
		Success:   true,
		Message:   msg,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func abortJSON(c *gin.Context, status int, name, msg string) {
	c.AbortWithStatusJSON(status, response{
		Success:   false,
		Message:   msg,
		Error:     name,
		Timestamp: time.Now().UTC(),
	})
}
