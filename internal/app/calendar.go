package app

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"interview-scheduler/internal/gcal"
)

// GET /calendar/auth
func (a *App) GoogleAuthHandler(c *gin.Context) {
	if a.Calendar == nil {
		abortJSON(c, http.StatusServiceUnavailable, "CalendarNotConfigured", "Google Calendar not configured")
		return
	}
	state := uuid.NewString()
	a.ok(c, http.StatusOK, "Open authUrl to grant calendar access", gin.H{
		"authUrl": a.Calendar.AuthURL(state),
		"state":   state,
	})
}

// GET /oauth2callback
// The token is returned to the caller, who passes it back in X-Google-Token.
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	if a.Calendar == nil {
		abortJSON(c, http.StatusServiceUnavailable, "CalendarNotConfigured", "Google Calendar not configured")
		return
	}
	code := c.Query("code")
	if code == "" {
		a.fail(c, invalid(errors.New("authorization code required")))
		return
	}

	tok, err := a.Calendar.Exchange(c.Request.Context(), code)
	if err != nil {
		a.Log.Warn("oauth code exchange failed", zap.Error(err))
		abortJSON(c, http.StatusBadRequest, "OAuthExchangeFailed", "failed to exchange code for token")
		return
	}
	raw, err := json.Marshal(tok)
	if err != nil {
		a.fail(c, err)
		return
	}

	a.ok(c, http.StatusOK, "Authorization successful", gin.H{
		"state": c.Query("state"),
		"token": string(raw),
	})
}

func (a *App) calendarFail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gcal.ErrNotConfigured):
		abortJSON(c, http.StatusBadRequest, "CalendarNotConfigured", "Google Calendar not configured")
	case errors.Is(err, gcal.ErrInvalidToken):
		a.fail(c, err)
	default:
		a.Log.Warn("calendar import failed", zap.Error(err))
		abortJSON(c, http.StatusBadGateway, "CalendarUnavailable", "failed to read Google Calendar")
	}
}
