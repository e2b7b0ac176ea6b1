package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"interview-scheduler/internal/config"
	"interview-scheduler/internal/logger"
	"interview-scheduler/internal/ratelimit"
)

type RouterConfig struct {
	Auth config.AuthConfig
	// Limiter guards the booking endpoints; nil disables rate limiting.
	Limiter  ratelimit.Limiter
	FailOpen bool
}

func NewRouter(a *App, rc RouterConfig) http.Handler {
	a.defaults()

	r := gin.New()
	r.Use(gin.Recovery(), logger.RequestID(), logger.AccessLog(a.Log))

	r.GET("/healthz", a.HealthHandler)
	r.GET("/readyz", a.ReadyHandler)
	r.GET("/metrics", gin.WrapH(a.Metrics.Handler()))
	r.GET("/oauth2callback", a.GoogleOAuth2CallbackHandler)

	limited := func(c *gin.Context) { c.Next() }
	if rc.Limiter != nil {
		limited = ratelimit.Middleware(rc.Limiter, ratelimit.MiddlewareConfig{
			FailOpen: rc.FailOpen,
			Log:      a.Log,
			Recorder: a.Metrics,
		})
	}

	api := r.Group("/api/v1")
	{
		interviewers := api.Group("/interviewers", AuthMiddleware(rc.Auth))
		{
			interviewers.POST("/availability", a.SubmitAvailabilityHandler)
			interviewers.GET("/:id", a.GetInterviewerHandler)
			interviewers.GET("/:id/availability", a.ListAvailabilityHandler)
			interviewers.GET("/email/:email", a.GetInterviewerByEmailHandler)
			interviewers.POST("/:id/generate", a.RegenerateHandler)
		}

		api.GET("/time-slots/available", a.ListAvailableSlotsHandler)

		bookings := api.Group("/bookings")
		{
			bookings.POST("", limited, a.CreateBookingHandler)
			bookings.PUT("", limited, a.UpdateBookingHandler)
			bookings.GET("/:id", a.GetBookingHandler)
		}

		api.GET("/calendar/auth", AuthMiddleware(rc.Auth), a.GoogleAuthHandler)
	}

	return otelhttp.NewHandler(r, "scheduler")
}
