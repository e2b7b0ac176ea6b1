package ratelimit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recorder is notified about every rejected request.
type Recorder interface {
	RecordRateLimited()
}

type MiddlewareConfig struct {
	// FailOpen lets requests through when the limiter itself errors.
	FailOpen bool
	Log      *zap.Logger
	Recorder Recorder
}

// Middleware limits requests per client IP and route.
func Middleware(l Limiter, cfg MiddlewareConfig) gin.HandlerFunc {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ratelimit")

	return func(c *gin.Context) {
		key := c.FullPath() + "|" + c.ClientIP()
		ok, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn("rate limiter error", zap.Error(err))
			if cfg.FailOpen {
				c.Next()
				return
			}
			abort(c, http.StatusServiceUnavailable, "rate limiter unavailable")
			return
		}
		if !ok {
			if cfg.Recorder != nil {
				cfg.Recorder.RecordRateLimited()
			}
			abort(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": msg,
	})
}
