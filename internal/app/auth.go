package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"interview-scheduler/internal/config"
)

// AuthMiddleware accepts a bearer token that is either a valid HMAC JWT or one
// of the configured static tokens.
func AuthMiddleware(cfg config.AuthConfig) gin.HandlerFunc {
	var static []string
	for _, t := range cfg.StaticTokens {
		if t = strings.TrimSpace(t); t != "" {
			static = append(static, t)
		}
	}
	secret := strings.TrimSpace(cfg.JWTSecret)

	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			abortJSON(c, http.StatusUnauthorized, "Unauthorized", "missing authorization")
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortJSON(c, http.StatusUnauthorized, "Unauthorized", "invalid authorization format")
			return
		}
		tokenStr := parts[1]

		if secret != "" {
			_, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenMalformed
				}
				return []byte(secret), nil
			}, jwt.WithLeeway(5*time.Second))
			if err == nil {
				c.Next()
				return
			}
		}

		for _, t := range static {
			if tokenStr == t {
				c.Next()
				return
			}
		}

		abortJSON(c, http.StatusUnauthorized, "Unauthorized", "invalid token")
	}
}
