package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/quizarena/quizarena-backend/internal/response"
	"github.com/quizarena/quizarena-backend/internal/service"
)

const (
	// ContextKeyAttemptClaims is the Gin context key for attempt token claims.
	ContextKeyAttemptClaims = "attempt_claims"

	// AttemptIDParam is the route parameter the token must match.
	AttemptIDParam = "attempt_id"
)

// RequireAttemptToken validates an attempt token from the Authorization header
// or the ?token= query parameter. WebSocket clients cannot set headers, so the
// query form is accepted everywhere. The token must belong to the attempt
// named in the route.
func RequireAttemptToken(tokens *service.AttemptTokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := tokens.Validate(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		if id := c.Param(AttemptIDParam); id != "" && id != claims.AttemptID {
			response.AbortFail(c, http.StatusForbidden, response.ErrTokenMismatch)
			return
		}

		c.Set(ContextKeyAttemptClaims, claims)
		c.Next()
	}
}

// GetAttemptClaims retrieves the attempt claims from the Gin context.
func GetAttemptClaims(c *gin.Context) *service.AttemptClaims {
	val, exists := c.Get(ContextKeyAttemptClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.AttemptClaims)
	if !ok {
		return nil
	}
	return claims
}

func bearerToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Query("token")
}
