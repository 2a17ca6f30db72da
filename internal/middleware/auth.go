package middleware

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/harusame/workshop-live-api/internal/constants"
	apierrors "github.com/harusame/workshop-live-api/internal/errors"
)

// RequireAuth rejects requests without an authenticated session and exposes
// the session's user id to downstream handlers via the context.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := normalizeUserID(sessions.Default(c).Get(constants.ContextKeyUserID))
		if !ok {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyUserID, userID)
		c.Next()
	}
}

// GetUserID retrieves the current user ID from context.
func GetUserID(c *gin.Context) (uint64, bool) {
	value, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}
	return normalizeUserID(value)
}

// normalizeUserID copes with the integer widths a session store can hand
// back after a serialization round trip.
func normalizeUserID(value any) (uint64, bool) {
	switch id := value.(type) {
	case uint64:
		return id, true
	case uint:
		return uint64(id), true
	case int64:
		if id < 0 {
			return 0, false
		}
		return uint64(id), true
	case int:
		if id < 0 {
			return 0, false
		}
		return uint64(id), true
	default:
		return 0, false
	}
}
