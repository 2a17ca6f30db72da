package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/harusame/workshop-live-api/internal/database"
	apierrors "github.com/harusame/workshop-live-api/internal/errors"
	"github.com/harusame/workshop-live-api/internal/models"
)

// RequireAdmin checks that the authenticated user has the admin role.
// Must be chained after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		var user models.User
		if err := database.GetDB().First(&user, userID).Error; err != nil {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		if user.Role != models.RoleAdmin {
			apierrors.Forbidden(c, "Only administrators can perform this action")
			c.Abort()
			return
		}

		c.Next()
	}
}
