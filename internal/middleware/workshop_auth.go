package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/harusame/workshop-live-api/internal/database"
	apierrors "github.com/harusame/workshop-live-api/internal/errors"
	"github.com/harusame/workshop-live-api/internal/models"
)

// RequireWorkshopAccess loads the workshop from the :id route parameter and
// stores it in the context for downstream handlers.
func RequireWorkshopAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		workshopIDStr := c.Param("id")
		workshopID, err := strconv.ParseUint(workshopIDStr, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid workshop ID")
			c.Abort()
			return
		}

		var workshop models.Workshop
		if err := database.GetDB().First(&workshop, workshopID).Error; err != nil {
			apierrors.NotFound(c, "Workshop not found")
			c.Abort()
			return
		}

		c.Set("workshop", workshop)
		c.Next()
	}
}

// GetWorkshop retrieves the workshop loaded by RequireWorkshopAccess.
func GetWorkshop(c *gin.Context) (models.Workshop, bool) {
	value, exists := c.Get("workshop")
	if !exists {
		return models.Workshop{}, false
	}
	workshop, ok := value.(models.Workshop)
	return workshop, ok
}
