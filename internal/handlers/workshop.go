package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harusame/workshop-live-api/internal/constants"
	"github.com/harusame/workshop-live-api/internal/dto"
	apierrors "github.com/harusame/workshop-live-api/internal/errors"
	"github.com/harusame/workshop-live-api/internal/middleware"
	"github.com/harusame/workshop-live-api/internal/services"
)

// WorkshopHandler coordinates workshop and registration HTTP handlers.
type WorkshopHandler struct {
	workshopService *services.WorkshopService
}

// NewWorkshopHandler creates a new WorkshopHandler.
func NewWorkshopHandler(workshopService *services.WorkshopService) *WorkshopHandler {
	return &WorkshopHandler{
		workshopService: workshopService,
	}
}

// ListWorkshops returns the enriched workshop collection for the requesting
// user.
func (h *WorkshopHandler) ListWorkshops(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	activeOnly := c.DefaultQuery("active", "true") != "false"
	items, err := h.workshopService.Snapshot(c.Request.Context(), userID, activeOnly)
	if err != nil {
		apierrors.InternalError(c, "Failed to fetch workshops")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"workshops": dto.ToEnrichedWorkshopDTOs(items),
	})
}

// GetWorkshop returns one workshop.
func (h *WorkshopHandler) GetWorkshop(c *gin.Context) {
	workshop, ok := middleware.GetWorkshop(c)
	if !ok {
		apierrors.NotFound(c, "Workshop not found")
		return
	}
	c.JSON(http.StatusOK, dto.ToWorkshopDTO(workshop))
}

// CreateWorkshop creates a new workshop (admin only).
func (h *WorkshopHandler) CreateWorkshop(c *gin.Context) {
	type CreateWorkshopRequest struct {
		Title       string     `json:"title" binding:"required"`
		Description string     `json:"description"`
		StartsAt    *time.Time `json:"starts_at"`
		Capacity    int        `json:"capacity"`
		OrderIndex  int        `json:"order_index"`
	}

	var req CreateWorkshopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	workshop, err := h.workshopService.CreateWorkshop(services.CreateWorkshopInput{
		Title:       req.Title,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		Capacity:    req.Capacity,
		OrderIndex:  req.OrderIndex,
	})
	if err != nil {
		respondWorkshopError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToWorkshopDTO(*workshop))
}

// UpdateWorkshop applies a partial update (admin only).
func (h *WorkshopHandler) UpdateWorkshop(c *gin.Context) {
	workshop, ok := middleware.GetWorkshop(c)
	if !ok {
		apierrors.NotFound(c, "Workshop not found")
		return
	}

	type UpdateWorkshopRequest struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		StartsAt    *time.Time `json:"starts_at"`
		Capacity    *int       `json:"capacity"`
		Active      *bool      `json:"active"`
	}

	var req UpdateWorkshopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	updated, err := h.workshopService.UpdateWorkshop(workshop.ID, services.UpdateWorkshopInput{
		Title:       req.Title,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		Capacity:    req.Capacity,
		Active:      req.Active,
	})
	if err != nil {
		respondWorkshopError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToWorkshopDTO(*updated))
}

// DeleteWorkshop removes a workshop (admin only).
func (h *WorkshopHandler) DeleteWorkshop(c *gin.Context) {
	workshop, ok := middleware.GetWorkshop(c)
	if !ok {
		apierrors.NotFound(c, "Workshop not found")
		return
	}

	if err := h.workshopService.DeleteWorkshop(workshop.ID); err != nil {
		respondWorkshopError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Workshop deleted"})
}

// ReorderWorkshops makes the submitted id permutation the authoritative
// order (admin only).
func (h *WorkshopHandler) ReorderWorkshops(c *gin.Context) {
	type ReorderRequest struct {
		IDs []uint64 `json:"ids" binding:"required,min=1"`
	}

	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	if err := h.workshopService.Reorder(req.IDs); err != nil {
		respondWorkshopError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Workshops reordered"})
}

// Register registers the current user for a workshop.
func (h *WorkshopHandler) Register(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	workshop, ok := middleware.GetWorkshop(c)
	if !ok {
		apierrors.NotFound(c, "Workshop not found")
		return
	}

	reg, err := h.workshopService.Register(workshop.ID, userID)
	if err != nil {
		respondWorkshopError(c, err)
		return
	}

	c.JSON(http.StatusCreated, reg)
}

// Unregister removes the current user's registration.
func (h *WorkshopHandler) Unregister(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	workshop, ok := middleware.GetWorkshop(c)
	if !ok {
		apierrors.NotFound(c, "Workshop not found")
		return
	}

	if err := h.workshopService.Unregister(workshop.ID, userID); err != nil {
		respondWorkshopError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Registration removed"})
}

// LiveWorkshops streams the enriched workshop collection over SSE. A feed is
// activated per connection and torn down when the client disconnects.
func (h *WorkshopHandler) LiveWorkshops(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	feed, err := h.workshopService.NewFeed(c.Request.Context(), userID, true)
	if err != nil {
		// The feed keeps running in degraded (poll-only) mode after a
		// failed baseline fetch, but without a baseline there is nothing
		// meaningful to stream yet.
		feed.Close()
		apierrors.ServiceUnavailable(c, "Failed to load workshops")
		return
	}
	defer feed.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.SSEvent("workshops", dto.ToEnrichedWorkshopDTOs(feed.Items()))
	c.Writer.Flush()

	heartbeat := time.NewTicker(constants.SSEHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-feed.Updates():
			c.SSEvent("workshops", dto.ToEnrichedWorkshopDTOs(feed.Items()))
			c.Writer.Flush()
		case <-heartbeat.C:
			// Keep-alive. A degraded feed also gets a refresh nudge here
			// instead of waiting out the poll interval; the throttle bounds
			// how often that turns into a read.
			if feed.Err() != nil {
				feed.Refresh()
			}
			c.SSEvent("ping", time.Now().Unix())
			c.Writer.Flush()
		}
	}
}

func respondWorkshopError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrWorkshopNotFound):
		apierrors.NotFound(c, "Workshop not found")
	case errors.Is(err, services.ErrInvalidWorkshopTitle):
		apierrors.BadRequest(c, "Workshop title cannot be empty")
	case errors.Is(err, services.ErrWorkshopFull):
		apierrors.Conflict(c, "Workshop is at capacity")
	case errors.Is(err, services.ErrAlreadyRegistered):
		apierrors.Conflict(c, "Already registered for this workshop")
	case errors.Is(err, services.ErrNotRegistered):
		apierrors.NotFound(c, "Registration not found")
	default:
		apierrors.InternalError(c, "")
	}
}
