package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harusame/workshop-live-api/internal/constants"
	"github.com/harusame/workshop-live-api/internal/dto"
	apierrors "github.com/harusame/workshop-live-api/internal/errors"
	"github.com/harusame/workshop-live-api/internal/middleware"
	"github.com/harusame/workshop-live-api/internal/services"
)

// TaskHandler coordinates task and submission HTTP handlers.
type TaskHandler struct {
	taskService *services.TaskService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// ListTasks returns a workshop's enriched task collection for the
// requesting user.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	workshop, ok := middleware.GetWorkshop(c)
	if !ok {
		apierrors.NotFound(c, "Workshop not found")
		return
	}

	activeOnly := c.DefaultQuery("active", "true") != "false"
	items, err := h.taskService.Snapshot(c.Request.Context(), workshop.ID, userID, activeOnly)
	if err != nil {
		apierrors.InternalError(c, "Failed to fetch tasks")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": dto.ToEnrichedTaskDTOs(items),
	})
}

// CreateTask creates a task under a workshop (admin only).
func (h *TaskHandler) CreateTask(c *gin.Context) {
	workshop, ok := middleware.GetWorkshop(c)
	if !ok {
		apierrors.NotFound(c, "Workshop not found")
		return
	}

	type CreateTaskRequest struct {
		Title       string `json:"title" binding:"required"`
		Description string `json:"description"`
		OrderIndex  int    `json:"order_index"`
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.CreateTask(services.CreateTaskInput{
		WorkshopID:  workshop.ID,
		Title:       req.Title,
		Description: req.Description,
		OrderIndex:  req.OrderIndex,
	})
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// GetTask returns one task.
func (h *TaskHandler) GetTask(c *gin.Context) {
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(taskID)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// UpdateTask applies a partial update (admin only).
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}

	type UpdateTaskRequest struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Active      *bool   `json:"active"`
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.UpdateTask(taskID, services.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Active:      req.Active,
	})
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// DeleteTask removes a task (admin only).
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(taskID); err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}

// ReorderTasks makes the submitted id permutation the authoritative task
// order within the workshop (admin only).
func (h *TaskHandler) ReorderTasks(c *gin.Context) {
	workshop, ok := middleware.GetWorkshop(c)
	if !ok {
		apierrors.NotFound(c, "Workshop not found")
		return
	}

	type ReorderRequest struct {
		IDs []uint64 `json:"ids" binding:"required,min=1"`
	}

	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	if err := h.taskService.Reorder(workshop.ID, req.IDs); err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tasks reordered"})
}

// Submit records the current user's submission for a task.
func (h *TaskHandler) Submit(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}

	type SubmitRequest struct {
		Content string `json:"content"`
		URL     string `json:"url"`
	}

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	sub, err := h.taskService.Submit(services.SubmitInput{
		TaskID:  taskID,
		UserID:  userID,
		Content: req.Content,
		URL:     req.URL,
	})
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToSubmissionDTO(*sub))
}

// WithdrawSubmission removes the current user's submission.
func (h *TaskHandler) WithdrawSubmission(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}

	if err := h.taskService.WithdrawSubmission(taskID, userID); err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Submission withdrawn"})
}

// LiveTasks streams a workshop's enriched task collection over SSE.
func (h *TaskHandler) LiveTasks(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	workshop, ok := middleware.GetWorkshop(c)
	if !ok {
		apierrors.NotFound(c, "Workshop not found")
		return
	}

	feed, err := h.taskService.NewFeed(c.Request.Context(), workshop.ID, userID, true)
	if err != nil {
		feed.Close()
		apierrors.ServiceUnavailable(c, "Failed to load tasks")
		return
	}
	defer feed.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.SSEvent("tasks", dto.ToEnrichedTaskDTOs(feed.Items()))
	c.Writer.Flush()

	heartbeat := time.NewTicker(constants.SSEHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-feed.Updates():
			c.SSEvent("tasks", dto.ToEnrichedTaskDTOs(feed.Items()))
			c.Writer.Flush()
		case <-heartbeat.C:
			if feed.Err() != nil {
				feed.Refresh()
			}
			c.SSEvent("ping", time.Now().Unix())
			c.Writer.Flush()
		}
	}
}

func taskIDParam(c *gin.Context) (uint64, bool) {
	taskID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid task ID")
		return 0, false
	}
	return taskID, true
}

func respondTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTaskNotFound):
		apierrors.NotFound(c, "Task not found")
	case errors.Is(err, services.ErrWorkshopNotFound):
		apierrors.NotFound(c, "Workshop not found")
	case errors.Is(err, services.ErrInvalidTaskTitle):
		apierrors.BadRequest(c, "Task title cannot be empty")
	case errors.Is(err, services.ErrEmptySubmission):
		apierrors.BadRequest(c, "Submission must have content or a url")
	case errors.Is(err, services.ErrSubmissionNotFound):
		apierrors.NotFound(c, "Submission not found")
	default:
		apierrors.InternalError(c, "")
	}
}
