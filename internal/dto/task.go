package dto

import (
	"time"

	"github.com/harusame/workshop-live-api/internal/models"
	"github.com/harusame/workshop-live-api/internal/services"
)

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID          uint64    `json:"id"`
	WorkshopID  uint64    `json:"workshop_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	OrderIndex  int       `json:"order_index"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// SubmissionDTO represents a task submission in API responses
type SubmissionDTO struct {
	TaskID    uint64    `json:"task_id"`
	UserID    uint64    `json:"user_id"`
	Content   string    `json:"content"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EnrichedTaskDTO is a task plus the fields derived from submissions for the
// requesting user.
type EnrichedTaskDTO struct {
	TaskDTO
	SubmissionCount int            `json:"submission_count"`
	UserSubmitted   bool           `json:"user_submitted"`
	UserSubmission  *SubmissionDTO `json:"user_submission,omitempty"`
}

// ToTaskDTO converts a task model to DTO
func ToTaskDTO(task models.Task) TaskDTO {
	return TaskDTO{
		ID:          task.ID,
		WorkshopID:  task.WorkshopID,
		Title:       task.Title,
		Description: task.Description,
		OrderIndex:  task.OrderIndex,
		Active:      task.Active,
		CreatedAt:   task.CreatedAt,
	}
}

// ToSubmissionDTO converts a submission model to DTO
func ToSubmissionDTO(sub models.TaskSubmission) SubmissionDTO {
	return SubmissionDTO{
		TaskID:    sub.TaskID,
		UserID:    sub.UserID,
		Content:   sub.Content,
		URL:       sub.URL,
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	}
}

// ToEnrichedTaskDTO converts a feed item to DTO
func ToEnrichedTaskDTO(item services.TaskItem) EnrichedTaskDTO {
	out := EnrichedTaskDTO{
		TaskDTO:         ToTaskDTO(item.Entity),
		SubmissionCount: item.RelatedCount,
		UserSubmitted:   item.UserRelated,
	}
	if item.UserRow != nil {
		sub := ToSubmissionDTO(*item.UserRow)
		out.UserSubmission = &sub
	}
	return out
}

// ToEnrichedTaskDTOs converts a feed snapshot to DTOs
func ToEnrichedTaskDTOs(items []services.TaskItem) []EnrichedTaskDTO {
	out := make([]EnrichedTaskDTO, len(items))
	for i, item := range items {
		out[i] = ToEnrichedTaskDTO(item)
	}
	return out
}
