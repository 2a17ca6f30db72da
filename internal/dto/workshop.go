package dto

import (
	"time"

	"github.com/harusame/workshop-live-api/internal/models"
	"github.com/harusame/workshop-live-api/internal/services"
)

// WorkshopDTO represents a workshop in API responses
type WorkshopDTO struct {
	ID          uint64     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartsAt    *time.Time `json:"starts_at"`
	Capacity    int        `json:"capacity"`
	OrderIndex  int        `json:"order_index"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
}

// EnrichedWorkshopDTO is a workshop plus the fields derived from
// registrations for the requesting user.
type EnrichedWorkshopDTO struct {
	WorkshopDTO
	ParticipantCount int  `json:"participant_count"`
	UserRegistered   bool `json:"user_registered"`
}

// ToWorkshopDTO converts a workshop model to DTO
func ToWorkshopDTO(workshop models.Workshop) WorkshopDTO {
	return WorkshopDTO{
		ID:          workshop.ID,
		Title:       workshop.Title,
		Description: workshop.Description,
		StartsAt:    workshop.StartsAt,
		Capacity:    workshop.Capacity,
		OrderIndex:  workshop.OrderIndex,
		Active:      workshop.Active,
		CreatedAt:   workshop.CreatedAt,
	}
}

// ToEnrichedWorkshopDTO converts a feed item to DTO
func ToEnrichedWorkshopDTO(item services.WorkshopItem) EnrichedWorkshopDTO {
	return EnrichedWorkshopDTO{
		WorkshopDTO:      ToWorkshopDTO(item.Entity),
		ParticipantCount: item.RelatedCount,
		UserRegistered:   item.UserRelated,
	}
}

// ToEnrichedWorkshopDTOs converts a feed snapshot to DTOs
func ToEnrichedWorkshopDTOs(items []services.WorkshopItem) []EnrichedWorkshopDTO {
	out := make([]EnrichedWorkshopDTO, len(items))
	for i, item := range items {
		out[i] = ToEnrichedWorkshopDTO(item)
	}
	return out
}
