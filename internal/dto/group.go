package dto

import (
	"time"

	"github.com/harusame/workshop-live-api/internal/models"
)

// GroupDTO represents a task group in API responses
type GroupDTO struct {
	ID        uint64    `json:"id"`
	TaskID    uint64    `json:"task_id"`
	Name      string    `json:"name"`
	OwnerID   uint64    `json:"owner_id"`
	PartyCode string    `json:"party_code"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupMemberDTO represents a member in a task group
type GroupMemberDTO struct {
	User     UserDTO          `json:"user"`
	Role     models.GroupRole `json:"role"`
	JoinedAt time.Time        `json:"joined_at"`
}

// ToGroupDTO converts a group model to DTO
func ToGroupDTO(group models.TaskGroup) GroupDTO {
	return GroupDTO{
		ID:        group.ID,
		TaskID:    group.TaskID,
		Name:      group.Name,
		OwnerID:   group.OwnerID,
		PartyCode: group.PartyCode,
		CreatedAt: group.CreatedAt,
	}
}

// ToGroupMemberDTO converts a group member to DTO
func ToGroupMemberDTO(member models.TaskGroupMember) GroupMemberDTO {
	return GroupMemberDTO{
		User:     ToUserDTO(member.User),
		Role:     member.Role,
		JoinedAt: member.JoinedAt,
	}
}

// ToGroupMemberDTOs converts group members to DTOs
func ToGroupMemberDTOs(members []models.TaskGroupMember) []GroupMemberDTO {
	out := make([]GroupMemberDTO, len(members))
	for i, member := range members {
		out[i] = ToGroupMemberDTO(member)
	}
	return out
}
