package models

import "time"

type GroupRole string

const (
	GroupRoleOwner  GroupRole = "owner"
	GroupRoleMember GroupRole = "member"
)

type TaskGroupMember struct {
	TaskGroupID uint64    `gorm:"primarykey" json:"task_group_id"`
	UserID      uint64    `gorm:"primarykey" json:"user_id"`
	Role        GroupRole `gorm:"type:varchar(20);not null" json:"role"`
	JoinedAt    time.Time `json:"joined_at"`

	// Relations
	Group TaskGroup `gorm:"foreignKey:TaskGroupID" json:"group,omitempty"`
	User  User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
