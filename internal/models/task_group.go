package models

import "time"

type TaskGroup struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	TaskID    uint64    `gorm:"not null;index" json:"task_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	OwnerID   uint64    `gorm:"not null" json:"owner_id"`
	PartyCode string    `gorm:"type:varchar(16);uniqueIndex;not null" json:"party_code"`
	CreatedAt time.Time `json:"created_at"`

	// Relations
	Task    Task              `gorm:"foreignKey:TaskID" json:"task,omitempty"`
	Members []TaskGroupMember `gorm:"foreignKey:TaskGroupID" json:"members,omitempty"`
}
