package models

import (
	"time"

	"gorm.io/gorm"
)

type Task struct {
	ID          uint64         `gorm:"primarykey" json:"id"`
	WorkshopID  uint64         `gorm:"not null;index" json:"workshop_id"`
	Title       string         `gorm:"type:varchar(255);not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	OrderIndex  int            `gorm:"not null;default:0" json:"order_index"`
	Active      bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Workshop    Workshop         `gorm:"foreignKey:WorkshopID" json:"workshop,omitempty"`
	Submissions []TaskSubmission `gorm:"foreignKey:TaskID" json:"submissions,omitempty"`
	Groups      []TaskGroup      `gorm:"foreignKey:TaskID" json:"groups,omitempty"`
}
