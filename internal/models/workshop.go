package models

import (
	"time"

	"gorm.io/gorm"
)

type Workshop struct {
	ID          uint64         `gorm:"primarykey" json:"id"`
	Title       string         `gorm:"type:varchar(255);not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	StartsAt    *time.Time     `json:"starts_at"`
	Capacity    int            `gorm:"not null;default:0" json:"capacity"`
	OrderIndex  int            `gorm:"not null;default:0" json:"order_index"`
	Active      bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Registrations []WorkshopRegistration `gorm:"foreignKey:WorkshopID" json:"registrations,omitempty"`
	Tasks         []Task                 `gorm:"foreignKey:WorkshopID" json:"tasks,omitempty"`
}
