package models

import "time"

type WorkshopRegistration struct {
	WorkshopID uint64    `gorm:"primarykey" json:"workshop_id"`
	UserID     uint64    `gorm:"primarykey" json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`

	// Relations
	Workshop Workshop `gorm:"foreignKey:WorkshopID" json:"workshop,omitempty"`
	User     User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
