package database

import (
	"gorm.io/gorm"

	"github.com/harusame/workshop-live-api/internal/utils"
)

// Paginate limits a query to one page of results. Callers pair it with a
// separate count query to report the total.
func Paginate(params utils.PaginationParams) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((params.Page - 1) * params.Limit).Limit(params.Limit)
	}
}
