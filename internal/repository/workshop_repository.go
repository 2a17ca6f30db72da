package repository

import (
	"github.com/harusame/workshop-live-api/internal/models"
	"gorm.io/gorm"
)

// GormWorkshopRepository is a GORM implementation of WorkshopRepository
type GormWorkshopRepository struct {
	db *gorm.DB
}

// NewWorkshopRepository creates a new WorkshopRepository
func NewWorkshopRepository(db *gorm.DB) WorkshopRepository {
	return &GormWorkshopRepository{db: db}
}

// Create creates a new workshop
func (r *GormWorkshopRepository) Create(workshop *models.Workshop) error {
	return r.db.Create(workshop).Error
}

// FindByID finds a workshop by ID with optional preloading
func (r *GormWorkshopRepository) FindByID(id uint64, preload ...string) (*models.Workshop, error) {
	var workshop models.Workshop
	query := r.db
	for _, p := range preload {
		query = query.Preload(p)
	}
	if err := query.First(&workshop, id).Error; err != nil {
		return nil, err
	}
	return &workshop, nil
}

// List retrieves workshops ordered by order_index
func (r *GormWorkshopRepository) List(filter WorkshopFilter) ([]models.Workshop, error) {
	var workshops []models.Workshop
	query := r.db.Model(&models.Workshop{})
	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	if err := query.Order("order_index ASC, id ASC").Find(&workshops).Error; err != nil {
		return nil, err
	}
	return workshops, nil
}

// Update updates a workshop
func (r *GormWorkshopRepository) Update(workshop *models.Workshop) error {
	return r.db.Save(workshop).Error
}

// Delete soft deletes a workshop
func (r *GormWorkshopRepository) Delete(id uint64) error {
	return r.db.Delete(&models.Workshop{}, id).Error
}

// Reorder rewrites order_index so the workshops appear in the given id order
func (r *GormWorkshopRepository) Reorder(ids []uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			if err := tx.Model(&models.Workshop{}).
				Where("id = ?", id).
				Update("order_index", i).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// CountRegistrations counts registrations for a workshop
func (r *GormWorkshopRepository) CountRegistrations(workshopID uint64) (int64, error) {
	var count int64
	err := r.db.Model(&models.WorkshopRegistration{}).
		Where("workshop_id = ?", workshopID).
		Count(&count).Error
	return count, err
}

// FindRegistration finds a user's registration for a workshop
func (r *GormWorkshopRepository) FindRegistration(workshopID, userID uint64) (*models.WorkshopRegistration, error) {
	var reg models.WorkshopRegistration
	if err := r.db.Where("workshop_id = ? AND user_id = ?", workshopID, userID).
		First(&reg).Error; err != nil {
		return nil, err
	}
	return &reg, nil
}

// AddRegistration registers a user for a workshop
func (r *GormWorkshopRepository) AddRegistration(reg *models.WorkshopRegistration) error {
	return r.db.Create(reg).Error
}

// RemoveRegistration removes a user's registration
func (r *GormWorkshopRepository) RemoveRegistration(workshopID, userID uint64) error {
	return r.db.Where("workshop_id = ? AND user_id = ?", workshopID, userID).
		Delete(&models.WorkshopRegistration{}).Error
}
