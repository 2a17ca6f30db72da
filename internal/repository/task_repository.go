package repository

import (
	"github.com/harusame/workshop-live-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task
func (r *GormTaskRepository) Create(task *models.Task) error {
	return r.db.Create(task).Error
}

// FindByID finds a task by ID with optional preloading
func (r *GormTaskRepository) FindByID(id uint64, preload ...string) (*models.Task, error) {
	var task models.Task
	query := r.db
	for _, p := range preload {
		query = query.Preload(p)
	}
	if err := query.First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// ListByWorkshop retrieves a workshop's tasks ordered by order_index
func (r *GormTaskRepository) ListByWorkshop(workshopID uint64, activeOnly bool) ([]models.Task, error) {
	var tasks []models.Task
	query := r.db.Model(&models.Task{}).Where("workshop_id = ?", workshopID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	if err := query.Order("order_index ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update updates a task
func (r *GormTaskRepository) Update(task *models.Task) error {
	return r.db.Save(task).Error
}

// Delete soft deletes a task
func (r *GormTaskRepository) Delete(id uint64) error {
	return r.db.Delete(&models.Task{}, id).Error
}

// Reorder rewrites order_index so the workshop's tasks appear in the given
// id order. Ids belonging to other workshops are not touched.
func (r *GormTaskRepository) Reorder(workshopID uint64, ids []uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			if err := tx.Model(&models.Task{}).
				Where("id = ? AND workshop_id = ?", id, workshopID).
				Update("order_index", i).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// CountSubmissions counts submissions for a task
func (r *GormTaskRepository) CountSubmissions(taskID uint64) (int64, error) {
	var count int64
	err := r.db.Model(&models.TaskSubmission{}).
		Where("task_id = ?", taskID).
		Count(&count).Error
	return count, err
}

// FindSubmission finds a user's submission for a task
func (r *GormTaskRepository) FindSubmission(taskID, userID uint64) (*models.TaskSubmission, error) {
	var sub models.TaskSubmission
	if err := r.db.Where("task_id = ? AND user_id = ?", taskID, userID).
		First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// SaveSubmission inserts or updates a user's submission
func (r *GormTaskRepository) SaveSubmission(sub *models.TaskSubmission) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "task_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "url", "updated_at"}),
	}).Create(sub).Error
}

// DeleteSubmission removes a user's submission
func (r *GormTaskRepository) DeleteSubmission(taskID, userID uint64) error {
	return r.db.Where("task_id = ? AND user_id = ?", taskID, userID).
		Delete(&models.TaskSubmission{}).Error
}
