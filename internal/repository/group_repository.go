package repository

import (
	"errors"

	"github.com/harusame/workshop-live-api/internal/database"
	"github.com/harusame/workshop-live-api/internal/models"
	"github.com/harusame/workshop-live-api/internal/utils"
	"gorm.io/gorm"
)

// GormGroupRepository is a GORM implementation of GroupRepository
type GormGroupRepository struct {
	db *gorm.DB
}

// NewGroupRepository creates a new GroupRepository
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &GormGroupRepository{db: db}
}

// Create inserts a group and its owner membership in one transaction. A
// party-code collision fails the whole transaction with
// gorm.ErrDuplicatedKey so the caller can retry with a new code.
func (r *GormGroupRepository) Create(group *models.TaskGroup, owner *models.TaskGroupMember) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}
		owner.TaskGroupID = group.ID
		return tx.Create(owner).Error
	})
}

// FindByID finds a group by ID
func (r *GormGroupRepository) FindByID(id uint64) (*models.TaskGroup, error) {
	var group models.TaskGroup
	if err := r.db.First(&group, id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// FindByPartyCode finds a group by its exact party code
func (r *GormGroupRepository) FindByPartyCode(code string) (*models.TaskGroup, error) {
	var group models.TaskGroup
	if err := r.db.Where("party_code = ?", code).First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// CodeExists reports whether a party code is already taken
func (r *GormGroupRepository) CodeExists(code string) (bool, error) {
	var group models.TaskGroup
	err := r.db.Select("id").Where("party_code = ?", code).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListByTask lists groups for a task, paginated
func (r *GormGroupRepository) ListByTask(taskID uint64, params utils.PaginationParams) ([]models.TaskGroup, error) {
	var groups []models.TaskGroup
	if err := r.db.Where("task_id = ?", taskID).
		Order("created_at ASC, id ASC").
		Scopes(database.Paginate(params)).
		Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// CountByTask counts a task's groups
func (r *GormGroupRepository) CountByTask(taskID uint64) (int64, error) {
	var count int64
	err := r.db.Model(&models.TaskGroup{}).
		Where("task_id = ?", taskID).
		Count(&count).Error
	return count, err
}

// Delete deletes a group and all of its memberships in a transaction
func (r *GormGroupRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_group_id = ?", id).
			Delete(&models.TaskGroupMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.TaskGroup{}, id).Error
	})
}

// AddMember adds a member to a group
func (r *GormGroupRepository) AddMember(member *models.TaskGroupMember) error {
	return r.db.Create(member).Error
}

// RemoveMember removes a member from a group
func (r *GormGroupRepository) RemoveMember(groupID, userID uint64) error {
	return r.db.Where("task_group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.TaskGroupMember{}).Error
}

// FindMember finds a specific group member
func (r *GormGroupRepository) FindMember(groupID, userID uint64) (*models.TaskGroupMember, error) {
	var member models.TaskGroupMember
	if err := r.db.Where("task_group_id = ? AND user_id = ?", groupID, userID).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// ListMembers lists all members of a group
func (r *GormGroupRepository) ListMembers(groupID uint64) ([]models.TaskGroupMember, error) {
	var members []models.TaskGroupMember
	if err := r.db.Preload("User").
		Where("task_group_id = ?", groupID).
		Order("joined_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}
