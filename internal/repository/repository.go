package repository

import (
	"github.com/harusame/workshop-live-api/internal/models"
	"github.com/harusame/workshop-live-api/internal/utils"
)

// WorkshopRepository defines the interface for workshop data access
type WorkshopRepository interface {
	// Create creates a new workshop
	Create(workshop *models.Workshop) error

	// FindByID finds a workshop by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.Workshop, error)

	// List retrieves workshops ordered by order_index
	List(filter WorkshopFilter) ([]models.Workshop, error)

	// Update updates a workshop
	Update(workshop *models.Workshop) error

	// Delete soft deletes a workshop
	Delete(id uint64) error

	// Reorder rewrites order_index so the workshops appear in the given
	// id order
	Reorder(ids []uint64) error

	// CountRegistrations counts registrations for a workshop
	CountRegistrations(workshopID uint64) (int64, error)

	// FindRegistration finds a user's registration for a workshop
	FindRegistration(workshopID, userID uint64) (*models.WorkshopRegistration, error)

	// AddRegistration registers a user for a workshop
	AddRegistration(reg *models.WorkshopRegistration) error

	// RemoveRegistration removes a user's registration
	RemoveRegistration(workshopID, userID uint64) error
}

// WorkshopFilter holds filtering options for listing workshops
type WorkshopFilter struct {
	ActiveOnly bool
}

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(task *models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.Task, error)

	// ListByWorkshop retrieves a workshop's tasks ordered by order_index
	ListByWorkshop(workshopID uint64, activeOnly bool) ([]models.Task, error)

	// Update updates a task
	Update(task *models.Task) error

	// Delete soft deletes a task
	Delete(id uint64) error

	// Reorder rewrites order_index so the workshop's tasks appear in the
	// given id order
	Reorder(workshopID uint64, ids []uint64) error

	// CountSubmissions counts submissions for a task
	CountSubmissions(taskID uint64) (int64, error)

	// FindSubmission finds a user's submission for a task
	FindSubmission(taskID, userID uint64) (*models.TaskSubmission, error)

	// SaveSubmission inserts or updates a user's submission
	SaveSubmission(sub *models.TaskSubmission) error

	// DeleteSubmission removes a user's submission
	DeleteSubmission(taskID, userID uint64) error
}

// GroupRepository defines the interface for task group data access
type GroupRepository interface {
	// Create inserts a group and its owner membership in one transaction
	Create(group *models.TaskGroup, owner *models.TaskGroupMember) error

	// FindByID finds a group by ID
	FindByID(id uint64) (*models.TaskGroup, error)

	// FindByPartyCode finds a group by its exact party code
	FindByPartyCode(code string) (*models.TaskGroup, error)

	// CodeExists reports whether a party code is already taken
	CodeExists(code string) (bool, error)

	// ListByTask lists groups for a task, paginated
	ListByTask(taskID uint64, params utils.PaginationParams) ([]models.TaskGroup, error)

	// CountByTask counts a task's groups
	CountByTask(taskID uint64) (int64, error)

	// Delete deletes a group and all of its memberships
	Delete(id uint64) error

	// AddMember adds a member to a group
	AddMember(member *models.TaskGroupMember) error

	// RemoveMember removes a member from a group
	RemoveMember(groupID, userID uint64) error

	// FindMember finds a specific group member
	FindMember(groupID, userID uint64) (*models.TaskGroupMember, error)

	// ListMembers lists all members of a group
	ListMembers(groupID uint64) ([]models.TaskGroupMember, error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(username string) (*models.User, error)
}
