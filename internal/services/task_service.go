package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harusame/workshop-live-api/internal/config"
	"github.com/harusame/workshop-live-api/internal/models"
	"github.com/harusame/workshop-live-api/internal/realtime"
	"github.com/harusame/workshop-live-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrInvalidTaskTitle   = errors.New("task title cannot be empty")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrEmptySubmission    = errors.New("submission must have content or a url")
)

// TaskFeed is a live, per-consumer view of one workshop's tasks, enriched
// with submission counts and the consumer's own submission.
type TaskFeed = realtime.Cache[models.Task, models.TaskSubmission]

// TaskItem is one entry of a TaskFeed snapshot.
type TaskItem = realtime.Item[models.Task, models.TaskSubmission]

// TaskService handles task and submission business logic. Writes publish
// change events for the live feeds.
type TaskService struct {
	taskRepo     repository.TaskRepository
	workshopRepo repository.WorkshopRepository
	bus          *realtime.Bus
	cfg          *config.Config
}

// NewTaskService creates a new TaskService.
func NewTaskService(taskRepo repository.TaskRepository, workshopRepo repository.WorkshopRepository, bus *realtime.Bus, cfg *config.Config) *TaskService {
	return &TaskService{
		taskRepo:     taskRepo,
		workshopRepo: workshopRepo,
		bus:          bus,
		cfg:          cfg,
	}
}

// CreateTaskInput represents input for creating a task.
type CreateTaskInput struct {
	WorkshopID  uint64
	Title       string
	Description string
	OrderIndex  int
}

// CreateTask creates a task under a workshop.
func (s *TaskService) CreateTask(input CreateTaskInput) (*models.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, ErrInvalidTaskTitle
	}
	if _, err := s.workshopRepo.FindByID(input.WorkshopID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkshopNotFound
		}
		return nil, fmt.Errorf("failed to find workshop: %w", err)
	}

	task := &models.Task{
		WorkshopID:  input.WorkshopID,
		Title:       input.Title,
		Description: input.Description,
		OrderIndex:  input.OrderIndex,
		Active:      true,
	}
	if err := s.taskRepo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.publish(realtime.TopicTasks, realtime.Event{Type: realtime.EventInsert, New: task})
	return task, nil
}

// ListTasks returns a workshop's tasks ordered by order_index.
func (s *TaskService) ListTasks(workshopID uint64, activeOnly bool) ([]models.Task, error) {
	tasks, err := s.taskRepo.ListByWorkshop(workshopID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// GetTask returns a task by id.
func (s *TaskService) GetTask(id uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// UpdateTaskInput represents updatable task fields.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Active      *bool
}

// UpdateTask applies a partial update to a task.
func (s *TaskService) UpdateTask(id uint64, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.GetTask(id)
	if err != nil {
		return nil, err
	}
	old := *task

	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, ErrInvalidTaskTitle
		}
		task.Title = *input.Title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Active != nil {
		task.Active = *input.Active
	}

	if err := s.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.publish(realtime.TopicTasks, realtime.Event{Type: realtime.EventUpdate, New: task, Old: &old})
	return task, nil
}

// DeleteTask removes a task.
func (s *TaskService) DeleteTask(id uint64) error {
	task, err := s.GetTask(id)
	if err != nil {
		return err
	}

	if err := s.taskRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.publish(realtime.TopicTasks, realtime.Event{Type: realtime.EventDelete, Old: task})
	return nil
}

// Reorder makes the given id permutation the authoritative task order within
// a workshop and publishes the resulting updates.
func (s *TaskService) Reorder(workshopID uint64, ids []uint64) error {
	if err := s.taskRepo.Reorder(workshopID, ids); err != nil {
		return fmt.Errorf("failed to reorder tasks: %w", err)
	}

	tasks, err := s.taskRepo.ListByWorkshop(workshopID, false)
	if err != nil {
		return fmt.Errorf("failed to load reordered tasks: %w", err)
	}
	for i := range tasks {
		t := tasks[i]
		s.publish(realtime.TopicTasks, realtime.Event{Type: realtime.EventUpdate, New: &t})
	}
	return nil
}

// SubmitInput represents a user's submission for a task.
type SubmitInput struct {
	TaskID  uint64
	UserID  uint64
	Content string
	URL     string
}

// Submit records (or replaces) the user's submission for a task.
func (s *TaskService) Submit(input SubmitInput) (*models.TaskSubmission, error) {
	if strings.TrimSpace(input.Content) == "" && strings.TrimSpace(input.URL) == "" {
		return nil, ErrEmptySubmission
	}
	if _, err := s.GetTask(input.TaskID); err != nil {
		return nil, err
	}

	_, findErr := s.taskRepo.FindSubmission(input.TaskID, input.UserID)
	existed := findErr == nil

	sub := &models.TaskSubmission{
		TaskID:  input.TaskID,
		UserID:  input.UserID,
		Content: input.Content,
		URL:     input.URL,
	}
	if err := s.taskRepo.SaveSubmission(sub); err != nil {
		return nil, fmt.Errorf("failed to save submission: %w", err)
	}

	eventType := realtime.EventInsert
	if existed {
		eventType = realtime.EventUpdate
	}
	s.publish(realtime.TopicSubmissions, realtime.Event{Type: eventType, New: sub})
	return sub, nil
}

// WithdrawSubmission removes the user's submission for a task.
func (s *TaskService) WithdrawSubmission(taskID, userID uint64) error {
	sub, err := s.taskRepo.FindSubmission(taskID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return fmt.Errorf("failed to find submission: %w", err)
	}

	if err := s.taskRepo.DeleteSubmission(taskID, userID); err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}

	s.publish(realtime.TopicSubmissions, realtime.Event{Type: realtime.EventDelete, Old: sub})
	return nil
}

// NewFeed activates a live task feed scoped to one workshop. Task events for
// other workshops leave the feed untouched. The caller owns the feed and
// must Close it.
func (s *TaskService) NewFeed(ctx context.Context, workshopID, userID uint64, activeOnly bool) (*TaskFeed, error) {
	return realtime.NewCache(ctx, s.feedConfig(workshopID, userID, activeOnly))
}

// Snapshot performs a one-off enriched read of a workshop's tasks, the same
// read a feed performs as its baseline.
func (s *TaskService) Snapshot(ctx context.Context, workshopID, userID uint64, activeOnly bool) ([]TaskItem, error) {
	return realtime.LoadSnapshot(ctx, s.feedConfig(workshopID, userID, activeOnly))
}

func (s *TaskService) feedConfig(workshopID, userID uint64, activeOnly bool) realtime.Config[models.Task, models.TaskSubmission] {
	include := func(t models.Task) bool {
		if t.WorkshopID != workshopID {
			return false
		}
		return !activeOnly || t.Active
	}

	return realtime.Config[models.Task, models.TaskSubmission]{
		Bus:   s.bus,
		Topic: realtime.TopicTasks,
		Related: &realtime.RelatedOptions[models.TaskSubmission]{
			Topic:    realtime.TopicSubmissions,
			ParentID: func(sub models.TaskSubmission) uint64 { return sub.TaskID },
			UserID:   func(sub models.TaskSubmission) uint64 { return sub.UserID },
		},
		Options: realtime.Options[models.Task]{
			ID:      func(t models.Task) uint64 { return t.ID },
			Less:    func(a, b models.Task) bool { return a.OrderIndex < b.OrderIndex },
			Include: include,
			SetOrder: func(t *models.Task, i int) {
				t.OrderIndex = i
			},
		},
		Fetch: func(ctx context.Context) ([]models.Task, error) {
			return s.taskRepo.ListByWorkshop(workshopID, activeOnly)
		},
		Enrich: func(ctx context.Context, t models.Task) (int, *models.TaskSubmission, error) {
			count, err := s.taskRepo.CountSubmissions(t.ID)
			if err != nil {
				return 0, nil, err
			}
			if userID == 0 {
				return int(count), nil, nil
			}
			sub, err := s.taskRepo.FindSubmission(t.ID, userID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return int(count), nil, nil
				}
				return int(count), nil, err
			}
			return int(count), sub, nil
		},
		UserID:             userID,
		PollInterval:       s.cfg.PollInterval,
		StalenessThreshold: s.cfg.StalenessThreshold(),
		FreshnessWindow:    s.cfg.FreshnessWindow,
		RefreshThrottle:    s.cfg.RefreshThrottle,
	}
}

func (s *TaskService) publish(topic string, ev realtime.Event) {
	if s.bus != nil {
		s.bus.Publish(topic, ev)
	}
}
