package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harusame/workshop-live-api/internal/config"
	"github.com/harusame/workshop-live-api/internal/models"
	"github.com/harusame/workshop-live-api/internal/realtime"
	"github.com/harusame/workshop-live-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrWorkshopNotFound     = errors.New("workshop not found")
	ErrInvalidWorkshopTitle = errors.New("workshop title cannot be empty")
	ErrWorkshopFull         = errors.New("workshop is at capacity")
	ErrAlreadyRegistered    = errors.New("user is already registered for this workshop")
	ErrNotRegistered        = errors.New("user is not registered for this workshop")
)

// WorkshopFeed is a live, per-consumer view of the workshop collection:
// workshops enriched with participant counts and the consumer's own
// registration state, kept current by change events with a polling fallback.
type WorkshopFeed = realtime.Cache[models.Workshop, models.WorkshopRegistration]

// WorkshopItem is one entry of a WorkshopFeed snapshot.
type WorkshopItem = realtime.Item[models.Workshop, models.WorkshopRegistration]

// WorkshopService provides business logic for workshops and registrations.
// Every successful write publishes a change event so live feeds converge
// without refetching.
type WorkshopService struct {
	workshopRepo repository.WorkshopRepository
	bus          *realtime.Bus
	cfg          *config.Config
}

// NewWorkshopService creates a new WorkshopService.
func NewWorkshopService(workshopRepo repository.WorkshopRepository, bus *realtime.Bus, cfg *config.Config) *WorkshopService {
	return &WorkshopService{
		workshopRepo: workshopRepo,
		bus:          bus,
		cfg:          cfg,
	}
}

// CreateWorkshopInput represents parameters to create a workshop.
type CreateWorkshopInput struct {
	Title       string
	Description string
	StartsAt    *time.Time
	Capacity    int
	OrderIndex  int
}

// CreateWorkshop creates a new workshop.
func (s *WorkshopService) CreateWorkshop(input CreateWorkshopInput) (*models.Workshop, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, ErrInvalidWorkshopTitle
	}

	workshop := &models.Workshop{
		Title:       input.Title,
		Description: input.Description,
		StartsAt:    input.StartsAt,
		Capacity:    input.Capacity,
		OrderIndex:  input.OrderIndex,
		Active:      true,
	}
	if err := s.workshopRepo.Create(workshop); err != nil {
		return nil, fmt.Errorf("failed to create workshop: %w", err)
	}

	s.publish(realtime.TopicWorkshops, realtime.Event{Type: realtime.EventInsert, New: workshop})
	return workshop, nil
}

// ListWorkshops returns workshops ordered by order_index.
func (s *WorkshopService) ListWorkshops(activeOnly bool) ([]models.Workshop, error) {
	workshops, err := s.workshopRepo.List(repository.WorkshopFilter{ActiveOnly: activeOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to list workshops: %w", err)
	}
	return workshops, nil
}

// GetWorkshop returns a workshop by id.
func (s *WorkshopService) GetWorkshop(id uint64) (*models.Workshop, error) {
	workshop, err := s.workshopRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkshopNotFound
		}
		return nil, fmt.Errorf("failed to find workshop: %w", err)
	}
	return workshop, nil
}

// UpdateWorkshopInput represents updatable workshop fields.
type UpdateWorkshopInput struct {
	Title       *string
	Description *string
	StartsAt    *time.Time
	Capacity    *int
	Active      *bool
}

// UpdateWorkshop applies a partial update to a workshop.
func (s *WorkshopService) UpdateWorkshop(id uint64, input UpdateWorkshopInput) (*models.Workshop, error) {
	workshop, err := s.GetWorkshop(id)
	if err != nil {
		return nil, err
	}
	old := *workshop

	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, ErrInvalidWorkshopTitle
		}
		workshop.Title = *input.Title
	}
	if input.Description != nil {
		workshop.Description = *input.Description
	}
	if input.StartsAt != nil {
		workshop.StartsAt = input.StartsAt
	}
	if input.Capacity != nil {
		workshop.Capacity = *input.Capacity
	}
	if input.Active != nil {
		workshop.Active = *input.Active
	}

	if err := s.workshopRepo.Update(workshop); err != nil {
		return nil, fmt.Errorf("failed to update workshop: %w", err)
	}

	s.publish(realtime.TopicWorkshops, realtime.Event{Type: realtime.EventUpdate, New: workshop, Old: &old})
	return workshop, nil
}

// DeleteWorkshop removes a workshop.
func (s *WorkshopService) DeleteWorkshop(id uint64) error {
	workshop, err := s.GetWorkshop(id)
	if err != nil {
		return err
	}

	if err := s.workshopRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete workshop: %w", err)
	}

	s.publish(realtime.TopicWorkshops, realtime.Event{Type: realtime.EventDelete, Old: workshop})
	return nil
}

// Reorder makes the given id permutation the authoritative workshop order
// and publishes the resulting updates.
func (s *WorkshopService) Reorder(ids []uint64) error {
	if err := s.workshopRepo.Reorder(ids); err != nil {
		return fmt.Errorf("failed to reorder workshops: %w", err)
	}

	workshops, err := s.workshopRepo.List(repository.WorkshopFilter{})
	if err != nil {
		return fmt.Errorf("failed to load reordered workshops: %w", err)
	}
	for i := range workshops {
		w := workshops[i]
		s.publish(realtime.TopicWorkshops, realtime.Event{Type: realtime.EventUpdate, New: &w})
	}
	return nil
}

// Register registers a user for a workshop. Registering twice returns
// ErrAlreadyRegistered; capacity is enforced when the workshop has one.
func (s *WorkshopService) Register(workshopID, userID uint64) (*models.WorkshopRegistration, error) {
	workshop, err := s.GetWorkshop(workshopID)
	if err != nil {
		return nil, err
	}

	if workshop.Capacity > 0 {
		count, err := s.workshopRepo.CountRegistrations(workshopID)
		if err != nil {
			return nil, fmt.Errorf("failed to count registrations: %w", err)
		}
		if count >= int64(workshop.Capacity) {
			return nil, ErrWorkshopFull
		}
	}

	reg := &models.WorkshopRegistration{
		WorkshopID: workshopID,
		UserID:     userID,
	}
	if err := s.workshopRepo.AddRegistration(reg); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("failed to add registration: %w", err)
	}

	s.publish(realtime.TopicRegistrations, realtime.Event{Type: realtime.EventInsert, New: reg})
	return reg, nil
}

// Unregister removes a user's registration.
func (s *WorkshopService) Unregister(workshopID, userID uint64) error {
	reg, err := s.workshopRepo.FindRegistration(workshopID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotRegistered
		}
		return fmt.Errorf("failed to find registration: %w", err)
	}

	if err := s.workshopRepo.RemoveRegistration(workshopID, userID); err != nil {
		return fmt.Errorf("failed to remove registration: %w", err)
	}

	s.publish(realtime.TopicRegistrations, realtime.Event{Type: realtime.EventDelete, Old: reg})
	return nil
}

// NewFeed activates a live workshop feed for one consumer. activeOnly scopes
// the feed to active workshops; userID drives the user_registered flag and
// may be zero for anonymous consumers. The caller owns the feed and must
// Close it when the consumer goes away.
func (s *WorkshopService) NewFeed(ctx context.Context, userID uint64, activeOnly bool) (*WorkshopFeed, error) {
	return realtime.NewCache(ctx, s.feedConfig(userID, activeOnly))
}

// Snapshot performs a one-off enriched read of the workshop collection, the
// same read a feed performs as its baseline.
func (s *WorkshopService) Snapshot(ctx context.Context, userID uint64, activeOnly bool) ([]WorkshopItem, error) {
	return realtime.LoadSnapshot(ctx, s.feedConfig(userID, activeOnly))
}

func (s *WorkshopService) feedConfig(userID uint64, activeOnly bool) realtime.Config[models.Workshop, models.WorkshopRegistration] {
	var include func(models.Workshop) bool
	if activeOnly {
		include = func(w models.Workshop) bool { return w.Active }
	}

	return realtime.Config[models.Workshop, models.WorkshopRegistration]{
		Bus:   s.bus,
		Topic: realtime.TopicWorkshops,
		Related: &realtime.RelatedOptions[models.WorkshopRegistration]{
			Topic:    realtime.TopicRegistrations,
			ParentID: func(r models.WorkshopRegistration) uint64 { return r.WorkshopID },
			UserID:   func(r models.WorkshopRegistration) uint64 { return r.UserID },
		},
		Options: realtime.Options[models.Workshop]{
			ID:      func(w models.Workshop) uint64 { return w.ID },
			Less:    func(a, b models.Workshop) bool { return a.OrderIndex < b.OrderIndex },
			Include: include,
			SetOrder: func(w *models.Workshop, i int) {
				w.OrderIndex = i
			},
		},
		Fetch: func(ctx context.Context) ([]models.Workshop, error) {
			return s.workshopRepo.List(repository.WorkshopFilter{ActiveOnly: activeOnly})
		},
		Enrich: func(ctx context.Context, w models.Workshop) (int, *models.WorkshopRegistration, error) {
			count, err := s.workshopRepo.CountRegistrations(w.ID)
			if err != nil {
				return 0, nil, err
			}
			if userID == 0 {
				return int(count), nil, nil
			}
			reg, err := s.workshopRepo.FindRegistration(w.ID, userID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return int(count), nil, nil
				}
				return int(count), nil, err
			}
			return int(count), reg, nil
		},
		UserID:             userID,
		PollInterval:       s.cfg.PollInterval,
		StalenessThreshold: s.cfg.StalenessThreshold(),
		FreshnessWindow:    s.cfg.FreshnessWindow,
		RefreshThrottle:    s.cfg.RefreshThrottle,
	}
}

func (s *WorkshopService) publish(topic string, ev realtime.Event) {
	if s.bus != nil {
		s.bus.Publish(topic, ev)
	}
}
