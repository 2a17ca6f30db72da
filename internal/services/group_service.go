package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harusame/workshop-live-api/internal/models"
	"github.com/harusame/workshop-live-api/internal/realtime"
	"github.com/harusame/workshop-live-api/internal/repository"
	"github.com/harusame/workshop-live-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrGroupNotFound       = errors.New("group not found")
	ErrGroupMemberNotFound = errors.New("group member not found")
	ErrInvalidGroupName    = errors.New("group name cannot be empty")
	ErrCannotRemoveOwner   = errors.New("the group owner cannot be removed")
	ErrNotGroupOwner       = errors.New("only the group owner can perform this action")
	ErrPartyCodeExhausted  = errors.New("could not issue a unique party code")
)

// CollisionPolicy decides what happens when every collision-retry attempt
// produced an already-taken party code. ProceedOnExhaustion inserts the last
// candidate anyway and lets the store's uniqueness constraint arbitrate;
// FailOnExhaustion returns ErrPartyCodeExhausted.
type CollisionPolicy string

const (
	ProceedOnExhaustion CollisionPolicy = "proceed"
	FailOnExhaustion    CollisionPolicy = "fail"
)

// GroupService issues party codes and manages ad-hoc task groups. The
// client-side collision probe is an optimization only: the database's unique
// index on party_code is the actual enforcement point, so two concurrent
// creates that both pass the probe cannot both insert the same code.
type GroupService struct {
	groupRepo repository.GroupRepository
	taskRepo  repository.TaskRepository
	bus       *realtime.Bus

	maxAttempts int
	policy      CollisionPolicy

	// generateCode is swappable in tests to script collisions.
	generateCode func() (string, error)
}

// NewGroupService creates a new GroupService.
func NewGroupService(groupRepo repository.GroupRepository, taskRepo repository.TaskRepository, bus *realtime.Bus, maxAttempts int, policy CollisionPolicy) *GroupService {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if policy != FailOnExhaustion {
		policy = ProceedOnExhaustion
	}
	return &GroupService{
		groupRepo:    groupRepo,
		taskRepo:     taskRepo,
		bus:          bus,
		maxAttempts:  maxAttempts,
		policy:       policy,
		generateCode: utils.GeneratePartyCode,
	}
}

// CreateGroupInput represents parameters to create a task group.
type CreateGroupInput struct {
	TaskID  uint64
	Name    string
	OwnerID uint64
}

// CreateGroup issues a unique party code and creates the group with the
// owner as its sole member. Code issuance probes for collisions up to the
// configured attempt bound; insertion races that slip past the probe are
// caught by the unique index and retried within the same budget.
func (s *GroupService) CreateGroup(input CreateGroupInput) (*models.TaskGroup, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrInvalidGroupName
	}
	if _, err := s.taskRepo.FindByID(input.TaskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	code, err := s.issueCode()
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		group := &models.TaskGroup{
			TaskID:    input.TaskID,
			Name:      input.Name,
			OwnerID:   input.OwnerID,
			PartyCode: code,
		}
		owner := &models.TaskGroupMember{
			UserID:   input.OwnerID,
			Role:     models.GroupRoleOwner,
			JoinedAt: time.Now(),
		}

		err := s.groupRepo.Create(group, owner)
		if err == nil {
			s.publish(realtime.Event{Type: realtime.EventInsert, New: group})
			return group, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("failed to create group: %w", err)
		}

		// Lost a check-then-act race on the code; draw a new one.
		code, err = s.issueCode()
		if err != nil {
			return nil, err
		}
	}

	return nil, ErrPartyCodeExhausted
}

// issueCode draws candidate codes until one passes the collision probe or
// the attempt budget runs out, at which point the configured policy decides
// between proceeding with the last candidate and failing.
func (s *GroupService) issueCode() (string, error) {
	var code string
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		candidate, err := s.generateCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate party code: %w", err)
		}
		code = candidate

		taken, err := s.groupRepo.CodeExists(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to probe party code: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}

	if s.policy == FailOnExhaustion {
		return "", ErrPartyCodeExhausted
	}
	// Proceed with a possibly-colliding code; the unique index has the
	// final word at insert time.
	return code, nil
}

// JoinByCode adds a user to the group matching the code. Joining a group the
// user already belongs to is a success, not an error.
func (s *GroupService) JoinByCode(code string, userID uint64) (*models.TaskGroup, error) {
	group, err := s.groupRepo.FindByPartyCode(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to find group by code: %w", err)
	}

	member := &models.TaskGroupMember{
		TaskGroupID: group.ID,
		UserID:      userID,
		Role:        models.GroupRoleMember,
		JoinedAt:    time.Now(),
	}
	if err := s.groupRepo.AddMember(member); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("failed to add group member: %w", err)
		}
		// Already a member: idempotent join.
	}

	return group, nil
}

// GetGroup returns a group by id.
func (s *GroupService) GetGroup(id uint64) (*models.TaskGroup, error) {
	group, err := s.groupRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	return group, nil
}

// ListGroups lists one page of a task's groups and the total count.
func (s *GroupService) ListGroups(taskID uint64, params utils.PaginationParams) ([]models.TaskGroup, int64, error) {
	groups, err := s.groupRepo.ListByTask(taskID, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list groups: %w", err)
	}
	total, err := s.groupRepo.CountByTask(taskID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count groups: %w", err)
	}
	return groups, total, nil
}

// ListMembers lists a group's members.
func (s *GroupService) ListMembers(groupID uint64) ([]models.TaskGroupMember, error) {
	if _, err := s.GetGroup(groupID); err != nil {
		return nil, err
	}
	members, err := s.groupRepo.ListMembers(groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	return members, nil
}

// RemoveMember removes a non-owner member. Only the owner may remove other
// members; any member may remove themselves (leave).
func (s *GroupService) RemoveMember(groupID, actorID, targetID uint64) error {
	group, err := s.GetGroup(groupID)
	if err != nil {
		return err
	}
	if targetID == group.OwnerID {
		return ErrCannotRemoveOwner
	}
	if actorID != group.OwnerID && actorID != targetID {
		return ErrNotGroupOwner
	}

	if _, err := s.groupRepo.FindMember(groupID, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGroupMemberNotFound
		}
		return fmt.Errorf("failed to find group member: %w", err)
	}

	if err := s.groupRepo.RemoveMember(groupID, targetID); err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	return nil
}

// DeleteGroup removes a group and its memberships. Owner only.
func (s *GroupService) DeleteGroup(groupID, actorID uint64) error {
	group, err := s.GetGroup(groupID)
	if err != nil {
		return err
	}
	if group.OwnerID != actorID {
		return ErrNotGroupOwner
	}

	if err := s.groupRepo.Delete(groupID); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}

	s.publish(realtime.Event{Type: realtime.EventDelete, Old: group})
	return nil
}

func (s *GroupService) publish(ev realtime.Event) {
	if s.bus != nil {
		s.bus.Publish(realtime.TopicGroups, ev)
	}
}
