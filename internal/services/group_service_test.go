package services

import (
	"strings"
	"testing"

	"github.com/harusame/workshop-live-api/internal/constants"
	"github.com/harusame/workshop-live-api/internal/models"
	"github.com/harusame/workshop-live-api/internal/realtime"
	"github.com/harusame/workshop-live-api/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type groupServiceEnv struct {
	db     *gorm.DB
	bus    *realtime.Bus
	svc    *GroupService
	task   *models.Task
	owner  *models.User
	member *models.User
}

func setupGroupServiceEnv(t *testing.T) groupServiceEnv {
	t.Helper()

	db := openServiceTestDB(t)

	bus := realtime.NewBus()
	t.Cleanup(bus.Close)

	groupRepo := repository.NewGroupRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	svc := NewGroupService(groupRepo, taskRepo, bus, constants.PartyCodeMaxAttempts, ProceedOnExhaustion)

	owner := createServiceTestUser(t, db, "owner")
	member := createServiceTestUser(t, db, "member")
	workshop := createServiceTestWorkshop(t, db, "Workshop", 0)
	task := createServiceTestTask(t, db, workshop.ID, "Task", 0)

	return groupServiceEnv{
		db:     db,
		bus:    bus,
		svc:    svc,
		task:   task,
		owner:  owner,
		member: member,
	}
}

// scriptCodes replaces the random code generator with a fixed sequence.
func scriptCodes(svc *GroupService, codes ...string) {
	i := 0
	svc.generateCode = func() (string, error) {
		if i >= len(codes) {
			return codes[len(codes)-1], nil
		}
		code := codes[i]
		i++
		return code, nil
	}
}

func TestGroupService_CreateGroup(t *testing.T) {
	env := setupGroupServiceEnv(t)

	group, err := env.svc.CreateGroup(CreateGroupInput{
		TaskID:  env.task.ID,
		Name:    "Team Rocket",
		OwnerID: env.owner.ID,
	})
	require.NoError(t, err)

	require.Equal(t, "Team Rocket", group.Name)
	require.Len(t, group.PartyCode, constants.PartyCodeLength)
	for _, ch := range group.PartyCode {
		require.True(t, strings.ContainsRune(constants.PartyCodeAlphabet, ch))
	}

	var ownerMember models.TaskGroupMember
	err = env.db.Where("task_group_id = ? AND user_id = ?", group.ID, env.owner.ID).
		First(&ownerMember).Error
	require.NoError(t, err)
	require.Equal(t, models.GroupRoleOwner, ownerMember.Role)
}

func TestGroupService_CreateGroup_PublishesInsert(t *testing.T) {
	env := setupGroupServiceEnv(t)

	sub := env.bus.Subscribe(realtime.TopicGroups)
	defer sub.Cleanup()

	group, err := env.svc.CreateGroup(CreateGroupInput{
		TaskID:  env.task.ID,
		Name:    "Team",
		OwnerID: env.owner.ID,
	})
	require.NoError(t, err)

	ev := <-sub.Events()
	require.Equal(t, realtime.EventInsert, ev.Type)
	require.Equal(t, group, ev.New)
}

func TestGroupService_CreateGroup_EmptyName(t *testing.T) {
	env := setupGroupServiceEnv(t)

	_, err := env.svc.CreateGroup(CreateGroupInput{
		TaskID:  env.task.ID,
		Name:    "   ",
		OwnerID: env.owner.ID,
	})
	require.ErrorIs(t, err, ErrInvalidGroupName)
}

func TestGroupService_CreateGroup_UnknownTask(t *testing.T) {
	env := setupGroupServiceEnv(t)

	_, err := env.svc.CreateGroup(CreateGroupInput{
		TaskID:  9999,
		Name:    "Team",
		OwnerID: env.owner.ID,
	})
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestGroupService_CreateGroup_RetriesOnCollision(t *testing.T) {
	env := setupGroupServiceEnv(t)

	scriptCodes(env.svc, "AAAAAA")
	_, err := env.svc.CreateGroup(CreateGroupInput{
		TaskID:  env.task.ID,
		Name:    "First",
		OwnerID: env.owner.ID,
	})
	require.NoError(t, err)

	// The first candidate is taken; the service must draw again.
	scriptCodes(env.svc, "AAAAAA", "BBBBBB")
	group, err := env.svc.CreateGroup(CreateGroupInput{
		TaskID:  env.task.ID,
		Name:    "Second",
		OwnerID: env.member.ID,
	})
	require.NoError(t, err)
	require.Equal(t, "BBBBBB", group.PartyCode)
}

func TestGroupService_CreateGroup_FailOnExhaustion(t *testing.T) {
	env := setupGroupServiceEnv(t)
	env.svc.policy = FailOnExhaustion
	env.svc.maxAttempts = 3

	scriptCodes(env.svc, "AAAAAA")
	_, err := env.svc.CreateGroup(CreateGroupInput{
		TaskID:  env.task.ID,
		Name:    "First",
		OwnerID: env.owner.ID,
	})
	require.NoError(t, err)

	// Every draw collides; the fail policy gives up instead of inserting.
	_, err = env.svc.CreateGroup(CreateGroupInput{
		TaskID:  env.task.ID,
		Name:    "Second",
		OwnerID: env.member.ID,
	})
	require.ErrorIs(t, err, ErrPartyCodeExhausted)
}

func TestGroupService_CreateGroup_ProceedOnExhaustionRecovers(t *testing.T) {
	env := setupGroupServiceEnv(t)
	env.svc.maxAttempts = 2

	scriptCodes(env.svc, "AAAAAA")
	_, err := env.svc.CreateGroup(CreateGroupInput{
		TaskID:  env.task.ID,
		Name:    "First",
		OwnerID: env.owner.ID,
	})
	require.NoError(t, err)

	// Both probe attempts collide, so the proceed policy tries the insert
	// anyway; the unique index rejects it and the retry draws a free code.
	scriptCodes(env.svc, "AAAAAA", "AAAAAA", "CCCCCC")
	group, err := env.svc.CreateGroup(CreateGroupInput{
		TaskID:  env.task.ID,
		Name:    "Second",
		OwnerID: env.member.ID,
	})
	require.NoError(t, err)
	require.Equal(t, "CCCCCC", group.PartyCode)
}

func TestGroupService_JoinByCode(t *testing.T) {
	env := setupGroupServiceEnv(t)

	scriptCodes(env.svc, "DDDDDD")
	group, err := env.svc.CreateGroup(CreateGroupInput{
		TaskID:  env.task.ID,
		Name:    "Team",
		OwnerID: env.owner.ID,
	})
	require.NoError(t, err)

	// Codes are matched case-insensitively with surrounding space ignored.
	joined, err := env.svc.JoinByCode("  dddddd ", env.member.ID)
	require.NoError(t, err)
	require.Equal(t, group.ID, joined.ID)

	members, err := env.svc.ListMembers(group.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
}

func TestGroupService_JoinByCode_Idempotent(t *testing.T) {
	env := setupGroupServiceEnv(t)

	scriptCodes(env.svc, "DDDDDD")
	group, err := env.svc.CreateGroup(CreateGroupInput{
		TaskID:  env.task.ID,
		Name:    "Team",
		OwnerID: env.owner.ID,
	})
	require.NoError(t, err)

	_, err = env.svc.JoinByCode("DDDDDD", env.member.ID)
	require.NoError(t, err)
	_, err = env.svc.JoinByCode("DDDDDD", env.member.ID)
	require.NoError(t, err)

	members, err := env.svc.ListMembers(group.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
}

func TestGroupService_JoinByCode_UnknownCode(t *testing.T) {
	env := setupGroupServiceEnv(t)

	_, err := env.svc.JoinByCode("ZZZZZZ", env.member.ID)
	require.ErrorIs(t, err, ErrGroupNotFound)
}

func TestGroupService_RemoveMember(t *testing.T) {
	env := setupGroupServiceEnv(t)
	stranger := createServiceTestUser(t, env.db, "stranger")

	scriptCodes(env.svc, "EEEEEE")
	group, err := env.svc.CreateGroup(CreateGroupInput{
		TaskID:  env.task.ID,
		Name:    "Team",
		OwnerID: env.owner.ID,
	})
	require.NoError(t, err)
	_, err = env.svc.JoinByCode("EEEEEE", env.member.ID)
	require.NoError(t, err)

	// The owner cannot be removed, not even by themselves.
	err = env.svc.RemoveMember(group.ID, env.owner.ID, env.owner.ID)
	require.ErrorIs(t, err, ErrCannotRemoveOwner)

	// A non-owner cannot remove someone else.
	err = env.svc.RemoveMember(group.ID, stranger.ID, env.member.ID)
	require.ErrorIs(t, err, ErrNotGroupOwner)

	// The owner can remove a member.
	err = env.svc.RemoveMember(group.ID, env.owner.ID, env.member.ID)
	require.NoError(t, err)

	members, err := env.svc.ListMembers(group.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
}

func TestGroupService_RemoveMember_SelfLeave(t *testing.T) {
	env := setupGroupServiceEnv(t)

	scriptCodes(env.svc, "FFFFFF")
	group, err := env.svc.CreateGroup(CreateGroupInput{
		TaskID:  env.task.ID,
		Name:    "Team",
		OwnerID: env.owner.ID,
	})
	require.NoError(t, err)
	_, err = env.svc.JoinByCode("FFFFFF", env.member.ID)
	require.NoError(t, err)

	err = env.svc.RemoveMember(group.ID, env.member.ID, env.member.ID)
	require.NoError(t, err)

	members, err := env.svc.ListMembers(group.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
}

func TestGroupService_DeleteGroup(t *testing.T) {
	env := setupGroupServiceEnv(t)

	scriptCodes(env.svc, "GGGGGG")
	group, err := env.svc.CreateGroup(CreateGroupInput{
		TaskID:  env.task.ID,
		Name:    "Team",
		OwnerID: env.owner.ID,
	})
	require.NoError(t, err)
	_, err = env.svc.JoinByCode("GGGGGG", env.member.ID)
	require.NoError(t, err)

	err = env.svc.DeleteGroup(group.ID, env.member.ID)
	require.ErrorIs(t, err, ErrNotGroupOwner)

	err = env.svc.DeleteGroup(group.ID, env.owner.ID)
	require.NoError(t, err)

	_, err = env.svc.GetGroup(group.ID)
	require.ErrorIs(t, err, ErrGroupNotFound)

	// Memberships are removed with the group.
	var count int64
	require.NoError(t, env.db.Model(&models.TaskGroupMember{}).
		Where("task_group_id = ?", group.ID).Count(&count).Error)
	require.Zero(t, count)
}

// openServiceTestDB opens an in-memory database with the same error
// translation the production connection uses, so duplicate-key detection
// behaves identically.
func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Workshop{},
		&models.WorkshopRegistration{},
		&models.Task{},
		&models.TaskSubmission{},
		&models.TaskGroup{},
		&models.TaskGroupMember{},
	)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}

func createServiceTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		PasswordHash: "hashed",
		Role:         models.RoleParticipant,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createServiceTestWorkshop(t *testing.T, db *gorm.DB, title string, orderIndex int) *models.Workshop {
	t.Helper()
	workshop := &models.Workshop{
		Title:      title,
		OrderIndex: orderIndex,
		Active:     true,
	}
	require.NoError(t, db.Create(workshop).Error)
	return workshop
}

func createServiceTestTask(t *testing.T, db *gorm.DB, workshopID uint64, title string, orderIndex int) *models.Task {
	t.Helper()
	task := &models.Task{
		WorkshopID: workshopID,
		Title:      title,
		OrderIndex: orderIndex,
		Active:     true,
	}
	require.NoError(t, db.Create(task).Error)
	return task
}
