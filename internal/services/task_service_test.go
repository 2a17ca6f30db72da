package services

import (
	"context"
	"testing"
	"time"

	"github.com/harusame/workshop-live-api/internal/config"
	"github.com/harusame/workshop-live-api/internal/models"
	"github.com/harusame/workshop-live-api/internal/realtime"
	"github.com/harusame/workshop-live-api/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type taskServiceEnv struct {
	db       *gorm.DB
	bus      *realtime.Bus
	svc      *TaskService
	workshop *models.Workshop
}

func setupTaskServiceEnv(t *testing.T) taskServiceEnv {
	t.Helper()

	db := openServiceTestDB(t)

	bus := realtime.NewBus()
	t.Cleanup(bus.Close)

	cfg := &config.Config{
		PollInterval:    10 * time.Millisecond,
		FreshnessWindow: time.Hour,
		RefreshThrottle: time.Millisecond,
	}
	svc := NewTaskService(repository.NewTaskRepository(db), repository.NewWorkshopRepository(db), bus, cfg)

	workshop := createServiceTestWorkshop(t, db, "Workshop", 0)

	return taskServiceEnv{db: db, bus: bus, svc: svc, workshop: workshop}
}

func TestTaskService_CreateTask(t *testing.T) {
	env := setupTaskServiceEnv(t)

	sub := env.bus.Subscribe(realtime.TopicTasks)
	defer sub.Cleanup()

	task, err := env.svc.CreateTask(CreateTaskInput{
		WorkshopID: env.workshop.ID,
		Title:      "Build a CLI",
	})
	require.NoError(t, err)
	require.True(t, task.Active)

	ev := <-sub.Events()
	require.Equal(t, realtime.EventInsert, ev.Type)
	require.Equal(t, task, ev.New)
}

func TestTaskService_CreateTask_UnknownWorkshop(t *testing.T) {
	env := setupTaskServiceEnv(t)

	_, err := env.svc.CreateTask(CreateTaskInput{WorkshopID: 9999, Title: "T"})
	require.ErrorIs(t, err, ErrWorkshopNotFound)
}

func TestTaskService_Submit(t *testing.T) {
	env := setupTaskServiceEnv(t)
	user := createServiceTestUser(t, env.db, "alice")
	task := createServiceTestTask(t, env.db, env.workshop.ID, "T", 0)

	sub := env.bus.Subscribe(realtime.TopicSubmissions)
	defer sub.Cleanup()

	submission, err := env.svc.Submit(SubmitInput{
		TaskID:  task.ID,
		UserID:  user.ID,
		Content: "my answer",
	})
	require.NoError(t, err)
	require.Equal(t, "my answer", submission.Content)

	ev := <-sub.Events()
	require.Equal(t, realtime.EventInsert, ev.Type)

	// Resubmitting replaces the submission and is reported as an update.
	replaced, err := env.svc.Submit(SubmitInput{
		TaskID:  task.ID,
		UserID:  user.ID,
		Content: "revised answer",
	})
	require.NoError(t, err)
	require.Equal(t, "revised answer", replaced.Content)

	ev = <-sub.Events()
	require.Equal(t, realtime.EventUpdate, ev.Type)

	var count int64
	require.NoError(t, env.db.Model(&models.TaskSubmission{}).
		Where("task_id = ?", task.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestTaskService_Submit_Empty(t *testing.T) {
	env := setupTaskServiceEnv(t)
	task := createServiceTestTask(t, env.db, env.workshop.ID, "T", 0)

	_, err := env.svc.Submit(SubmitInput{TaskID: task.ID, UserID: 1, Content: "  "})
	require.ErrorIs(t, err, ErrEmptySubmission)
}

func TestTaskService_WithdrawSubmission(t *testing.T) {
	env := setupTaskServiceEnv(t)
	user := createServiceTestUser(t, env.db, "alice")
	task := createServiceTestTask(t, env.db, env.workshop.ID, "T", 0)

	_, err := env.svc.Submit(SubmitInput{TaskID: task.ID, UserID: user.ID, URL: "https://example.com"})
	require.NoError(t, err)

	sub := env.bus.Subscribe(realtime.TopicSubmissions)
	defer sub.Cleanup()

	require.NoError(t, env.svc.WithdrawSubmission(task.ID, user.ID))

	ev := <-sub.Events()
	require.Equal(t, realtime.EventDelete, ev.Type)

	err = env.svc.WithdrawSubmission(task.ID, user.ID)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestTaskService_Reorder(t *testing.T) {
	env := setupTaskServiceEnv(t)

	t1 := createServiceTestTask(t, env.db, env.workshop.ID, "A", 0)
	t2 := createServiceTestTask(t, env.db, env.workshop.ID, "B", 1)
	t3 := createServiceTestTask(t, env.db, env.workshop.ID, "C", 2)

	require.NoError(t, env.svc.Reorder(env.workshop.ID, []uint64{t2.ID, t3.ID, t1.ID}))

	tasks, err := env.svc.ListTasks(env.workshop.ID, false)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	require.Equal(t, t2.ID, tasks[0].ID)
	require.Equal(t, t3.ID, tasks[1].ID)
	require.Equal(t, t1.ID, tasks[2].ID)
}

func TestTaskService_Snapshot_ScopedToWorkshop(t *testing.T) {
	env := setupTaskServiceEnv(t)
	other := createServiceTestWorkshop(t, env.db, "Other", 1)

	mine := createServiceTestTask(t, env.db, env.workshop.ID, "Mine", 0)
	createServiceTestTask(t, env.db, other.ID, "Theirs", 0)

	items, err := env.svc.Snapshot(context.Background(), env.workshop.ID, 0, true)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, mine.ID, items[0].Entity.ID)
}

func TestTaskService_FeedIgnoresOtherWorkshops(t *testing.T) {
	env := setupTaskServiceEnv(t)
	other := createServiceTestWorkshop(t, env.db, "Other", 1)
	createServiceTestTask(t, env.db, env.workshop.ID, "Mine", 0)

	feed, err := env.svc.NewFeed(context.Background(), env.workshop.ID, 0, true)
	require.NoError(t, err)
	defer feed.Close()
	require.Len(t, feed.Items(), 1)

	// A task created in another workshop must not leak into this feed.
	_, err = env.svc.CreateTask(CreateTaskInput{WorkshopID: other.ID, Title: "Theirs"})
	require.NoError(t, err)
	// A task in this workshop must show up.
	_, err = env.svc.CreateTask(CreateTaskInput{WorkshopID: env.workshop.ID, Title: "Also mine"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(feed.Items()) == 2
	}, time.Second, time.Millisecond)
	for _, item := range feed.Items() {
		require.Equal(t, env.workshop.ID, item.Entity.WorkshopID)
	}
}

func TestTaskService_FeedCountsSubmissions(t *testing.T) {
	env := setupTaskServiceEnv(t)
	alice := createServiceTestUser(t, env.db, "alice")
	bob := createServiceTestUser(t, env.db, "bob")
	task := createServiceTestTask(t, env.db, env.workshop.ID, "T", 0)

	feed, err := env.svc.NewFeed(context.Background(), env.workshop.ID, alice.ID, true)
	require.NoError(t, err)
	defer feed.Close()

	_, err = env.svc.Submit(SubmitInput{TaskID: task.ID, UserID: alice.ID, Content: "a"})
	require.NoError(t, err)
	_, err = env.svc.Submit(SubmitInput{TaskID: task.ID, UserID: bob.ID, Content: "b"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		items := feed.Items()
		return len(items) == 1 && items[0].RelatedCount == 2 && items[0].UserRelated
	}, time.Second, time.Millisecond)
}
