package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harusame/workshop-live-api/internal/models"
	"github.com/stretchr/testify/require"
)

// fakeSource is an in-memory snapshot source the tests mutate directly.
type fakeSource struct {
	mu        sync.Mutex
	workshops []models.Workshop
	counts    map[uint64]int
	fetchErr  error
	fetches   int
}

func (f *fakeSource) fetch(ctx context.Context) ([]models.Workshop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]models.Workshop, len(f.workshops))
	copy(out, f.workshops)
	return out, nil
}

func (f *fakeSource) enrich(ctx context.Context, w models.Workshop) (int, *models.WorkshopRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[w.ID], nil, nil
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func newTestCache(t *testing.T, bus *Bus, src *fakeSource) *Cache[models.Workshop, models.WorkshopRegistration] {
	t.Helper()

	cache, err := NewCache(context.Background(), Config[models.Workshop, models.WorkshopRegistration]{
		Bus:   bus,
		Topic: TopicWorkshops,
		Related: &RelatedOptions[models.WorkshopRegistration]{
			Topic:    TopicRegistrations,
			ParentID: func(r models.WorkshopRegistration) uint64 { return r.WorkshopID },
			UserID:   func(r models.WorkshopRegistration) uint64 { return r.UserID },
		},
		Options: Options[models.Workshop]{
			ID:   func(w models.Workshop) uint64 { return w.ID },
			Less: func(a, b models.Workshop) bool { return a.OrderIndex < b.OrderIndex },
			SetOrder: func(w *models.Workshop, i int) {
				w.OrderIndex = i
			},
		},
		Fetch:              src.fetch,
		Enrich:             src.enrich,
		UserID:             42,
		PollInterval:       10 * time.Millisecond,
		StalenessThreshold: 25 * time.Millisecond,
		FreshnessWindow:    time.Hour,
		RefreshThrottle:    time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(cache.Close)
	return cache
}

func cacheCounts(cache *Cache[models.Workshop, models.WorkshopRegistration]) map[uint64]int {
	out := make(map[uint64]int)
	for _, item := range cache.Items() {
		out[item.Entity.ID] = item.RelatedCount
	}
	return out
}

func TestCache_BaselineSnapshotWithEnrichment(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	src := &fakeSource{
		workshops: []models.Workshop{
			{ID: 2, OrderIndex: 1, Active: true},
			{ID: 1, OrderIndex: 0, Active: true},
		},
		counts: map[uint64]int{1: 3},
	}

	cache := newTestCache(t, bus, src)

	items := cache.Items()
	require.Len(t, items, 2)
	require.Equal(t, uint64(1), items[0].Entity.ID)
	require.Equal(t, 3, items[0].RelatedCount)
	require.Equal(t, uint64(2), items[1].Entity.ID)
	require.NoError(t, cache.Err())
}

func TestCache_RegistrationEventUpdatesParentCount(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	src := &fakeSource{
		workshops: []models.Workshop{
			{ID: 1, OrderIndex: 0, Active: true},
			{ID: 2, OrderIndex: 1, Active: true},
		},
		counts: map[uint64]int{1: 3},
	}

	cache := newTestCache(t, bus, src)
	require.Equal(t, map[uint64]int{1: 3, 2: 0}, cacheCounts(cache))

	bus.Publish(TopicRegistrations, Event{
		Type: EventInsert,
		New:  &models.WorkshopRegistration{WorkshopID: 2, UserID: 7},
	})

	require.Eventually(t, func() bool {
		counts := cacheCounts(cache)
		return counts[1] == 3 && counts[2] == 1
	}, time.Second, time.Millisecond)
}

func TestCache_WorkshopInsertEvent(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	src := &fakeSource{
		workshops: []models.Workshop{{ID: 1, OrderIndex: 0, Active: true}},
	}

	cache := newTestCache(t, bus, src)

	bus.Publish(TopicWorkshops, Event{
		Type: EventInsert,
		New:  &models.Workshop{ID: 2, OrderIndex: 1, Active: true},
	})

	require.Eventually(t, func() bool {
		return len(cache.Items()) == 2
	}, time.Second, time.Millisecond)
}

func TestCache_StalenessPollerRefetches(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	src := &fakeSource{
		workshops: []models.Workshop{{ID: 1, OrderIndex: 0, Active: true}},
	}

	cache := newTestCache(t, bus, src)

	// Simulate a missed event: the backing store changes but no event is
	// delivered. The poller must notice the silence and refetch.
	src.mu.Lock()
	src.workshops = append(src.workshops, models.Workshop{ID: 2, OrderIndex: 1, Active: true})
	src.mu.Unlock()

	require.Eventually(t, func() bool {
		return len(cache.Items()) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestCache_FetchFailureKeepsPriorState(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	src := &fakeSource{
		workshops: []models.Workshop{{ID: 1, OrderIndex: 0, Active: true}},
	}

	cache := newTestCache(t, bus, src)

	src.mu.Lock()
	src.fetchErr = errors.New("backend down")
	src.mu.Unlock()

	require.Eventually(t, func() bool {
		return cache.Err() != nil
	}, time.Second, 5*time.Millisecond)

	var fetchErr *FetchError
	require.ErrorAs(t, cache.Err(), &fetchErr)
	// Prior cached state is untouched.
	require.Len(t, cache.Items(), 1)

	src.mu.Lock()
	src.fetchErr = nil
	src.mu.Unlock()

	require.Eventually(t, func() bool {
		return cache.Err() == nil
	}, time.Second, 5*time.Millisecond)
}

func TestCache_InitialFetchFailureDegradesAndRecovers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	src := &fakeSource{fetchErr: errors.New("backend down")}

	cache, err := NewCache(context.Background(), Config[models.Workshop, models.WorkshopRegistration]{
		Bus:   bus,
		Topic: TopicWorkshops,
		Options: Options[models.Workshop]{
			ID: func(w models.Workshop) uint64 { return w.ID },
		},
		Fetch:              src.fetch,
		PollInterval:       10 * time.Millisecond,
		StalenessThreshold: 20 * time.Millisecond,
	})
	require.Error(t, err)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	t.Cleanup(cache.Close)

	src.mu.Lock()
	src.fetchErr = nil
	src.workshops = []models.Workshop{{ID: 1, Active: true}}
	src.mu.Unlock()

	require.Eventually(t, func() bool {
		return cache.Err() == nil && len(cache.Items()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCache_ReorderAppliesImmediately(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	src := &fakeSource{
		workshops: []models.Workshop{
			{ID: 1, OrderIndex: 0, Active: true},
			{ID: 2, OrderIndex: 1, Active: true},
			{ID: 3, OrderIndex: 2, Active: true},
		},
	}

	cache := newTestCache(t, bus, src)

	cache.Reorder([]uint64{3, 1, 2})

	items := cache.Items()
	require.Equal(t, uint64(3), items[0].Entity.ID)
	require.Equal(t, uint64(1), items[1].Entity.ID)
	require.Equal(t, uint64(2), items[2].Entity.ID)
	// Entities are rekeyed so later re-sorts keep the permutation.
	require.Equal(t, 0, items[0].Entity.OrderIndex)
	require.Equal(t, 1, items[1].Entity.OrderIndex)
	require.Equal(t, 2, items[2].Entity.OrderIndex)
}

func TestCache_UpdatesSignalCoalesces(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	src := &fakeSource{
		workshops: []models.Workshop{{ID: 1, OrderIndex: 0, Active: true}},
	}

	cache := newTestCache(t, bus, src)

	for i := 0; i < 5; i++ {
		bus.Publish(TopicWorkshops, Event{
			Type: EventUpdate,
			New:  &models.Workshop{ID: 1, OrderIndex: 0, Active: true, Capacity: i},
		})
	}

	select {
	case <-cache.Updates():
	case <-time.After(time.Second):
		t.Fatal("expected an update signal")
	}
}

func TestCache_CloseIdempotentAndSafeAgainstInFlightEvents(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	src := &fakeSource{
		workshops: []models.Workshop{{ID: 1, OrderIndex: 0, Active: true}},
	}

	cache := newTestCache(t, bus, src)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			bus.Publish(TopicWorkshops, Event{
				Type: EventUpdate,
				New:  &models.Workshop{ID: 1, Active: true, Capacity: i},
			})
		}
	}()

	cache.Close()
	cache.Close()
	<-done
}

func TestCache_NilBusRunsPollOnly(t *testing.T) {
	src := &fakeSource{
		workshops: []models.Workshop{{ID: 1, OrderIndex: 0, Active: true}},
	}

	cache, err := NewCache(context.Background(), Config[models.Workshop, models.WorkshopRegistration]{
		Options: Options[models.Workshop]{
			ID: func(w models.Workshop) uint64 { return w.ID },
		},
		Fetch:              src.fetch,
		PollInterval:       10 * time.Millisecond,
		StalenessThreshold: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	src.mu.Lock()
	src.workshops = append(src.workshops, models.Workshop{ID: 2, Active: true})
	src.mu.Unlock()

	require.Eventually(t, func() bool {
		return len(cache.Items()) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestCache_StaleSnapshotDiscarded(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var (
		mu    sync.Mutex
		calls int
	)
	fetchStarted := make(chan struct{})
	releaseFetch := make(chan struct{})

	// The poll interval is effectively off; the second fetch is triggered by
	// Refresh and held open until the test releases it.
	cache, err := NewCache(context.Background(), Config[models.Workshop, models.WorkshopRegistration]{
		Bus:   bus,
		Topic: TopicWorkshops,
		Options: Options[models.Workshop]{
			ID:   func(w models.Workshop) uint64 { return w.ID },
			Less: func(a, b models.Workshop) bool { return a.OrderIndex < b.OrderIndex },
		},
		Fetch: func(ctx context.Context) ([]models.Workshop, error) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 2 {
				close(fetchStarted)
				<-releaseFetch
			}
			return []models.Workshop{{ID: 1, OrderIndex: 0, Active: true}}, nil
		},
		PollInterval:       time.Hour,
		StalenessThreshold: time.Hour,
		FreshnessWindow:    time.Hour,
		RefreshThrottle:    time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(cache.Close)
	require.Len(t, cache.Items(), 1)

	cache.Refresh()
	<-fetchStarted

	// An event lands while the fetch is reading: the event-driven state is
	// newer than whatever the fetch will return.
	bus.Publish(TopicWorkshops, Event{
		Type: EventInsert,
		New:  &models.Workshop{ID: 2, OrderIndex: 1, Active: true},
	})
	require.Eventually(t, func() bool {
		return len(cache.Items()) == 2
	}, time.Second, time.Millisecond)

	close(releaseFetch)

	// The late one-item snapshot must be discarded, not installed.
	time.Sleep(50 * time.Millisecond)
	require.Len(t, cache.Items(), 2)
}

func TestCache_RefreshForcesFetch(t *testing.T) {
	src := &fakeSource{
		workshops: []models.Workshop{{ID: 1, OrderIndex: 0, Active: true}},
	}

	// Poller off: Refresh is the only remaining fetch path.
	cache, err := NewCache(context.Background(), Config[models.Workshop, models.WorkshopRegistration]{
		Options: Options[models.Workshop]{
			ID: func(w models.Workshop) uint64 { return w.ID },
		},
		Fetch:              src.fetch,
		PollInterval:       time.Hour,
		StalenessThreshold: time.Hour,
		FreshnessWindow:    time.Hour,
		RefreshThrottle:    time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	src.mu.Lock()
	src.workshops = append(src.workshops, models.Workshop{ID: 2, Active: true})
	src.mu.Unlock()

	cache.Refresh()

	require.Eventually(t, func() bool {
		return len(cache.Items()) == 2
	}, time.Second, time.Millisecond)
}

func TestCache_RefreshThrottleDropsBackToBack(t *testing.T) {
	src := &fakeSource{
		workshops: []models.Workshop{{ID: 1, OrderIndex: 0, Active: true}},
	}

	cache, err := NewCache(context.Background(), Config[models.Workshop, models.WorkshopRegistration]{
		Options: Options[models.Workshop]{
			ID: func(w models.Workshop) uint64 { return w.ID },
		},
		Fetch:              src.fetch,
		PollInterval:       time.Hour,
		StalenessThreshold: time.Hour,
		FreshnessWindow:    time.Hour,
		RefreshThrottle:    time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	cache.Refresh()
	require.Eventually(t, func() bool {
		return src.fetchCount() == 2
	}, time.Second, time.Millisecond)

	// Inside the throttle window: dropped without a fetch.
	cache.Refresh()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 2, src.fetchCount())
}
