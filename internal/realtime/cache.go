package realtime

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/harusame/workshop-live-api/internal/constants"
)

// Config wires a Cache to its snapshot source, its topics and its scope.
type Config[T, R any] struct {
	Bus     *Bus
	Topic   string
	Related *RelatedOptions[R]
	Options Options[T]

	// Fetch reads the full collection for the cache's scope.
	Fetch func(ctx context.Context) ([]T, error)
	// Enrich computes the derived fields for one entity: the related-row
	// count and the current user's own related row, if any. One read per
	// entity — a known cost of the snapshot path, not a correctness issue.
	// Optional; nil leaves derived fields zeroed. An enrichment failure for
	// a single entity degrades to zeroed fields rather than failing the
	// whole snapshot.
	Enrich func(ctx context.Context, entity T) (count int, userRow *R, err error)

	// UserID is the authenticated identity; zero means anonymous, in which
	// case user flags stay false.
	UserID uint64

	PollInterval       time.Duration
	StalenessThreshold time.Duration
	FreshnessWindow    time.Duration
	RefreshThrottle    time.Duration
}

func (cfg *Config[T, R]) applyDefaults() {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.DefaultPollInterval
	}
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = time.Duration(constants.DefaultStalenessFactor) * cfg.PollInterval
	}
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = constants.DefaultFreshnessWindow
	}
	if cfg.RefreshThrottle <= 0 {
		cfg.RefreshThrottle = constants.DefaultRefreshThrottle
	}
}

type snapshot[T, R any] struct {
	items []Item[T, R]
	err   error
	seq   uint64 // mutation counter at fetch start
}

// Cache is a per-consumer read-through cache of one entity collection. It
// loads a baseline snapshot, folds change events from the bus into it, and
// falls back to polling when the event stream goes quiet. A Cache belongs to
// exactly one consumer scope: create it when the consumer activates, Close it
// when the consumer goes away.
type Cache[T, R any] struct {
	cfg Config[T, R]

	mu           sync.RWMutex
	items        []Item[T, R]
	fetchErr     error
	seq          uint64
	lastActivity time.Time
	lastFetch    time.Time
	lastRefresh  time.Time

	sub    *Subscription
	relSub *Subscription

	fetching  bool
	results   chan snapshot[T, R]
	refreshCh chan struct{}
	updates   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewCache creates and starts a cache: subscriptions are opened first so no
// event published after the snapshot read can be missed, then the baseline
// snapshot is loaded synchronously. A snapshot failure is returned as a
// *FetchError but the cache keeps running in degraded mode — the staleness
// poller retries until a fetch succeeds or the cache is closed.
func NewCache[T, R any](ctx context.Context, cfg Config[T, R]) (*Cache[T, R], error) {
	cfg.applyDefaults()

	c := &Cache[T, R]{
		cfg:       cfg,
		results:   make(chan snapshot[T, R], 1),
		refreshCh: make(chan struct{}, 1),
		updates:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	if cfg.Bus != nil {
		// A nil subscription (bus already closed) degrades to poll-only.
		c.sub = cfg.Bus.Subscribe(cfg.Topic)
		if cfg.Related != nil {
			c.relSub = cfg.Bus.Subscribe(cfg.Related.Topic)
		}
	}

	var err error
	snap := c.fetchSnapshot(ctx, 0)
	if snap.err != nil {
		err = snap.err
		c.fetchErr = snap.err
	} else {
		c.items = snap.items
		now := time.Now()
		c.lastFetch = now
		c.lastActivity = now
	}

	c.wg.Add(1)
	go c.run()

	return c, err
}

// Items returns a copy of the current collection.
func (c *Cache[T, R]) Items() []Item[T, R] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Item[T, R], len(c.items))
	copy(out, c.items)
	return out
}

// Err reports the most recent snapshot failure, or nil after a successful
// fetch.
func (c *Cache[T, R]) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchErr
}

// Updates signals after every applied mutation. The channel is buffered to
// one so rapid mutations coalesce into a single wakeup.
func (c *Cache[T, R]) Updates() <-chan struct{} {
	return c.updates
}

// Refresh requests an out-of-band snapshot (e.g. the consumer's view became
// visible again). Throttled: requests closer together than the configured
// throttle are dropped.
func (c *Cache[T, R]) Refresh() {
	c.mu.Lock()
	if time.Since(c.lastRefresh) < c.cfg.RefreshThrottle {
		c.mu.Unlock()
		return
	}
	c.lastRefresh = time.Now()
	c.mu.Unlock()

	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// Reorder applies a desired permutation immediately, before the
// corresponding change events round-trip back. Entities are rekeyed to their
// position so a later event-driven re-sort converges to the same order; ids
// not present in the collection are skipped, entities not listed keep their
// relative order after the listed ones.
func (c *Cache[T, R]) Reorder(ids []uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos := make(map[uint64]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}

	ordered := make([]Item[T, R], 0, len(c.items))
	var rest []Item[T, R]
	for _, it := range c.items {
		if _, ok := pos[c.cfg.Options.ID(it.Entity)]; ok {
			ordered = append(ordered, it)
		} else {
			rest = append(rest, it)
		}
	}
	sortByPosition(ordered, pos, c.cfg.Options.ID)

	c.items = append(ordered, rest...)
	if c.cfg.Options.SetOrder != nil {
		for i := range c.items {
			c.cfg.Options.SetOrder(&c.items[i].Entity, i)
		}
	}
	c.seq++
	c.notifyLocked()
}

// Close tears the cache down: subscriptions are cleaned up exactly once and
// the background loop exits. Safe to call multiple times and safe against
// events still in flight.
func (c *Cache[T, R]) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.sub != nil {
			c.sub.Cleanup()
		}
		if c.relSub != nil {
			c.relSub.Cleanup()
		}
		c.wg.Wait()
	})
}

func (c *Cache[T, R]) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	var events, related <-chan Event
	if c.sub != nil {
		events = c.sub.Events()
	}
	if c.relSub != nil {
		related = c.relSub.Events()
	}

	for {
		select {
		case <-c.done:
			return

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.applyPrimary(ev)

		case ev, ok := <-related:
			if !ok {
				related = nil
				continue
			}
			c.applyRelated(ev)

		case <-ticker.C:
			c.maybeFetch(false)

		case <-c.refreshCh:
			c.maybeFetch(true)

		case snap := <-c.results:
			c.installSnapshot(snap)
		}
	}
}

func (c *Cache[T, R]) applyPrimary(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, changed := Apply(c.items, ev, c.cfg.Options)
	c.items = items
	c.lastActivity = time.Now()
	if changed {
		c.seq++
		c.notifyLocked()
	}
}

func (c *Cache[T, R]) applyRelated(ev Event) {
	if c.cfg.Related == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := ApplyRelated(c.items, ev, c.cfg.Options, *c.cfg.Related, c.cfg.UserID)
	c.lastActivity = time.Now()
	if changed {
		c.seq++
		c.notifyLocked()
	}
}

// maybeFetch starts a background snapshot unless one is already outstanding
// or, for poller-driven fetches, the cache has seen recent activity and is
// still within its freshness window.
func (c *Cache[T, R]) maybeFetch(forced bool) {
	c.mu.Lock()
	if c.fetching {
		c.mu.Unlock()
		return
	}
	if !forced {
		fresh := time.Since(c.lastActivity) < c.cfg.StalenessThreshold &&
			time.Since(c.lastFetch) < c.cfg.FreshnessWindow
		if fresh {
			c.mu.Unlock()
			return
		}
	}
	c.fetching = true
	seq := c.seq
	c.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PollInterval)
		defer cancel()
		// results is buffered to one and at most one fetch is in flight, so
		// this send never blocks even if the loop has already exited.
		c.results <- c.fetchSnapshot(ctx, seq)
	}()
}

// installSnapshot commits a completed fetch. A snapshot is discarded when
// any event was applied after the fetch started: the event-driven state is
// newer than what the fetch read, and a stale snapshot must not overwrite it.
func (c *Cache[T, R]) installSnapshot(snap snapshot[T, R]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetching = false

	if snap.err != nil {
		// Keep the previous items untouched.
		c.fetchErr = snap.err
		return
	}
	if snap.seq != c.seq {
		return
	}
	c.items = snap.items
	c.fetchErr = nil
	now := time.Now()
	c.lastFetch = now
	c.lastActivity = now
	c.notifyLocked()
}

func (c *Cache[T, R]) fetchSnapshot(ctx context.Context, seq uint64) snapshot[T, R] {
	items, err := LoadSnapshot(ctx, c.cfg)
	return snapshot[T, R]{items: items, err: err, seq: seq}
}

// LoadSnapshot performs one snapshot read with enrichment: the full
// collection for the scope, each entity's derived fields computed by one
// supplementary read. Usable standalone for request-scoped reads or through
// a Cache. A failed collection read returns a *FetchError; a failed
// enrichment read leaves that entity's derived fields zeroed.
func LoadSnapshot[T, R any](ctx context.Context, cfg Config[T, R]) ([]Item[T, R], error) {
	entities, err := cfg.Fetch(ctx)
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	items := make([]Item[T, R], 0, len(entities))
	for _, entity := range entities {
		if !cfg.Options.include(entity) {
			continue
		}
		item := Item[T, R]{Entity: entity}
		if cfg.Enrich != nil {
			count, userRow, err := cfg.Enrich(ctx, entity)
			if err == nil {
				item.RelatedCount = count
				item.UserRow = userRow
				item.UserRelated = userRow != nil
			}
		}
		items = append(items, item)
	}
	sortItems(items, cfg.Options.Less)
	return items, nil
}

func (c *Cache[T, R]) notifyLocked() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

func sortByPosition[T, R any](items []Item[T, R], pos map[uint64]int, idOf func(T) uint64) {
	sort.SliceStable(items, func(i, j int) bool {
		return pos[idOf(items[i].Entity)] < pos[idOf(items[j].Entity)]
	})
}
