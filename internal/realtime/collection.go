package realtime

import "sort"

// Item is one cached entity plus the fields derived client-side from related
// rows: how many related rows exist, whether one of them belongs to the
// current user, and the user's own row if so.
type Item[T, R any] struct {
	Entity       T    `json:"entity"`
	RelatedCount int  `json:"related_count"`
	UserRelated  bool `json:"user_related"`
	UserRow      *R   `json:"user_row,omitempty"`
}

// Options describes how a collection of T is keyed, ordered and scoped.
type Options[T any] struct {
	// ID extracts the stable identifier. Required.
	ID func(T) uint64
	// Less orders the collection (order_index ascending for orderable
	// entities). Nil keeps insertion order.
	Less func(a, b T) bool
	// Include is the scope filter (e.g. "active only", "tasks of workshop
	// W"). Entities failing it are ignored on INSERT and evicted on UPDATE.
	// Nil includes everything.
	Include func(T) bool
	// SetOrder rewrites the entity's order key. Used by provisional
	// reorders so a later re-sort does not undo the permutation. Optional.
	SetOrder func(*T, int)
}

func (o Options[T]) include(entity T) bool {
	return o.Include == nil || o.Include(entity)
}

func sortItems[T, R any](items []Item[T, R], less func(a, b T) bool) {
	if less == nil {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		return less(items[i].Entity, items[j].Entity)
	})
}

func indexOf[T, R any](items []Item[T, R], id uint64, idOf func(T) uint64) int {
	for i := range items {
		if idOf(items[i].Entity) == id {
			return i
		}
	}
	return -1
}
