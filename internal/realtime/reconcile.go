package realtime

// Apply folds one change event into a collection and reports whether the
// collection was mutated. Pure over (items, event): the input slice is only
// modified in place when a mutation applies, and repeated application of the
// same event is a no-op (the channel may redeliver).
//
// Events whose payload is not a *T — a different entity type leaked onto the
// topic — are ignored without mutation, as are events for entities outside
// the collection's scope filter.
func Apply[T, R any](items []Item[T, R], ev Event, opts Options[T]) ([]Item[T, R], bool) {
	img, ok := ev.Image().(*T)
	if !ok || img == nil {
		return items, false
	}
	id := opts.ID(*img)

	switch ev.Type {
	case EventInsert:
		if !opts.include(*img) {
			return items, false
		}
		if indexOf(items, id, opts.ID) >= 0 {
			// Redelivered INSERT for an entity we already hold.
			return items, false
		}
		items = append(items, Item[T, R]{Entity: *img})
		sortItems(items, opts.Less)
		return items, true

	case EventUpdate:
		idx := indexOf(items, id, opts.ID)
		if !opts.include(*img) {
			// The post-image fell out of scope (e.g. deactivated).
			if idx < 0 {
				return items, false
			}
			return append(items[:idx], items[idx+1:]...), true
		}
		if idx < 0 {
			// The post-image newly entered scope; treat as an insert so a
			// missed INSERT or an activation transition still converges.
			items = append(items, Item[T, R]{Entity: *img})
			sortItems(items, opts.Less)
			return items, true
		}
		// Shallow-replace the entity, keep the derived fields.
		items[idx].Entity = *img
		sortItems(items, opts.Less)
		return items, true

	case EventDelete:
		idx := indexOf(items, id, opts.ID)
		if idx < 0 {
			return items, false
		}
		return append(items[:idx], items[idx+1:]...), true
	}

	return items, false
}

// RelatedOptions describes how events of a related entity R map back onto
// the parent collection (a registration onto its workshop, a submission onto
// its task).
type RelatedOptions[R any] struct {
	Topic string
	// ParentID extracts the owning entity's id from a related row. Required.
	ParentID func(R) uint64
	// UserID extracts the related row's user. Required for user flags.
	UserID func(R) uint64
}

// ApplyRelated folds a change event of a related entity into the parent
// collection's derived fields: counts are incremented/decremented (clamped
// at zero so a duplicate DELETE cannot go negative) and the current-user
// flag and row are maintained. Events whose parent is not in the collection
// are ignored — cross-entity ordering is not guaranteed, so an orphaned
// related event is dropped rather than buffered.
func ApplyRelated[T, R any](items []Item[T, R], ev Event, opts Options[T], rel RelatedOptions[R], userID uint64) bool {
	row, ok := ev.Image().(*R)
	if !ok || row == nil {
		return false
	}
	idx := indexOf(items, rel.ParentID(*row), opts.ID)
	if idx < 0 {
		return false
	}
	item := &items[idx]
	mine := userID != 0 && rel.UserID(*row) == userID

	switch ev.Type {
	case EventInsert:
		if mine && item.UserRelated {
			// Redelivered INSERT of the user's own row; counting it twice
			// would drift, so treat it as already applied.
			item.UserRow = row
			return true
		}
		item.RelatedCount++
		if mine {
			item.UserRelated = true
			item.UserRow = row
		}
		return true

	case EventUpdate:
		if !mine {
			// Another user's row changed; neither the count nor the current
			// user's flags are affected, so don't signal consumers.
			return false
		}
		item.UserRelated = true
		item.UserRow = row
		return true

	case EventDelete:
		if item.RelatedCount > 0 {
			item.RelatedCount--
		}
		if mine {
			item.UserRelated = false
			item.UserRow = nil
		}
		return true
	}

	return false
}
