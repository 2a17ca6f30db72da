// Package realtime keeps in-memory entity collections consistent with a
// stream of change events while tolerating missed, duplicated and
// out-of-order deliveries. It is deliberately independent of the HTTP layer:
// services publish events after successful writes, consumers hold a Cache
// per scope for as long as they are interested.
package realtime

// EventType identifies the kind of change an event describes.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Topics, one per entity table.
const (
	TopicWorkshops     = "workshops"
	TopicRegistrations = "workshop_registrations"
	TopicTasks         = "tasks"
	TopicSubmissions   = "task_submissions"
	TopicGroups        = "task_groups"
)

// Event is a single change notification. New carries the post-image for
// INSERT and UPDATE; Old carries the pre-image for DELETE and, when
// available, UPDATE. Payloads are typed model pointers; consumers assert on
// the topic they subscribed to.
type Event struct {
	Type EventType
	New  any
	Old  any
}

// Image returns the authoritative payload for the event kind: the post-image
// for INSERT/UPDATE, the pre-image for DELETE.
func (e Event) Image() any {
	if e.Type == EventDelete {
		return e.Old
	}
	return e.New
}
