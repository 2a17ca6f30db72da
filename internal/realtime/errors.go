package realtime

import "fmt"

// FetchError wraps a failed snapshot read. The cache keeps its previous
// items when a fetch fails; the error is surfaced so consumers can show a
// retry affordance.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("snapshot fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
