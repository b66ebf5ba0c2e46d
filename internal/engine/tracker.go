// File: internal/engine/tracker.go
package engine

// Tracker counts how many records of each subtask a batch has run. It is
// owned by one batch and mutated only between subtask runs.
type Tracker struct {
	counts map[string]int
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{counts: make(map[string]int)}
}

// Observe records one more occurrence of subtaskID and returns the new count.
func (t *Tracker) Observe(subtaskID string) int {
	t.counts[subtaskID]++
	return t.counts[subtaskID]
}

// Count returns how often subtaskID has been observed.
func (t *Tracker) Count(subtaskID string) int {
	return t.counts[subtaskID]
}
