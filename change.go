package objgraph

import "time"

// Change is the notification emitted once per successful commit.
// Each list is in the order the objects were first touched by the commit.
type Change struct {
	CommittedAt time.Time   `json:"committedAt"`
	Inserted    []ObjectRef `json:"inserted"`
	Updated     []ObjectRef `json:"updated"`
	Deleted     []ObjectRef `json:"deleted"`
}

// Empty reports whether the commit touched no objects.
func (c Change) Empty() bool {
	return len(c.Inserted) == 0 && len(c.Updated) == 0 && len(c.Deleted) == 0
}

// Subscriber receives change notifications. Subscribers run synchronously
// inside Commit, after the store has been updated.
type Subscriber func(Change)
