package store

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Stats holds store counters. All fields are updated atomically.
type Stats struct {
	commits   atomic.Int64
	aborts    atomic.Int64
	slow      atomic.Int64
	inserts   atomic.Int64
	updates   atomic.Int64
	deletes   atomic.Int64
	cascaded  atomic.Int64
	indexHits atomic.Int64
	scans     atomic.Int64
	duration  atomic.Int64 // nanoseconds
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Commits:     s.commits.Load(),
		Aborts:      s.aborts.Load(),
		SlowCommits: s.slow.Load(),
		Inserts:     s.inserts.Load(),
		Updates:     s.updates.Load(),
		Deletes:     s.deletes.Load(),
		Cascaded:    s.cascaded.Load(),
		IndexHits:   s.indexHits.Load(),
		Scans:       s.scans.Load(),
		Duration:    time.Duration(s.duration.Load()),
	}
}

// Reset sets every counter to zero.
func (s *Stats) Reset() {
	for _, c := range []*atomic.Int64{
		&s.commits, &s.aborts, &s.slow, &s.inserts, &s.updates,
		&s.deletes, &s.cascaded, &s.indexHits, &s.scans, &s.duration,
	} {
		c.Store(0)
	}
}

// StatsSnapshot is a point-in-time copy of the store counters.
type StatsSnapshot struct {
	Commits     int64
	Aborts      int64
	SlowCommits int64
	Inserts     int64
	Updates     int64
	Deletes     int64 // including cascaded deletes
	Cascaded    int64
	IndexHits   int64
	Scans       int64
	Duration    time.Duration // total time spent in successful commits
}

// AvgCommitDuration returns the average duration of a successful commit.
func (s StatsSnapshot) AvgCommitDuration() time.Duration {
	if s.Commits == 0 {
		return 0
	}
	return s.Duration / time.Duration(s.Commits)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"commits=%d aborts=%d slow=%d inserts=%d updates=%d deletes=%d cascaded=%d index_hits=%d scans=%d avg=%s",
		s.Commits, s.Aborts, s.SlowCommits, s.Inserts, s.Updates, s.Deletes,
		s.Cascaded, s.IndexHits, s.Scans, s.AvgCommitDuration(),
	)
}
