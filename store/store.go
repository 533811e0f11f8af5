// Package store implements the in-memory object store: an identity map of
// objects, relationship inverse maintenance, delete rules and secondary
// indexes.
//
// A Store publishes immutable versions of its contents. Writers run inside
// Apply on a private copy that is swapped in under the write lock only when
// every mutation and the final validation succeeded, so readers holding a
// Snapshot never observe a partial commit.
package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/syssam/objgraph"
	"github.com/syssam/objgraph/schema"
)

// Store holds the objects of one schema. It is safe for concurrent use.
type Store struct {
	schema *schema.Schema
	log    *zap.Logger
	now    func() time.Time
	slow   time.Duration
	stats  *Stats

	mu  sync.RWMutex
	cur *state
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for commit diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock sets the clock used to stamp committed changes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSlowCommitThreshold sets the duration above which a commit is logged
// as slow. Default is 100ms; zero disables the warning.
func WithSlowCommitThreshold(d time.Duration) Option {
	return func(s *Store) {
		s.slow = d
	}
}

// New returns an empty store for the schema.
//
//	s := store.New(model, store.WithLogger(logger))
//	id, err := s.Insert(ctx, "Company", objgraph.Attrs{"name": objgraph.String("ACME")})
func New(sc *schema.Schema, opts ...Option) *Store {
	s := &Store{
		schema: sc,
		log:    zap.NewNop(),
		now:    time.Now,
		slow:   100 * time.Millisecond,
		stats:  &Stats{},
		cur:    newState(sc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schema returns the schema of the store.
func (s *Store) Schema() *schema.Schema { return s.schema }

// Stats returns the store counters.
func (s *Store) Stats() *Stats { return s.stats }

// View returns a read-only snapshot of the current contents.
func (s *Store) View() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Snapshot{schema: s.schema, st: s.cur, stats: s.stats}
}

// Apply runs fn against a working copy of the store and publishes the
// result if fn and the final validation succeed. Otherwise the store is
// left untouched and the returned error is an *objgraph.AggregateError
// listing every violation.
func (s *Store) Apply(ctx context.Context, fn func(*Batch) error) (*objgraph.Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	b := newBatch(s.schema, s.cur.clone())
	err := objgraph.NewAggregateError(flatten(fn(b), b.validate())...)
	if err != nil {
		s.stats.aborts.Add(1)
		s.log.Warn("commit aborted", zap.Error(err))
		return nil, err
	}
	s.cur = b.st
	change := b.Change(s.now())
	s.record(change, b, time.Since(start))
	return &change, nil
}

func (s *Store) record(c objgraph.Change, b *Batch, d time.Duration) {
	s.stats.commits.Add(1)
	s.stats.inserts.Add(int64(len(c.Inserted)))
	s.stats.updates.Add(int64(len(c.Updated)))
	s.stats.deletes.Add(int64(b.deleted))
	s.stats.cascaded.Add(int64(b.cascade))
	s.stats.duration.Add(int64(d))
	s.log.Debug("commit applied",
		zap.Int("inserted", len(c.Inserted)),
		zap.Int("updated", len(c.Updated)),
		zap.Int("deleted", len(c.Deleted)),
		zap.Duration("duration", d),
	)
	if s.slow > 0 && d > s.slow {
		s.stats.slow.Add(1)
		s.log.Warn("slow commit detected", zap.Duration("duration", d), zap.Duration("threshold", s.slow))
	}
}

// flatten expands aggregate errors so that nested batches report a flat
// list of violations.
func flatten(errs ...error) []error {
	var out []error
	for _, err := range errs {
		if agg, ok := err.(*objgraph.AggregateError); ok {
			out = append(out, flatten(agg.Errors...)...)
			continue
		}
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

// single unwraps an aggregate holding exactly one error.
func single(err error) error {
	if agg, ok := err.(*objgraph.AggregateError); ok && len(agg.Errors) == 1 {
		return agg.Errors[0]
	}
	return err
}

// Insert adds one object and returns its ID.
func (s *Store) Insert(ctx context.Context, entity string, attrs objgraph.Attrs) (objgraph.ID, error) {
	var id objgraph.ID
	_, err := s.Apply(ctx, func(b *Batch) (err error) {
		id, err = b.Insert(entity, objgraph.NilID, attrs)
		return err
	})
	if err != nil {
		return objgraph.NilID, single(err)
	}
	return id, nil
}

// Get returns the committed object with the given ID.
func (s *Store) Get(id objgraph.ID) (*Object, error) {
	return s.View().Get(id)
}

// Update sets attributes of one object.
func (s *Store) Update(ctx context.Context, id objgraph.ID, attrs objgraph.Attrs) error {
	_, err := s.Apply(ctx, func(b *Batch) error {
		return b.Update(id, attrs)
	})
	return single(err)
}

// Delete removes one object, applying delete rules, and returns every
// removed object.
func (s *Store) Delete(ctx context.Context, id objgraph.ID) ([]objgraph.ObjectRef, error) {
	var refs []objgraph.ObjectRef
	_, err := s.Apply(ctx, func(b *Batch) (err error) {
		refs, err = b.Delete(id)
		return err
	})
	if err != nil {
		return nil, single(err)
	}
	return refs, nil
}

// SetRelationship replaces the targets of a relationship of one object.
func (s *Store) SetRelationship(ctx context.Context, id objgraph.ID, rel string, targets ...objgraph.ID) error {
	_, err := s.Apply(ctx, func(b *Batch) error {
		return b.SetRelationship(id, rel, targets...)
	})
	return single(err)
}
