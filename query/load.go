package query

import (
	"context"

	"github.com/syssam/objgraph"
)

// keyFunc extracts the key of a value.
type keyFunc[K comparable, V any] func(V) K

// orderByKeys reorders values to match the order of keys. Missing values
// are left as zero values and reported by missing.
func orderByKeys[K comparable, V any](keys []K, values []V, keyFn keyFunc[K, V], missing func(K) error) ([]V, []error) {
	lookup := make(map[K]V, len(values))
	for _, v := range values {
		lookup[keyFn(v)] = v
	}
	result := make([]V, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		if v, ok := lookup[key]; ok {
			result[i] = v
		} else {
			errs[i] = missing(key)
		}
	}
	return result, errs
}

// Load returns the instances with the given IDs in the requested order,
// all read from the same snapshot. errs[i] is a NotFoundError when ids[i]
// does not exist, a PrivacyError when the policy denies fetching its
// entity, and nil otherwise.
func (e *Engine) Load(ctx context.Context, ids ...objgraph.ID) ([]*Instance, []error) {
	if err := ctx.Err(); err != nil {
		errs := make([]error, len(ids))
		for i := range errs {
			errs[i] = err
		}
		return make([]*Instance, len(ids)), errs
	}
	snap := e.store.View()
	found := make([]*Instance, 0, len(ids))
	decisions := make(map[string]error)
	denied := make(map[objgraph.ID]error)
	for _, id := range ids {
		o, err := snap.Get(id)
		if err != nil {
			continue
		}
		if e.policy != nil {
			decision, ok := decisions[o.Entity()]
			if !ok {
				decision = e.policy.EvalQuery(ctx, fetch{req: &Request{Entity: o.Entity()}})
				decisions[o.Entity()] = decision
			}
			if decision != nil {
				denied[id] = &objgraph.PrivacyError{Entity: o.Entity(), Op: "query", Err: decision}
				continue
			}
		}
		found = append(found, &Instance{obj: o, snap: snap})
	}
	return orderByKeys(ids, found,
		func(i *Instance) objgraph.ID { return i.ID() },
		func(id objgraph.ID) error {
			if err, ok := denied[id]; ok {
				return err
			}
			return objgraph.NewNotFoundError("", id)
		},
	)
}
