// Package labelset keeps the label values of a metric family in sync with the
// set of keys that should currently be exported.
package labelset

import (
	"slices"
	"sync"
)

// Keys is a set of label values, usually validator public keys.
type Keys map[string]struct{}

// FromSlice builds a key set, ignoring duplicates.
func FromSlice(keys []string) Keys {
	out := make(Keys, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

func (k Keys) Contains(key string) bool {
	_, ok := k[key]
	return ok
}

// Sorted returns the keys in ascending order.
func (k Keys) Sorted() []string {
	out := make([]string, 0, len(k))
	for key := range k {
		out = append(out, key)
	}
	slices.Sort(out)
	return out
}

// Diff returns the keys of desired missing from current and the keys of
// current missing from desired. Both slices are sorted. A nil set is empty.
func Diff(current, desired Keys) (toCreate, toRemove []string) {
	for key := range desired {
		if !current.Contains(key) {
			toCreate = append(toCreate, key)
		}
	}
	for key := range current {
		if !desired.Contains(key) {
			toRemove = append(toRemove, key)
		}
	}
	slices.Sort(toCreate)
	slices.Sort(toRemove)
	return toCreate, toRemove
}

// Registry holds the label values currently known for one metric family.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	known Keys
}

func NewRegistry() *Registry {
	return &Registry{known: make(Keys)}
}

// Synchronize makes the known set equal to desired. onCreate is called for
// every new key before it is recorded, onRemove for every stale key before it
// is forgotten. Either callback may be nil.
func (r *Registry) Synchronize(desired Keys, onCreate, onRemove func(key string)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	toCreate, toRemove := Diff(r.known, desired)

	for _, key := range toCreate {
		if onCreate != nil {
			onCreate(key)
		}
		r.known[key] = struct{}{}
	}
	for _, key := range toRemove {
		if onRemove != nil {
			onRemove(key)
		}
		delete(r.known, key)
	}
}

// Known returns a sorted copy of the known keys.
func (r *Registry) Known() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.known.Sorted()
}

func (r *Registry) Contains(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.known.Contains(key)
}
