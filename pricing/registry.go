package pricing

import (
	"sort"
	"sync"

	oerrors "github.com/omnivault/oracle-node/errors"
)

type adapterEntry struct {
	priority uint64
	adapter  Adapter
}

// AdapterRegistry holds the configured feed adapters keyed by priority.
// Lower priority numbers are tried first. The backing sequence is unordered;
// removal swaps with the last entry and the index map keeps lookups
// consistent, so removing the head-of-line adapter never disturbs the
// relative order of the remainder as seen through Ordered.
type AdapterRegistry struct {
	mu      sync.RWMutex
	entries []adapterEntry
	index   map[uint64]int // priority -> position in entries
}

// NewAdapterRegistry creates an empty registry.
func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{
		index: make(map[uint64]int),
	}
}

// Add registers an adapter under a priority. Errors on a duplicate priority.
func (r *AdapterRegistry) Add(priority uint64, adapter Adapter) error {
	if adapter == nil {
		return oerrors.New(oerrors.ErrCodeValidation, "nil adapter")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[priority]; exists {
		return oerrors.Newf(oerrors.ErrCodeValidation, "adapter priority %d already in use", priority)
	}
	r.index[priority] = len(r.entries)
	r.entries = append(r.entries, adapterEntry{priority: priority, adapter: adapter})
	return nil
}

// Remove deletes the adapter registered under a priority. Errors when the
// priority is not present.
func (r *AdapterRegistry) Remove(priority uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, exists := r.index[priority]
	if !exists {
		return oerrors.Newf(oerrors.ErrCodeValidation, "no adapter at priority %d", priority)
	}

	last := len(r.entries) - 1
	if pos != last {
		r.entries[pos] = r.entries[last]
		r.index[r.entries[pos].priority] = pos
	}
	r.entries = r.entries[:last]
	delete(r.index, priority)
	return nil
}

// Ordered returns the adapters sorted by ascending priority.
func (r *AdapterRegistry) Ordered() []Adapter {
	r.mu.RLock()
	entries := make([]adapterEntry, len(r.entries))
	copy(entries, r.entries)
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})

	out := make([]Adapter, len(entries))
	for i, e := range entries {
		out[i] = e.adapter
	}
	return out
}

// Len returns the number of registered adapters.
func (r *AdapterRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
