package collision

import (
	"fmt"

	"github.com/arloliu/canon/errs"
)

// Tracker records which name owns each key and reports the first key that is
// claimed twice. Keys are variant tags when resolving discriminants and Go
// types when binding sum variants.
type Tracker[K comparable] struct {
	owners map[K]string
	names  []string
}

// NewTracker creates a new collision tracker.
func NewTracker[K comparable]() *Tracker[K] {
	return &Tracker[K]{
		owners: make(map[K]string),
		names:  make([]string, 0),
	}
}

// Track claims key for name.
// Returns errs.ErrDiscriminantCollision wrapped with both owners if key is taken.
func (t *Tracker[K]) Track(key K, name string) error {
	if owner, exists := t.owners[key]; exists {
		return fmt.Errorf("%w: %v claimed by both %s and %s", errs.ErrDiscriminantCollision, key, owner, name)
	}

	t.owners[key] = name
	t.names = append(t.names, name)

	return nil
}

// Owner returns the name that claimed key.
func (t *Tracker[K]) Owner(key K) (string, bool) {
	name, ok := t.owners[key]
	return name, ok
}

// Names returns the owners in claim order.
func (t *Tracker[K]) Names() []string {
	return t.names
}

// Count returns the number of claimed keys.
func (t *Tracker[K]) Count() int {
	return len(t.names)
}

// Reset clears all claims while keeping the allocated capacity.
func (t *Tracker[K]) Reset() {
	for k := range t.owners {
		delete(t.owners, k)
	}
	t.names = t.names[:0]
}
