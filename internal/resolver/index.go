package resolver

import (
	"sync"

	"github.com/hydroforge/hydroforge/internal/catalog"
)

// Index recomputes Groups whenever the catalog holder reports a new version.
type Index struct {
	holder *catalog.Holder

	mu      sync.Mutex
	version uint64
	groups  *Groups
}

// NewIndex creates an Index over holder.
func NewIndex(holder *catalog.Holder) *Index {
	return &Index{holder: holder}
}

// Current returns the groups for the current catalog along with the
// snapshot they were built from.
func (ix *Index) Current() (*Groups, catalog.Snapshot) {
	snap := ix.holder.Snapshot()

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.groups == nil || ix.version != snap.Version {
		ix.groups = GroupByTitle(snap.Entries)
		ix.version = snap.Version
	}
	return ix.groups, snap
}

// Holder returns the underlying catalog holder.
func (ix *Index) Holder() *catalog.Holder { return ix.holder }
