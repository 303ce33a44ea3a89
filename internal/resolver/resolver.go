// Package resolver groups catalog entries that describe the same title and
// decides whether a selection needs the user to pick a version.
package resolver

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/hydroforge/hydroforge/internal/catalog"
)

// Normalize is the dedup key for a title: surrounding whitespace trimmed and
// case folded. No fuzzy matching is applied.
func Normalize(title string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Fold().String(strings.TrimSpace(title))
}

// Group is a non-empty list of entries sharing a normalized title, in
// source priority order.
type Group []catalog.Entry

// CanonicalOf returns the entry shown in listings for the group: the first
// one encountered in source priority order.
func CanonicalOf(g Group) catalog.Entry {
	return g[0]
}

// Groups is the result of GroupByTitle. It is rebuilt on every catalog
// change and never mutated afterwards.
type Groups struct {
	order []string
	byKey map[string]Group
	keyOf map[string]string
}

// GroupByTitle places every non-contact entry into exactly one group keyed
// by its normalized title. Groups keep the order in which their first
// member appeared.
func GroupByTitle(entries []catalog.Entry) *Groups {
	g := &Groups{
		byKey: make(map[string]Group),
		keyOf: make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		if e.IsContact() {
			continue
		}
		key := Normalize(e.Title)
		if _, ok := g.byKey[key]; !ok {
			g.order = append(g.order, key)
		}
		g.byKey[key] = append(g.byKey[key], e)
		g.keyOf[e.Key()] = key
	}
	return g
}

// Len returns the number of distinct titles.
func (g *Groups) Len() int { return len(g.order) }

// Keys returns the normalized titles in listing order.
func (g *Groups) Keys() []string {
	return append([]string(nil), g.order...)
}

// Lookup returns the group for a raw or normalized title.
func (g *Groups) Lookup(title string) (Group, bool) {
	grp, ok := g.byKey[Normalize(title)]
	return grp, ok
}

// GroupOf returns the group an entry belongs to.
func (g *Groups) GroupOf(e catalog.Entry) (Group, bool) {
	key, ok := g.keyOf[e.Key()]
	if !ok {
		return nil, false
	}
	return g.byKey[key], true
}

// Listing returns the canonical entry of every group, in order. The
// contact card is never part of the listing.
func (g *Groups) Listing() []catalog.Entry {
	out := make([]catalog.Entry, 0, len(g.order))
	for _, key := range g.order {
		out = append(out, CanonicalOf(g.byKey[key]))
	}
	return out
}

// Resolution is the outcome of selecting an entry from the listing.
type Resolution struct {
	// Entry is the entry to load when the selection is unambiguous.
	Entry catalog.Entry `json:"entry"`
	// Choices holds every version of the title when Ambiguous is set.
	Choices []catalog.Entry `json:"choices,omitempty"`
	// Ambiguous means the caller must prompt for one of Choices. Any of
	// them loads equivalently.
	Ambiguous bool `json:"ambiguous"`
	// Contact means the entry is the contact card and must be routed to
	// its external action rather than loaded.
	Contact bool `json:"contact"`
}

// Resolve decides how a selected entry proceeds.
func (g *Groups) Resolve(e catalog.Entry) Resolution {
	if e.IsContact() {
		return Resolution{Entry: e, Contact: true}
	}
	grp, ok := g.GroupOf(e)
	if !ok || len(grp) < 2 {
		return Resolution{Entry: e}
	}
	return Resolution{
		Entry:     CanonicalOf(grp),
		Choices:   append([]catalog.Entry(nil), grp...),
		Ambiguous: true,
	}
}
