package rib

import (
	"net/netip"

	"github.com/gaissmai/bart"
)

// Stage is one of Adj-RIB-In, Loc-RIB, or Adj-RIB-Out: an ordered list
// of entries deduplicated by (NextHop, Destination). The three stages
// share this type and differ only in which operations populate them
// (spec.md section 4.3).
//
// order preserves insertion order for iteration and is the list
// spec.md's invariants quantify over; byDest is a gaissmai/bart prefix
// table keyed by Destination, giving dedup and future containment
// queries O(log n) cost instead of a linear scan per insert.
type Stage struct {
	Name  string
	order []*Entry
	byDest *bart.Table[[]*Entry]
}

// NewStage creates an empty stage. name is used only for logging.
func NewStage(name string) *Stage {
	return &Stage{
		Name:   name,
		byDest: &bart.Table[[]*Entry]{},
	}
}

// Entries returns the stage's entries in insertion order. The returned
// slice is owned by the caller to range over; callers must not mutate
// its backing array.
func (s *Stage) Entries() []*Entry {
	return s.order
}

// insert adds e to the stage if no entry with the same (NextHop,
// Destination) already exists. The inserted copy's Status is set to
// Updated; an existing equal entry is left untouched (spec.md section
// 3: "Insertion is a no-op when an equal entry already exists").
// Reports whether a new entry was added.
func (s *Stage) insert(e *Entry) bool {
	added := false
	s.byDest.Modify(e.Destination, func(existing []*Entry, found bool) ([]*Entry, bool) {
		if found {
			for _, ex := range existing {
				if ex.sameIdentity(e) {
					return existing, false
				}
			}
		}
		added = true
		fresh := e.clone()
		fresh.Status = StatusUpdated
		s.order = append(s.order, fresh)
		return append(existing, fresh), false
	})
	return added
}

// MarkAllUnchanged resets every entry's Status to Unchanged. Called at
// the start of a propagation pass, before the source stage's entries
// are copied in, so that only entries touched by this pass end up
// Updated (spec.md section 4.3, "Propagation discipline").
func (s *Stage) MarkAllUnchanged() {
	for _, e := range s.order {
		e.Status = StatusUnchanged
	}
}

// HasNew reports whether any entry's Status differs from Unchanged.
func (s *Stage) HasNew() bool {
	for _, e := range s.order {
		if e.Status != StatusUnchanged {
			return true
		}
	}
	return false
}

// Len reports the number of entries currently in the stage.
func (s *Stage) Len() int { return len(s.order) }

// markWithdrawn sets Status to Withdrawn on every entry for dest,
// regardless of next hop. Entries are not removed: spec.md section 3
// scopes explicit WITHDRAWN handling to status marking only, and
// entries are destroyed solely by session teardown. Reports whether
// any entry was found and marked.
func (s *Stage) markWithdrawn(dest netip.Prefix) bool {
	entries, ok := s.byDest.Get(dest)
	if !ok {
		return false
	}
	for _, e := range entries {
		e.Status = StatusWithdrawn
	}
	return len(entries) > 0
}
