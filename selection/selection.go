// Package selection is the single source of truth for which basin ids are
// currently selected. Basins toggle: selecting a selected basin deselects
// it. VPU groups toggle whole regions at once, with the member set fetched
// once per group and cached.
package selection

import (
	"context"
	"sort"
	"sync"
)

// Coordinate is the click location that produced a selection. Kept for
// display and debugging; basin identity is the id alone.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GroupFetch resolves a VPU group to its member basins. Called at most once
// per group; the result is cached for the life of the State.
type GroupFetch func(ctx context.Context) (map[string]Coordinate, error)

type group struct {
	mu      sync.Mutex            // serializes toggles of this group across the fetch
	members map[string]Coordinate // nil until first fetch; guarded by State.mu
	active  bool                  // guarded by State.mu
}

// State holds the selected basin set and per-VPU bulk-selection bookkeeping.
type State struct {
	mu       sync.Mutex
	selected map[string]Coordinate
	groups   map[string]*group
}

// NewState creates an empty selection.
func NewState() *State {
	return &State{
		selected: make(map[string]Coordinate),
		groups:   make(map[string]*group),
	}
}

// Toggle inserts id with its coordinate, or removes it if already selected.
// Returns true when the basin is selected after the call.
func (s *State) Toggle(id string, c Coordinate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
		return false
	}
	s.selected[id] = c
	return true
}

// Contains reports whether id is currently selected.
func (s *State) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.selected[id]
	return ok
}

// Snapshot returns a copy of the current selection.
func (s *State) Snapshot() map[string]Coordinate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Coordinate, len(s.selected))
	for id, c := range s.selected {
		out[id] = c
	}
	return out
}

// IDs returns the selected basin ids, sorted.
func (s *State) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.selected))
	for id := range s.selected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of selected basins.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.selected)
}

// GroupActive reports whether a VPU group is currently applied.
func (s *State) GroupActive(vpu string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[vpu]
	return ok && g.active
}

// ToggleGroup applies or withdraws a VPU group as a unit.
//
// Inactive group: the member set is fetched (first time only; cached
// thereafter), every member is inserted, and the group is marked active.
// Active group: every id in the cached member set is removed and the mark
// cleared, including ids that were also selected by direct clicks; group
// bookkeeping tracks only the fetched set.
//
// Returns whether the group is active after the call and how many ids were
// applied or withdrawn.
func (s *State) ToggleGroup(ctx context.Context, vpu string, fetch GroupFetch) (active bool, count int, err error) {
	s.mu.Lock()
	g, ok := s.groups[vpu]
	if !ok {
		g = &group{}
		s.groups[vpu] = g
	}
	s.mu.Unlock()

	// Toggles of one group serialize across the member fetch, so the fetch
	// runs at most once and concurrent clicks alternate apply/withdraw.
	// Lock order is g.mu then State.mu, never the reverse.
	g.mu.Lock()
	defer g.mu.Unlock()

	s.mu.Lock()
	if g.active {
		for id := range g.members {
			delete(s.selected, id)
		}
		g.active = false
		n := len(g.members)
		s.mu.Unlock()
		return false, n, nil
	}

	members := g.members
	s.mu.Unlock()

	if members == nil {
		members, err = fetch(ctx)
		if err != nil {
			return false, 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g.members = members
	for id, c := range members {
		s.selected[id] = c
	}
	g.active = true
	return true, len(members), nil
}
