// Package settings holds the user-configurable display options for the map:
// layer toggles, colors, line weights, opacities. Options live in a flat
// registry of dot-delimited leaf paths (".flowlines.to_wb.style.color") with
// change-notification callbacks per leaf. The layer registry binds style and
// visibility callbacks here; UI controls write through Set.
package settings

import (
	"strings"
	"sync"
)

// Value is a settings leaf value: bool, float64, or string.
type Value = interface{}

// ChangeFunc runs after a leaf it is registered on is overwritten.
type ChangeFunc func(path string, value Value)

// SyncFunc receives every leaf-level change when settings sync is enabled.
type SyncFunc func(path string, value Value)

// Store is a hierarchical key/value registry of display options.
type Store struct {
	mu        sync.Mutex
	leaves    map[string]Value
	order     []string // definition order, for deterministic group binding
	callbacks map[string][]ChangeFunc
	syncFn    SyncFunc // nil unless settings sync is enabled
}

// NewStore creates an empty settings store.
func NewStore() *Store {
	return &Store{
		leaves:    make(map[string]Value),
		callbacks: make(map[string][]ChangeFunc),
	}
}

// EnableSync installs a sink that receives every subsequent leaf change.
// Off by default.
func (s *Store) EnableSync(fn SyncFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncFn = fn
}

// Define declares a leaf with its initial value. Defining an existing leaf
// overwrites its value without firing callbacks; initialization is not a
// change.
func (s *Store) Define(path string, v Value) {
	path = normalize(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leaves[path]; !ok {
		s.order = append(s.order, path)
	}
	s.leaves[path] = v
}

// Get returns the leaf value at an exact path, or, for a prefix path, a
// freshly assembled nested mapping of all leaves under it keyed by their
// remaining path segments. A path matching nothing yields an empty mapping.
func (s *Store) Get(path string) Value {
	path = normalize(path)
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.leaves[path]; ok {
		return v
	}
	return s.assembleGroup(path)
}

// Group returns the nested mapping of all leaves under prefix. Empty mapping
// when nothing matches. Unlike Get it never returns a bare leaf.
func (s *Store) Group(prefix string) map[string]Value {
	prefix = normalize(prefix)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assembleGroup(prefix)
}

// assembleGroup builds the nested mapping for a prefix. Caller holds s.mu.
func (s *Store) assembleGroup(prefix string) map[string]Value {
	out := make(map[string]Value)
	withDot := prefix + "."
	for _, leaf := range s.order {
		if !strings.HasPrefix(leaf, withDot) {
			continue
		}
		rel := strings.TrimPrefix(leaf, withDot)
		segments := strings.Split(rel, ".")
		node := out
		for _, seg := range segments[:len(segments)-1] {
			child, ok := node[seg].(map[string]Value)
			if !ok {
				child = make(map[string]Value)
				node[seg] = child
			}
			node = child
		}
		node[segments[len(segments)-1]] = s.leaves[leaf]
	}
	return out
}

// Set overwrites the leaf value at path and invokes every callback registered
// exactly on path, in registration order.
func (s *Store) Set(path string, v Value) {
	path = normalize(path)
	s.mu.Lock()
	if _, ok := s.leaves[path]; !ok {
		s.order = append(s.order, path)
	}
	s.leaves[path] = v
	cbs := make([]ChangeFunc, len(s.callbacks[path]))
	copy(cbs, s.callbacks[path])
	syncFn := s.syncFn
	s.mu.Unlock()

	for _, cb := range cbs {
		cb(path, v)
	}
	if syncFn != nil {
		syncFn(path, v)
	}
}

// OnChange registers a callback to run after any Set on path. Multiple
// registrations on the same path all run, in registration order.
func (s *Store) OnChange(path string, fn ChangeFunc) {
	path = normalize(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks[path] = append(s.callbacks[path], fn)
}

// OnGroupChange registers fn on every currently-defined leaf path beginning
// with prefix. Must be called after all leaves under the prefix are defined;
// leaves added later are not picked up.
func (s *Store) OnGroupChange(prefix string, fn ChangeFunc) {
	prefix = normalize(prefix)
	s.mu.Lock()
	withDot := prefix + "."
	var matched []string
	for _, leaf := range s.order {
		if strings.HasPrefix(leaf, withDot) {
			matched = append(matched, leaf)
		}
	}
	s.mu.Unlock()

	for _, leaf := range matched {
		s.OnChange(leaf, fn)
	}
}

// Bool reads a leaf as bool. Missing or mistyped leaves read as false.
func (s *Store) Bool(path string) bool {
	v, _ := s.Get(normalize(path)).(bool)
	return v
}

// Float reads a leaf as float64. Missing or mistyped leaves read as 0.
func (s *Store) Float(path string) float64 {
	switch v := s.Get(normalize(path)).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// String reads a leaf as string. Missing or mistyped leaves read as "".
func (s *Store) String(path string) string {
	v, _ := s.Get(normalize(path)).(string)
	return v
}

// Leaves returns all defined leaf paths in definition order.
func (s *Store) Leaves() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func normalize(path string) string {
	if path == "" {
		return path
	}
	if !strings.HasPrefix(path, ".") {
		return "." + path
	}
	return path
}
