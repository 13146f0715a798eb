// Package contexts holds the context store of a conversation.
//
// A Store is an immutable value: Merge and Restore return new stores and
// never touch the receiver. The engine keeps the pre-turn Snapshot and hands
// it back on failure, so a failed turn cannot leak a partial write.
package contexts

import (
	"maps"
	"sort"
)

// Store is an immutable map of context values.
type Store struct {
	values map[string]any
}

// Snapshot is an opaque copy of a Store taken for rollback.
type Snapshot struct {
	values map[string]any
}

// New builds a store from a copy of values.
func New(values map[string]any) Store {
	return Store{values: deepCopyMap(values)}
}

// Read returns the named values that are present. Missing keys are simply
// absent from the result.
func (s Store) Read(names ...string) map[string]any {
	out := make(map[string]any, len(names))
	for _, name := range names {
		if v, ok := s.values[name]; ok {
			out[name] = copyValue(v)
		}
	}
	return out
}

// Has reports whether the context is set.
func (s Store) Has(name string) bool {
	_, ok := s.values[name]
	return ok
}

// HasAll reports whether every named context is set.
func (s Store) HasAll(names ...string) bool {
	for _, name := range names {
		if !s.Has(name) {
			return false
		}
	}
	return true
}

// Merge returns a new store with values applied last-write-wins.
func (s Store) Merge(values map[string]any) Store {
	next := make(map[string]any, len(s.values)+len(values))
	maps.Copy(next, s.values)
	for k, v := range values {
		next[k] = copyValue(v)
	}
	return Store{values: next}
}

// Snapshot captures the current values.
func (s Store) Snapshot() Snapshot {
	return Snapshot{values: deepCopyMap(s.values)}
}

// Restore returns a store holding exactly the snapshot's values.
func Restore(snap Snapshot) Store {
	return Store{values: deepCopyMap(snap.values)}
}

// Values returns a copy of all values, suitable for a Session.
func (s Store) Values() map[string]any {
	return deepCopyMap(s.values)
}

// Keys returns the set context names sorted.
func (s Store) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of set contexts.
func (s Store) Len() int {
	return len(s.values)
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return deepCopyMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
