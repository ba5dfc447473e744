package apinode

import (
	"strings"
	"sync"
)

// Namespace is an insertion-ordered mapping from identifier to Node
// (spec.md §3 "API node" / §9 "Insertion-ordered namespaces"). Stable
// iteration order is required for reload determinism (I4).
type Namespace struct {
	mu      sync.RWMutex
	keys    []string
	entries map[string]*Node
}

// NewEmptyNamespace allocates an empty Namespace.
func NewEmptyNamespace() *Namespace {
	return &Namespace{entries: make(map[string]*Node)}
}

// Set inserts or overwrites key. Overwriting an existing key keeps its
// original position in iteration order (replace-in-place), matching
// "mutated, not replaced" reload semantics (I4) one level up.
func (ns *Namespace) Set(key string, n *Node) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if _, exists := ns.entries[key]; !exists {
		ns.keys = append(ns.keys, key)
	}
	ns.entries[key] = n
}

// Delete removes key, if present.
func (ns *Namespace) Delete(key string) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if _, exists := ns.entries[key]; !exists {
		return
	}
	delete(ns.entries, key)
	for i, k := range ns.keys {
		if k == key {
			ns.keys = append(ns.keys[:i], ns.keys[i+1:]...)
			break
		}
	}
}

// Get looks up key.
func (ns *Namespace) Get(key string) (*Node, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	n, ok := ns.entries[key]
	return n, ok
}

// Keys returns a copy of the insertion-ordered key list.
func (ns *Namespace) Keys() []string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	out := make([]string, len(ns.keys))
	copy(out, ns.keys)
	return out
}

// Len returns the number of entries.
func (ns *Namespace) Len() int {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return len(ns.keys)
}

// Range calls fn for each entry in insertion order, stopping early if fn
// returns false.
func (ns *Namespace) Range(fn func(key string, n *Node) bool) {
	for _, k := range ns.Keys() {
		n, ok := ns.Get(k)
		if !ok {
			continue
		}
		if !fn(k, n) {
			return
		}
	}
}

// splitPath breaks a dot-joined API path into its segments, ignoring
// empty segments from leading/trailing/doubled dots.
func splitPath(path string) []string {
	raw := strings.Split(path, ".")
	out := make([]string, 0, len(raw))
	for _, seg := range raw {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
