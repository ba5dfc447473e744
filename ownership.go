package slothlet

import "sync"

// ownerSet is the set of moduleIds currently claiming one API path
// (spec.md §4.9 "mapping from apiPath to Set<moduleId>"). The empty
// string is the anonymous owner.
type ownerSet map[string]bool

// ownershipRegistry implements C9's state machine: absent -> owned-anon
// -> owned-by-M1 -> owned-by-M2 -> absent. It is guarded by a mutex even
// though spec.md §5 says mutation calls are serialized by the caller
// (addApi/removeApi "run to completion before returning"); the mutex is
// defense-in-depth against a caller that violates that assumption, not
// the primary correctness mechanism.
type ownershipRegistry struct {
	mu    sync.Mutex
	paths map[string]ownerSet
}

func newOwnershipRegistry() *ownershipRegistry {
	return &ownershipRegistry{paths: make(map[string]ownerSet)}
}

// claim attempts to record moduleId (possibly "" for anonymous) as an
// owner of path, applying spec.md §4.9's three addApi rules. It returns
// an *OwnershipError if the claim is rejected.
func (r *ownershipRegistry) claim(path, moduleID string, allowOverwrite, forceOverwrite, ownershipEnabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owners, exists := r.paths[path]
	if !exists || len(owners) == 0 {
		r.paths[path] = ownerSet{moduleID: true}
		return nil
	}

	if moduleID == "" {
		// Anonymous addApi: permitted to (re-)claim subject only to
		// allowApiOverwrite, regardless of who currently owns the path.
		if !allowOverwrite {
			return &OwnershipError{Path: path, RequestedBy: moduleID, CurrentOwner: describeOwners(owners)}
		}
		r.paths[path] = ownerSet{moduleID: true}
		return nil
	}

	if owners[moduleID] {
		// Same moduleId re-registering its own path: always allowed.
		return nil
	}

	if !forceOverwrite {
		return &OwnershipError{Path: path, RequestedBy: moduleID, CurrentOwner: describeOwners(owners)}
	}
	if !ownershipEnabled {
		return &ConfigError{Detail: "forceOverwrite requires enableModuleOwnership"}
	}
	r.paths[path] = ownerSet{moduleID: true}
	return nil
}

// release removes moduleId's row for path. The path itself is forgotten
// once its owner set becomes empty (spec.md §4.9 removeApi rule).
func (r *ownershipRegistry) release(path, moduleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owners, ok := r.paths[path]
	if !ok {
		return
	}
	delete(owners, moduleID)
	if len(owners) == 0 {
		delete(r.paths, path)
	}
}

// releaseAllOwnedBy removes every path row owned by moduleId, returning
// the paths that became fully unowned as a result (the caller uses this
// to know which subtrees to actually tear down).
func (r *ownershipRegistry) releaseAllOwnedBy(moduleID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var emptied []string
	for path, owners := range r.paths {
		if !owners[moduleID] {
			continue
		}
		delete(owners, moduleID)
		if len(owners) == 0 {
			delete(r.paths, path)
			emptied = append(emptied, path)
		}
	}
	return emptied
}

func describeOwners(owners ownerSet) string {
	for id := range owners {
		if id == "" {
			return "(anonymous)"
		}
		return id
	}
	return "(none)"
}
