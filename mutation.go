package slothlet

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"

	"github.com/google/uuid"

	"slothlet/internal/apinode"
	"slothlet/internal/build"
)

// addApiRegistration records one accepted addApi call so reloadApi/reload
// can replay it later against a freshly built tree (spec.md §4.9
// reloadApi: "re-runs every addApi call registered under path, in
// registration order").
type addApiRegistration struct {
	apiPath    string
	folderPath string
	moduleID   string
	metadata   map[string]interface{}
	opts       AddApiOptions
}

// AddApiOptions configures one addApi call (spec.md §4.9).
type AddApiOptions struct {
	// ModuleID attributes ownership of apiPath to a named module instead
	// of the anonymous owner. Re-registering the same ModuleID is always
	// allowed; a different ModuleID requires ForceOverwrite.
	ModuleID string

	// ForceOverwrite permits claiming a path already owned by a
	// different ModuleID, provided Options.EnableModuleOwnership is set.
	ForceOverwrite bool

	Metadata map[string]interface{}
}

// AddApi loads folderPath through the instance's configured builder (C5
// or C6, matching how the root tree itself was built) and grafts the
// result into the tree at apiPath, creating intermediate namespaces as
// needed (spec.md §4.9). folderPath resolves relative to the caller's
// source file when not absolute, the same convention as Options.Dir.
func (a *API) AddApi(apiPath, folderPath string, opts AddApiOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addApiLocked(apiPath, folderPath, opts)
}

func (a *API) addApiLocked(apiPath, folderPath string, opts AddApiOptions) error {
	if a.shutdown {
		return &ConfigError{Detail: "instance has been shut down"}
	}
	if !filepath.IsAbs(folderPath) {
		if _, file, _, ok := runtime.Caller(2); ok {
			folderPath = filepath.Join(filepath.Dir(file), folderPath)
		}
	}

	if err := a.ownership.claim(apiPath, opts.ModuleID, *a.opts.AllowApiOverwrite, opts.ForceOverwrite, a.opts.EnableModuleOwnership); err != nil {
		return err
	}

	subtree, err := a.buildSubtree(context.Background(), folderPath)
	if err != nil {
		a.ownership.release(apiPath, opts.ModuleID)
		return &LoadError{Path: folderPath, Cause: err}
	}

	if err := apinode.Merge(a.root, apiPath, subtree); err != nil {
		a.ownership.release(apiPath, opts.ModuleID)
		return err
	}

	a.registrations = append(a.registrations, addApiRegistration{
		apiPath:    apiPath,
		folderPath: folderPath,
		moduleID:   opts.ModuleID,
		metadata:   opts.Metadata,
		opts:       opts,
	})
	return nil
}

// buildSubtree runs the instance's configured builder over folderPath,
// the same C5/C6 pipeline used for the instance's own root (spec.md
// §4.9 "built the same way the root tree is").
func (a *API) buildSubtree(ctx context.Context, folderPath string) (*apinode.Node, error) {
	if a.opts.Mode == "lazy" {
		b := build.NewLazy(a.opts.Sanitize)
		b.Ctx = ctx
		return b.Build(folderPath), nil
	}
	b := build.NewEager(a.opts.Sanitize)
	return b.Build(ctx, folderPath)
}

// RemoveApi unmerges a subtree and releases its ownership claim(s)
// (spec.md §4.9 removeApi: "removes a subtree either by path or by
// ownership"). apiPath and moduleID are each optional: a non-empty
// apiPath removes exactly that path, regardless of owner; an empty
// apiPath with a non-empty moduleID instead removes every subtree
// currently owned by moduleID, wherever it was registered. Either way,
// any hooks bound only to a removed subtree are detached along with it.
// Removing an already-absent path is tolerated: it returns nil and
// emits no warning.
func (a *API) RemoveApi(apiPath, moduleID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.shutdown {
		return &ConfigError{Detail: "instance has been shut down"}
	}

	if apiPath == "" {
		if moduleID == "" {
			return &ConfigError{Detail: "removeApi requires apiPath or moduleId"}
		}
		return a.removeAllOwnedByLocked(moduleID)
	}

	if err := apinode.Unmerge(a.root, apiPath); err != nil {
		return err
	}
	a.ownership.release(apiPath, moduleID)
	a.hooksMgr.UnregisterUnderPath(apiPath)
	a.registrations = filterRegistrations(a.registrations, func(r addApiRegistration) bool {
		return !(r.apiPath == apiPath && r.moduleID == moduleID)
	})
	return nil
}

// removeAllOwnedByLocked implements the moduleId-only form of RemoveApi:
// every path releaseAllOwnedBy reports as fully unowned is unmerged and
// has its bound hooks detached, and every matching registration is
// dropped from the replay log. Called with a.mu already held.
func (a *API) removeAllOwnedByLocked(moduleID string) error {
	emptied := a.ownership.releaseAllOwnedBy(moduleID)
	for _, path := range emptied {
		if err := apinode.Unmerge(a.root, path); err != nil {
			return err
		}
		a.hooksMgr.UnregisterUnderPath(path)
	}
	a.registrations = filterRegistrations(a.registrations, func(r addApiRegistration) bool {
		return r.moduleID != moduleID
	})
	return nil
}

// ReloadApi replays every addApi registration recorded under path, in
// registration order, rebuilding each from its folderPath and rebinding
// it in place (spec.md §4.9 reloadApi: "mutateExisting ... prior deep
// references remain valid").
func (a *API) ReloadApi(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.shutdown {
		return &ConfigError{Detail: "instance has been shut down"}
	}
	for _, reg := range a.registrations {
		if !underPath(reg.apiPath, path) {
			continue
		}
		subtree, err := a.buildSubtree(context.Background(), reg.folderPath)
		if err != nil {
			return &LoadError{Path: reg.folderPath, Cause: err}
		}
		if err := apinode.Merge(a.root, reg.apiPath, subtree); err != nil {
			return err
		}
	}
	return nil
}

// Reload regenerates the instance's InstanceID and rebuilds the whole
// tree from Options.Dir, then replays every still-active addApi
// registration on top of the fresh root (spec.md §4.9 reload()). As
// with reloadApi, previously taken *apinode.Node references remain
// valid: the root pointer itself is preserved and rebound in place.
func (a *API) Reload() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.shutdown {
		return &ConfigError{Detail: "instance has been shut down"}
	}

	fresh, err := a.buildSubtree(context.Background(), a.opts.Dir)
	if err != nil {
		return &LoadError{Path: a.opts.Dir, Cause: err}
	}
	kind, fn, props, leaf, err := fresh.Contents()
	if err != nil {
		return err
	}
	a.root.Rebind(kind, fn, props, leaf)
	a.rootIsCallable = a.root.Kind() == apinode.KindCallable

	if a.opts.Reference != nil {
		a.mergeReference(a.opts.Reference)
	}

	for _, reg := range a.registrations {
		subtree, err := a.buildSubtree(context.Background(), reg.folderPath)
		if err != nil {
			return &LoadError{Path: reg.folderPath, Cause: err}
		}
		if err := apinode.Merge(a.root, reg.apiPath, subtree); err != nil {
			return err
		}
	}

	a.instanceID = uuid.NewString()
	return nil
}

// Shutdown tears down the instance: it disables the hook pipeline,
// drops the ownership registry and registration log, and flushes the
// log factory. Safe to call more than once; only the first call has any
// effect (spec.md §4.9 shutdown()).
func (a *API) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var syncErr error
	a.shutdownOnce.Do(func() {
		a.hooksMgr.SetEnabled(false)
		a.ownership = newOwnershipRegistry()
		a.registrations = nil
		a.shutdown = true
		if a.logFactory != nil {
			syncErr = a.logFactory.Sync()
		}
	})
	return syncErr
}

func filterRegistrations(regs []addApiRegistration, keep func(addApiRegistration) bool) []addApiRegistration {
	out := make([]addApiRegistration, 0, len(regs))
	for _, r := range regs {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// underPath reports whether candidate is path itself or nested under it
// (dot-path prefix match), the semantics reloadApi("math") uses to also
// catch an addApi registered at "math.extra".
func underPath(candidate, path string) bool {
	if path == "" || candidate == path {
		return true
	}
	return len(candidate) > len(path) && candidate[:len(path)] == path && candidate[len(path)] == '.'
}

// referenceFields flattens a struct or map value into its top-level
// exported-field/entry set, the closest Go analogue of copying a JS
// object's own enumerable keys into the root namespace (spec.md §6
// `reference`). Unsupported kinds (e.g. a bare scalar or func) yield no
// fields; Options.Reference remains available via the binding.Scope
// regardless.
func referenceFields(ref interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	v := reflect.ValueOf(ref)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return out
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.PkgPath != "" { // unexported
				continue
			}
			out[f.Name] = v.Field(i).Interface()
		}
	case reflect.Map:
		for _, key := range v.MapKeys() {
			out[fmt.Sprint(key.Interface())] = v.MapIndex(key).Interface()
		}
	}
	return out
}
