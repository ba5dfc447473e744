// Package slothlet is a filesystem-driven API loader (spec.md §OVERVIEW):
// point it at a directory of Go source modules and it builds a navigable
// API tree out of their exports, eagerly or lazily, wraps every call
// through a before/after/always/error hook pipeline, and threads a
// per-instance self/context/reference binding through every dispatched
// call.
package slothlet

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"slothlet/internal/apinode"
	"slothlet/internal/binding"
	"slothlet/internal/build"
	"slothlet/internal/hooks"
	slothlog "slothlet/internal/slog"
)

// API is one loaded slothlet instance (spec.md §4.10's returned API
// surface). Go has no dynamic property/call duality, so the tree's
// dot-path navigation and its own callability (when the root is a C4
// rule-5 root contributor) are both exposed as explicit methods rather
// than overloaded syntax.
type API struct {
	mu sync.Mutex // serializes mutation-lifecycle calls (spec.md §5)

	root           *apinode.Node
	rootIsCallable bool
	opts           Options
	instanceID     string

	ownership *ownershipRegistry
	hooksMgr  *hooks.Manager
	live      *binding.Live // non-nil only when opts.Runtime == "live"

	logFactory *slothlog.Factory
	logger     *slothlog.Logger

	registrations []addApiRegistration
	shutdownOnce  sync.Once
	shutdown      bool
}

// New builds an instance per Options (spec.md §4.10 create()).
func New(opts Options) (*API, error) {
	norm, err := opts.normalize(2)
	if err != nil {
		return nil, err
	}

	a := &API{
		opts:       norm,
		instanceID: uuid.NewString(),
		ownership:  newOwnershipRegistry(),
	}

	a.logFactory = slothlog.NewFactory(norm.LogWriter, norm.Debug)
	a.logger = a.logFactory.Get(slothlog.CategoryOrchestrator)

	mgr, err := hooks.NewManager(norm.HookPatternCacheSize)
	if err != nil {
		return nil, fmt.Errorf("slothlet: %w", err)
	}
	mgr.SetEnabled(*norm.HooksEnabled)
	if norm.HooksPattern != "" && norm.HooksPattern != "**" {
		mgr.SetAllow([]string{norm.HooksPattern})
	}
	mgr.Logger = a.logFactory.Get(slothlog.CategoryHooks)
	a.hooksMgr = mgr

	if norm.Runtime == "live" {
		a.live = binding.NewLive()
	}

	if err := a.buildRoot(context.Background()); err != nil {
		return nil, err
	}
	if norm.Reference != nil {
		a.mergeReference(norm.Reference)
	}

	return a, nil
}

// buildRoot runs C5 or C6 over opts.Dir and installs the result as the
// instance's root node (spec.md §4.5/§4.6).
func (a *API) buildRoot(ctx context.Context) error {
	switch a.opts.Mode {
	case "lazy":
		b := build.NewLazy(a.opts.Sanitize)
		b.MaxDepth = a.opts.ApiDepth
		b.Logger = a.logFactory.Get(slothlog.CategoryBuildLazy)
		b.Ctx = ctx
		a.root = b.Build(a.opts.Dir)
	default:
		b := build.NewEager(a.opts.Sanitize)
		b.MaxDepth = a.opts.ApiDepth
		b.Logger = a.logFactory.Get(slothlog.CategoryBuildEager)
		root, err := b.Build(ctx, a.opts.Dir)
		if err != nil {
			return &LoadError{Path: a.opts.Dir, Cause: err}
		}
		a.root = root
	}
	a.rootIsCallable = a.root.Kind() == apinode.KindCallable
	return nil
}

// mergeReference merges opts.Reference's exported fields into the root
// namespace where keys don't already collide (spec.md §6 `reference`).
// Reference is a plain Go value (typically a struct or map), so its
// fields/entries are the closest Go analogue of a JS object's own
// enumerable properties.
func (a *API) mergeReference(ref interface{}) {
	fields := referenceFields(ref)
	for key, v := range fields {
		if _, exists := a.root.Get(key); exists {
			continue
		}
		_ = a.root.SetChild(key, apinode.NewLeaf(key, v))
	}
}

// InstanceID returns this instance's identifier, regenerated on Reload.
func (a *API) InstanceID() string { return a.instanceID }

// Root returns the instance's root API node for direct navigation.
func (a *API) Root() *apinode.Node { return a.root }

// IsCallable reports whether the root itself is a callable (C4 rule 5).
func (a *API) IsCallable() bool { return a.rootIsCallable }

// Hooks exposes the instance's hook manager (spec.md §6 `hooks.on/off/...`).
func (a *API) Hooks() *hooks.Manager { return a.hooksMgr }

// scopeFor builds the Scope a dispatched call runs inside.
func (a *API) scopeFor(ctx context.Context) (context.Context, func()) {
	s := &binding.Scope{Self: a, Context: a.opts.Context, Reference: a.opts.Reference, InstanceID: a.instanceID, Hooks: a.hooksMgr}
	if a.live != nil {
		restore := a.live.Enter(s)
		return ctx, restore
	}
	return binding.WithScope(ctx, s), func() {}
}

// Call dispatches a call to path (or, if path is "", to the root itself
// when it is callable) through the hook pipeline inside a fresh scope
// (spec.md §4.10 "wraps every materialized function as (...args) =>
// runScope(() => pipeline(path, args, fn))").
func (a *API) Call(ctx context.Context, path string, args ...interface{}) ([]interface{}, error) {
	a.mu.Lock()
	down := a.shutdown
	a.mu.Unlock()
	if down {
		return nil, &ConfigError{Detail: "instance has been shut down"}
	}

	scopedCtx, restore := a.scopeFor(ctx)
	defer restore()

	target := a.root
	if path != "" {
		resolved, err := a.root.Resolve(path)
		if err != nil {
			return nil, err
		}
		target = resolved
	}

	return a.hooksMgr.Dispatch(scopedCtx, path, args, func(ctx context.Context, args []interface{}) ([]interface{}, error) {
		return target.Call(ctx, args...)
	})
}

// Resolve walks path against the root without invoking anything,
// materializing lazy nodes crossed along the way.
func (a *API) Resolve(path string) (*apinode.Node, error) {
	return a.root.Resolve(path)
}

// Self re-enters this instance's own API from inside a dispatched call,
// the Go substitute for the source runtime's `self.math.add(...)`
// live-binding re-entry: a module that needs `self` calls
// binding.FromContext(ctx).Self.(*slothlet.API).Call(ctx, "math.add", ...)
// instead of dotted syntax Go cannot express dynamically.
func (a *API) Self() *API { return a }
