// Package binding implements C7: the three per-instance "live bindings"
// (self, context, reference) spec.md §4.7 says every loaded module can
// import. The source runtime resolves them through an async-local-storage
// primitive; Go has no ambient task-local storage, so spec.md §9's own
// design note is followed literally: the bindings travel as an explicit
// context.Context value, and callback boundaries that would otherwise
// lose that context (event listeners, timers) must be wrapped with
// Capture at registration time.
package binding

import "context"

// Scope is the per-call record spec.md §4.7 Model A describes as
// "{self, context, reference, instanceId, hooks}". Hooks is typed as
// interface{} here rather than a concrete *hooks.Manager, so this package
// does not import internal/hooks; callers type-assert it back to
// *hooks.Manager.
type Scope struct {
	Self       interface{} // the owning *slothlet.API, for `self` re-entry via its Call method
	Context    interface{} // the `context` option value passed to New
	Reference  interface{} // the `reference` option value passed to New
	InstanceID string
	Hooks      interface{}
}

type scopeKey struct{}

// empty is returned by FromContext when no scope was ever entered
// (spec.md §4.7 "Failure semantics": a read outside any scope observes
// an empty/neutral record, never throws).
var empty = &Scope{}

// WithScope returns a child context carrying s as the active scope.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the active scope, or the shared empty/neutral
// scope if ctx carries none.
func FromContext(ctx context.Context) *Scope {
	if ctx == nil {
		return empty
	}
	if s, ok := ctx.Value(scopeKey{}).(*Scope); ok && s != nil {
		return s
	}
	return empty
}

// Capture snapshots ctx's active scope and returns a function that
// re-enters it around fn, regardless of which context fn is eventually
// invoked from. This is the explicit substitute spec.md §9 prescribes
// for the source runtime's event-emitter-prototype patch: a module that
// registers a timer or listener callback should wrap it in Capture at
// the point of registration, so the callback observes the scope that
// was active when it was registered rather than whatever (or no) scope
// is active when it eventually fires.
func Capture(ctx context.Context, fn func(context.Context)) func() {
	s := FromContext(ctx)
	return func() {
		fn(WithScope(context.Background(), s))
	}
}

// CaptureArgs is the args-forwarding variant of Capture, for callback
// shapes that need to receive arguments at fire time (e.g. a listener's
// event payload) rather than a closed-over zero-arg thunk.
func CaptureArgs(ctx context.Context, fn func(context.Context, []interface{})) func(...interface{}) {
	s := FromContext(ctx)
	return func(args ...interface{}) {
		fn(WithScope(context.Background(), s), args)
	}
}
