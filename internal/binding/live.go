package binding

import "sync/atomic"

// Live implements the `runtime: "live"` legacy mode (spec.md §6 `runtime`
// option, §9 "retained as the legacy shared-mutation mode for
// single-instance embedders"): instead of threading a Scope through
// context.Context per call, one shared cell is swapped in place before
// each dispatched call and read back by modules through Current.
//
// This trades I5's cross-instance isolation for the source runtime's
// original "just reassign the module-level binding" behavior; it is only
// safe when a process hosts a single slothlet instance, which is exactly
// the case spec.md §9 scopes it to.
type Live struct {
	cell atomic.Pointer[Scope]
}

// NewLive returns a Live cell holding the neutral empty scope.
func NewLive() *Live {
	l := &Live{}
	l.cell.Store(empty)
	return l
}

// Enter swaps in s as the current shared scope and returns a function
// that restores whatever scope was active before, mirroring the
// call/return bracket a per-context scope gets for free.
func (l *Live) Enter(s *Scope) func() {
	prev := l.cell.Swap(s)
	return func() { l.cell.Store(prev) }
}

// Current returns the shared cell's current scope.
func (l *Live) Current() *Scope {
	if s := l.cell.Load(); s != nil {
		return s
	}
	return empty
}
