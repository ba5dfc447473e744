// Package hooks implements C8: the before/after/always/error pipeline
// that wraps every dispatched API call (spec.md §4.8). Pattern matching
// reuses the teacher's router-style "compile once, cache the compiled
// form" idiom (internal/shards/system/router.go's route-table dispatch),
// swapped onto an LRU so long-lived instances with many dynamically
// registered patterns (plugins calling addApi repeatedly) don't grow an
// unbounded compiled-pattern map.
package hooks

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"

	slothlog "slothlet/internal/slog"
)

// Subset orders hooks of the same type relative to one another,
// independent of (and nested inside) the priority/registration-index
// tiebreakers (spec.md §4.8: "sort by subset (before < primary < after),
// then priority descending, then registration index ascending"). A
// plugin registering several hooks of one type can use Subset to place
// some ahead of the function body and some after, without juggling
// numeric priorities against hooks it doesn't control.
type Subset int

const (
	SubsetBefore Subset = iota
	SubsetPrimary
	SubsetAfter
)

// BeforeFunc inspects/transforms the call before it runs. Returning a
// non-nil newArgs replaces the arguments seen by the next before-hook
// and, ultimately, the wrapped function. Returning shortCircuit=true
// skips the function body entirely; value becomes the call's result as
// if the function had returned it, and after-hooks still run against it
// (spec.md §4.8 "after sees whatever would have been the result").
type BeforeFunc func(ctx context.Context, path string, args []interface{}) (newArgs []interface{}, value interface{}, shortCircuit bool, err error)

// AfterFunc chainably transforms the result. A nil returned value means
// "keep the prior result" (spec.md §9 open question on `after` returning
// nil/undefined), not "the result is now nil".
type AfterFunc func(ctx context.Context, path string, result interface{}) (interface{}, error)

// AlwaysFunc observes every exit path: success, short-circuit, or error.
type AlwaysFunc func(ctx context.Context, path string, result interface{}, hasError bool, errs []error)

// ErrorFunc observes a call-ending error. It cannot suppress it.
type ErrorFunc func(ctx context.Context, path string, err error, source string)

type registration struct {
	id       string
	pattern  string
	priority int
	subset   Subset
	regIndex int

	before BeforeFunc
	after  AfterFunc
	always AlwaysFunc
	onErr  ErrorFunc
}

func sortRegistrations(regs []*registration) {
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].subset != regs[j].subset {
			return regs[i].subset < regs[j].subset
		}
		if regs[i].priority != regs[j].priority {
			return regs[i].priority > regs[j].priority
		}
		return regs[i].regIndex < regs[j].regIndex
	})
}

// Manager holds the four hook lists and the compiled-pattern cache.
type Manager struct {
	mu sync.RWMutex

	before []*registration
	after  []*registration
	always []*registration
	onErr  []*registration

	nextIndex int
	enabled   bool
	allow     []string

	cache  *lru.Cache[string, *compiledPattern]
	Logger *slothlog.Logger
}

// NewManager builds an enabled Manager with an LRU of the given capacity
// for compiled glob patterns.
func NewManager(patternCacheSize int) (*Manager, error) {
	cache, err := lru.New[string, *compiledPattern](patternCacheSize)
	if err != nil {
		return nil, fmt.Errorf("slothlet: hooks: %w", err)
	}
	return &Manager{enabled: true, cache: cache, Logger: slothlog.Noop()}, nil
}

func (m *Manager) nextRegIndex() int {
	m.nextIndex++
	return m.nextIndex - 1
}

// RegisterBefore adds a before-hook and returns its id for later Unregister.
func (m *Manager) RegisterBefore(pattern string, priority int, subset Subset, fn BeforeFunc) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &registration{id: uuid.NewString(), pattern: pattern, priority: priority, subset: subset, regIndex: m.nextRegIndex(), before: fn}
	m.before = append(m.before, r)
	sortRegistrations(m.before)
	return r.id
}

// RegisterAfter adds an after-hook and returns its id.
func (m *Manager) RegisterAfter(pattern string, priority int, subset Subset, fn AfterFunc) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &registration{id: uuid.NewString(), pattern: pattern, priority: priority, subset: subset, regIndex: m.nextRegIndex(), after: fn}
	m.after = append(m.after, r)
	sortRegistrations(m.after)
	return r.id
}

// RegisterAlways adds an always-hook and returns its id.
func (m *Manager) RegisterAlways(pattern string, priority int, subset Subset, fn AlwaysFunc) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &registration{id: uuid.NewString(), pattern: pattern, priority: priority, subset: subset, regIndex: m.nextRegIndex(), always: fn}
	m.always = append(m.always, r)
	sortRegistrations(m.always)
	return r.id
}

// RegisterError adds an error-hook and returns its id.
func (m *Manager) RegisterError(pattern string, priority int, subset Subset, fn ErrorFunc) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &registration{id: uuid.NewString(), pattern: pattern, priority: priority, subset: subset, regIndex: m.nextRegIndex(), onErr: fn}
	m.onErr = append(m.onErr, r)
	sortRegistrations(m.onErr)
	return r.id
}

// Unregister removes a hook by id from whichever list holds it.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.before = removeByID(m.before, id)
	m.after = removeByID(m.after, id)
	m.always = removeByID(m.always, id)
	m.onErr = removeByID(m.onErr, id)
}

func removeByID(regs []*registration, id string) []*registration {
	out := make([]*registration, 0, len(regs))
	for _, r := range regs {
		if r.id != id {
			out = append(out, r)
		}
	}
	return out
}

// UnregisterUnderPath detaches every hook (of all four types) whose
// pattern is bound only to the prefix subtree (boundToPrefix), returning
// how many were removed. removeApi calls this so hooks registered for a
// removed subtree don't keep firing against a path that no longer
// resolves (spec.md §4.9 "detaches hooks bound only to that subtree").
func (m *Manager) UnregisterUnderPath(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int
	var n int
	m.before, n = filterBoundTo(m.before, prefix)
	removed += n
	m.after, n = filterBoundTo(m.after, prefix)
	removed += n
	m.always, n = filterBoundTo(m.always, prefix)
	removed += n
	m.onErr, n = filterBoundTo(m.onErr, prefix)
	removed += n
	return removed
}

func filterBoundTo(regs []*registration, prefix string) ([]*registration, int) {
	out := make([]*registration, 0, len(regs))
	removed := 0
	for _, r := range regs {
		if boundToPrefix(r.pattern, prefix) {
			removed++
			continue
		}
		out = append(out, r)
	}
	return out, removed
}

// SetEnabled toggles the global on/off switch (spec.md §4.8). A disabled
// manager bypasses the pipeline entirely: Dispatch calls fn directly.
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// SetAllow installs an allow-list of patterns: when non-empty, Dispatch
// only runs the pipeline for paths matching at least one allow pattern;
// other paths skip straight to calling fn, as if hooks were disabled for
// them specifically. An empty list (the default) allows every path.
func (m *Manager) SetAllow(patterns []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allow = append([]string(nil), patterns...)
}

func (m *Manager) shouldRun(path string) bool {
	m.mu.RLock()
	enabled := m.enabled
	allow := m.allow
	m.mu.RUnlock()
	if !enabled {
		return false
	}
	if len(allow) == 0 {
		return true
	}
	for _, p := range allow {
		if m.match(p, path) {
			return true
		}
	}
	return false
}

func (m *Manager) match(pattern, path string) bool {
	cp, err := m.compiled(pattern)
	if err != nil {
		m.Logger.Warnw("invalid hook pattern", "pattern", pattern, "error", err)
		return false
	}
	return cp.match(path)
}

func (m *Manager) compiled(pattern string) (*compiledPattern, error) {
	if cp, ok := m.cache.Get(pattern); ok {
		return cp, nil
	}
	cp, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	m.cache.Add(pattern, cp)
	return cp, nil
}

func (m *Manager) matchingFor(path string, regs []*registration) []*registration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*registration, 0, len(regs))
	for _, r := range regs {
		if m.match(r.pattern, path) {
			out = append(out, r)
		}
	}
	return out
}

// Fn is the wrapped function shape Dispatch calls: the already-resolved
// materialized callable (e.g. apinode.Node.Call), accepting the
// (possibly before-hook-replaced) args and returning its raw results.
type Fn func(ctx context.Context, args []interface{}) ([]interface{}, error)

// Dispatch runs the full before -> fn -> after -> always pipeline for one
// call at path (spec.md §4.8's dispatch contract), returning fn's
// (possibly after-hook-transformed) results.
func (m *Manager) Dispatch(ctx context.Context, path string, args []interface{}, fn Fn) ([]interface{}, error) {
	if !m.shouldRun(path) {
		return fn(ctx, args)
	}

	beforeRegs := m.matchingFor(path, m.before)
	afterRegs := m.matchingFor(path, m.after)
	alwaysRegs := m.matchingFor(path, m.always)
	errorRegs := m.matchingFor(path, m.onErr)

	currentArgs := args
	var result interface{}
	var shortCircuited bool
	var errs []error

	for _, r := range beforeRegs {
		newArgs, value, sc, err := r.before(ctx, path, currentArgs)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if newArgs != nil {
			currentArgs = newArgs
		}
		if sc {
			shortCircuited = true
			result = value
			break
		}
	}

	var callErr error
	if !shortCircuited {
		out, err := fn(ctx, currentArgs)
		if err != nil {
			callErr = err
			errs = append(errs, err)
		} else {
			result = collapse(out)
		}
	}

	if callErr == nil {
		for _, r := range afterRegs {
			next, err := r.after(ctx, path, result)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if next != nil {
				result = next
			}
		}
	}

	hasError := callErr != nil
	for _, r := range alwaysRegs {
		r.always(ctx, path, result, hasError, errs)
	}

	if hasError {
		for _, r := range errorRegs {
			r.onErr(ctx, path, callErr, path)
		}
		return nil, callErr
	}
	return expand(result), nil
}

// collapse mirrors a single JS return value: a one-element result list
// collapses to its sole element so before/after hooks see the same
// shape a JS handler would (`result`, not `[result]`); anything else
// (zero or multiple returns) is passed through as the raw slice.
func collapse(out []interface{}) interface{} {
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// expand is collapse's inverse at the pipeline boundary.
func expand(result interface{}) []interface{} {
	if out, ok := result.([]interface{}); ok {
		return out
	}
	return []interface{}{result}
}
