// Package apinode implements the API node: the tagged variant over
// {callable, namespace, leaf} that spec.md §3 describes as the internal
// representation of a materialized tree node, plus the insertion-ordered
// Namespace container both the eager and lazy builders write into.
//
// In the source JS runtime, "non-enumerable" properties are a real
// concern (for...in / Object.keys would otherwise surface management
// methods). Go has no reflection-based enumeration of struct methods at
// the language level, so that half of spec.md §4.10/§6 ("attaches
// management methods ... as non-enumerable properties") is automatically
// satisfied by ordinary Go methods on the orchestrator type; only the
// dynamically loaded Namespace contents are ever walked by Keys/Range.
package apinode

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Kind tags which variant a Node currently is.
type Kind int

const (
	KindNamespace Kind = iota
	KindCallable
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindNamespace:
		return "namespace"
	case KindCallable:
		return "callable"
	case KindLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}

// MaterializeState tracks a lazily-built Node's lifecycle (spec.md §4.6).
type MaterializeState int32

const (
	StateMaterialized MaterializeState = iota // eager nodes, or already-resolved lazy nodes
	StatePlanned
	StateMaterializing
	StateFailed
)

// Materializer produces the concrete contents of a lazy Node on first
// access. It is called at most once successfully per Node (ensureMaterialized
// runs it under the Node's own lock); a failure is cached and re-raised
// until Reset or Rebind replaces the Node's state.
type Materializer func() (kind Kind, fn reflect.Value, props *Namespace, leaf interface{}, err error)

// Node is the tagged {callable, namespace, leaf} variant (spec.md §3).
// Its identity (pointer) never changes across materialization (I3): a
// lazy Node's fields are mutated in place under mu, never replaced.
type Node struct {
	Path string // dot-joined API path, for diagnostics (__slothletPath)

	mu       sync.RWMutex
	kind     Kind
	fn       reflect.Value
	props    *Namespace
	leaf     interface{}

	state        MaterializeState
	materializer Materializer
	materializeErr error

	// Metadata surfaced via __metadata regardless of materialization
	// state (spec.md §4.6 "Metadata visibility").
	Metadata map[string]interface{}
}

// NewNamespace builds a ready (eagerly materialized) namespace Node.
func NewNamespace(path string, props *Namespace) *Node {
	return &Node{Path: path, kind: KindNamespace, props: props, state: StateMaterialized}
}

// NewCallable builds a ready callable Node. props may be nil if the
// function has no attached named exports.
func NewCallable(path string, fn reflect.Value, props *Namespace) *Node {
	return &Node{Path: path, kind: KindCallable, fn: fn, props: props, state: StateMaterialized}
}

// NewLeaf builds a ready leaf (pass-through value) Node.
func NewLeaf(path string, value interface{}) *Node {
	return &Node{Path: path, kind: KindLeaf, leaf: value, state: StateMaterialized}
}

// NewLazy builds a Node in the "planned" state: it carries no content
// yet, only the function that will produce it on first materializing
// access (spec.md §4.6).
func NewLazy(path string, materializer Materializer) *Node {
	return &Node{Path: path, state: StatePlanned, materializer: materializer}
}

// State returns the node's current materialization state without
// forcing materialization.
func (n *Node) State() MaterializeState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// Kind returns the node's current tag without forcing materialization.
// A planned lazy node reports KindNamespace (the zero Kind) unless
// SetKindHint recorded its eventual shape.
func (n *Node) Kind() Kind {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.kind
}

// SetKindHint lets the lazy builder record, before materialization, what
// kind this node will resolve to (so call-through works pre-materialize,
// spec.md §4.6 "Behaves as a callable if C3/C4 indicate ...").
func (n *Node) SetKindHint(k Kind) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == StatePlanned {
		n.kind = k
	}
}

// ensureMaterialized runs the materializer exactly once: n.mu is held for
// the whole run, so concurrent callers wait for the first and then see
// its result. (internal/build/lazy.go's loadGroup separately shares
// overlapping module loads between sibling nodes.)
func (n *Node) ensureMaterialized() error {
	n.mu.RLock()
	state := n.state
	err := n.materializeErr
	n.mu.RUnlock()

	switch state {
	case StateMaterialized:
		return nil
	case StateFailed:
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == StateMaterialized {
		return nil
	}
	if n.state == StateFailed {
		return n.materializeErr
	}
	n.state = StateMaterializing

	kind, fn, props, leaf, merr := n.materializer()
	if merr != nil {
		n.state = StateFailed
		n.materializeErr = merr
		return merr
	}
	n.kind = kind
	n.fn = fn
	n.props = props
	n.leaf = leaf
	n.state = StateMaterialized
	n.materializer = nil
	return nil
}

// Reset clears a StateFailed node back to StatePlanned so the next
// access retries materialization. Per spec.md §9 open question, this is
// never called implicitly: nothing in this module calls it, and the
// mutation lifecycle (ReloadApi, Reload) clears nodes through Rebind.
func (n *Node) Reset(materializer Materializer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = StatePlanned
	n.materializer = materializer
	n.materializeErr = nil
}

// Get resolves a single path segment against this node: for a
// namespace, a child by key; for a callable, an attached property.
// Materializes the node first if it is lazy.
func (n *Node) Get(key string) (*Node, bool) {
	if err := n.ensureMaterialized(); err != nil {
		return nil, false
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.props == nil {
		return nil, false
	}
	return n.props.Get(key)
}

// Resolve walks a dot-joined path from this node, materializing lazy
// nodes as the walk crosses them.
func (n *Node) Resolve(path string) (*Node, error) {
	if path == "" {
		if err := n.ensureMaterialized(); err != nil {
			return nil, err
		}
		return n, nil
	}
	cur := n
	for _, seg := range splitPath(path) {
		if err := cur.ensureMaterialized(); err != nil {
			return nil, err
		}
		next, ok := cur.Get(seg)
		if !ok {
			return nil, fmt.Errorf("slothlet: path not found: %s (at %q)", path, seg)
		}
		cur = next
	}
	if err := cur.ensureMaterialized(); err != nil {
		return nil, err
	}
	return cur, nil
}

// Call invokes a callable Node, materializing it first if lazy
// (spec.md §4.6 "Call-through for callable proxies").
func (n *Node) Call(ctx context.Context, args ...interface{}) ([]interface{}, error) {
	if err := n.ensureMaterialized(); err != nil {
		return nil, err
	}
	n.mu.RLock()
	kind := n.kind
	fn := n.fn
	n.mu.RUnlock()
	if kind != KindCallable {
		return nil, fmt.Errorf("slothlet: %s is not callable (kind=%s)", n.Path, kind)
	}
	return callReflect(ctx, fn, args)
}

// Leaf returns the pass-through value, materializing first if lazy.
func (n *Node) Leaf() (interface{}, error) {
	if err := n.ensureMaterialized(); err != nil {
		return nil, err
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.leaf, nil
}

// Keys returns the insertion-ordered child keys, materializing first.
func (n *Node) Keys() ([]string, error) {
	if err := n.ensureMaterialized(); err != nil {
		return nil, err
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.props == nil {
		return nil, nil
	}
	return n.props.Keys(), nil
}

// SetChild inserts or replaces key in this node's property namespace,
// materializing the node first and allocating a namespace if it had
// none (a callable with no declared properties, or a leaf being grown
// into carrying children via addApi). Used by the mutation lifecycle to
// graft a built subtree under an existing namespace/callable node.
func (n *Node) SetChild(key string, child *Node) error {
	if err := n.ensureMaterialized(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.props == nil {
		n.props = NewEmptyNamespace()
	}
	n.props.Set(key, child)
	return nil
}

// RemoveChild deletes key from this node's property namespace, if present.
func (n *Node) RemoveChild(key string) error {
	if err := n.ensureMaterialized(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.props == nil {
		return nil
	}
	n.props.Delete(key)
	return nil
}

// Contents materializes n and returns its raw {kind, fn, props, leaf}
// tuple, for copying into another Node via Rebind (the mutation
// lifecycle's mutateExisting path).
func (n *Node) Contents() (Kind, reflect.Value, *Namespace, interface{}, error) {
	if err := n.ensureMaterialized(); err != nil {
		return 0, reflect.Value{}, nil, nil, err
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.kind, n.fn, n.props, n.leaf, nil
}

// Rebind overwrites this node's materialized contents in place, keeping
// its pointer identity (I3). This is how reloadApi/reload satisfy "prior
// deep references remain valid": a reference taken before reload still
// points at the same *Node, whose fields are simply swapped to the
// newly built output.
func (n *Node) Rebind(kind Kind, fn reflect.Value, props *Namespace, leaf interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kind = kind
	n.fn = fn
	n.props = props
	n.leaf = leaf
	n.state = StateMaterialized
	n.materializer = nil
	n.materializeErr = nil
}

// callReflect adapts a reflect.Value func to the (ctx, args...) calling
// convention: if the function's first parameter is context.Context, ctx
// is prepended; otherwise ctx is dropped. Mirrors the teacher's
// YaegiExecutor pattern of invoking a dynamically interpreted function
// by reflect.Value.
func callReflect(ctx context.Context, fn reflect.Value, args []interface{}) ([]interface{}, error) {
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("slothlet: value is not a function")
	}
	t := fn.Type()
	in := make([]reflect.Value, 0, len(args)+1)
	argIdx := 0
	if t.NumIn() > 0 && t.In(0) == reflect.TypeOf((*context.Context)(nil)).Elem() {
		if ctx == nil {
			ctx = context.Background()
		}
		in = append(in, reflect.ValueOf(ctx))
	}
	for ; argIdx < len(args); argIdx++ {
		want := t.NumIn()
		idx := len(in)
		if !t.IsVariadic() && idx >= want {
			break
		}
		var pt reflect.Type
		if t.IsVariadic() && idx >= want-1 {
			pt = t.In(want - 1).Elem()
		} else {
			pt = t.In(idx)
		}
		in = append(in, coerceArg(args[argIdx], pt))
	}
	out := fn.Call(in)
	results := make([]interface{}, 0, len(out))
	var callErr error
	for i, o := range out {
		if i == len(out)-1 && o.Type() == reflect.TypeOf((*error)(nil)).Elem() {
			if !o.IsNil() {
				callErr = o.Interface().(error)
			}
			continue
		}
		results = append(results, o.Interface())
	}
	return results, callErr
}

func coerceArg(v interface{}, want reflect.Type) reflect.Value {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return reflect.Zero(want)
	}
	if rv.Type().AssignableTo(want) {
		return rv
	}
	if rv.Type().ConvertibleTo(want) {
		return rv.Convert(want)
	}
	return rv
}
