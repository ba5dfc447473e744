package build

import (
	"context"
	"path/filepath"
	"reflect"

	"golang.org/x/sync/singleflight"

	"slothlet/internal/apinode"
	"slothlet/internal/decision"
	"slothlet/internal/modscan"
	"slothlet/internal/sanitize"
	slothlog "slothlet/internal/slog"
)

// Lazy implements C6: every directory and module is a proxy (apinode's
// lazy Node) that materializes on first access, mutating itself in place
// to preserve reference identity (spec.md §4.6, I3).
//
// Directory structure discovery (C3's ScanDir, a stat + go/parser pass)
// is cheap and happens inline as part of a directory node's own
// materialization; only a module's actual execution (yaegi, via
// ModuleDescriptor.Load) is the expensive step deferred behind a build
// lock. That lock is `loadGroup`, a singleflight.Group keyed by file
// path: several sibling Nodes can be derived from the same module (e.g.
// every lifted named export of a multi-default sibling), and Node's own
// per-node mutex only dedups materialization of *that* Node — loadGroup
// additionally ensures the underlying module is interpreted at most once
// even when multiple sibling Nodes race to materialize concurrently
// (spec.md §4.6 "no double load").
type Lazy struct {
	SanitizeOpts sanitize.Options
	Warn         WarnFunc
	Logger       *slothlog.Logger

	// MaxDepth mirrors Eager.MaxDepth (spec.md §6 apiDepth).
	MaxDepth int

	// Ctx is used by deferred Materializer closures, which apinode's
	// Materializer signature carries no context.Context parameter for.
	// Node.Call still accepts its own per-call ctx for the function
	// invocation itself; Ctx here only bounds the yaegi interpretation
	// that produces the callable value in the first place.
	Ctx context.Context

	loadGroup singleflight.Group
}

// NewLazy constructs a Lazy builder with the given sanitizer config, no
// depth limit, and context.Background() for deferred materialization.
func NewLazy(opts sanitize.Options) *Lazy {
	return &Lazy{SanitizeOpts: opts, Logger: slothlog.Noop(), MaxDepth: -1, Ctx: context.Background()}
}

// Build returns the root proxy Node; no I/O happens until it (or a
// descendant) is first accessed.
func (b *Lazy) Build(rootDir string) *apinode.Node {
	return b.lazyDirNode(rootDir, "", true, 0)
}

type loadResult struct {
	def   reflect.Value
	named map[string]reflect.Value
}

// loadModule runs m.Load through the builder's singleflight group.
func (b *Lazy) loadModule(m *modscan.ModuleDescriptor) (reflect.Value, map[string]reflect.Value, error) {
	v, err, _ := b.loadGroup.Do(m.FilePath, func() (interface{}, error) {
		def, named, err := m.Load(b.Ctx)
		if err != nil {
			return nil, err
		}
		return loadResult{def: def, named: named}, nil
	})
	if err != nil {
		return reflect.Value{}, nil, err
	}
	lr := v.(loadResult)
	return lr.def, lr.named, nil
}

func (b *Lazy) fileKey(name string) string {
	return sanitize.Sanitize(name, b.SanitizeOpts)
}

// lazyDirNode returns a Node whose Materializer performs one directory
// scan (ScanDir, a stat/parse pass, not yaegi execution) and wires up
// child proxies — further lazyDirNode calls for subdirectories, and
// lazyModuleNode/lazyFlattenValueNode for modules — without forcing any
// of them to materialize.
func (b *Lazy) lazyDirNode(dirPath, categoryKey string, isRoot bool, depth int) *apinode.Node {
	path := categoryKey
	return apinode.NewLazy(path, func() (apinode.Kind, reflect.Value, *apinode.Namespace, interface{}, error) {
		desc, err := modscan.ScanDir(dirPath, categoryKey, b.fileKey)
		if err != nil {
			return 0, reflect.Value{}, nil, nil, err
		}

		atDepthLimit := b.MaxDepth >= 0 && depth >= b.MaxDepth
		if atDepthLimit {
			desc.SubDirs = nil
		}

		// See Eager.buildDir for why ActionFlattenValue is also handled
		// here: a self-referential module that is also its directory's
		// sole file anchors its flattened value at path directly instead
		// of nesting under a child key.
		if desc.Strategy == modscan.StrategySingleFile && desc.FlattenSingle {
			d := decision.Decide(desc.Modules[0], desc, isRoot)
			m := desc.Modules[0]
			switch d.Action {
			case decision.ActionLiftModuleContents:
				def, named, err := b.loadModule(m)
				if err != nil {
					return 0, reflect.Value{}, nil, nil, err
				}
				kind, fn, props, leaf := moduleNodeFields(def, named, m, path, b.SanitizeOpts)
				return kind, fn, props, leaf, nil
			case decision.ActionFlattenValue:
				_, named, err := b.loadModule(m)
				if err != nil {
					return 0, reflect.Value{}, nil, nil, err
				}
				var v reflect.Value
				for _, val := range named {
					v = val
				}
				kind, fn, props, leaf := flattenedFields(path, v)
				return kind, fn, props, leaf, nil
			}
		}

		props := apinode.NewEmptyNamespace()
		type subEntry struct {
			key  string
			node *apinode.Node
		}
		subs := make([]subEntry, len(desc.SubDirs))
		for i, sub := range desc.SubDirs {
			key := b.fileKey(filepath.Base(sub))
			subs[i] = subEntry{key: key, node: b.lazyDirNode(sub, key, false, depth+1)}
			props.Set(key, subs[i].node)
		}

		hasModulesAtKey := func(key string) (int, bool) {
			for i, s := range subs {
				if s.key == key {
					return i, true
				}
			}
			return 0, false
		}
		place := func(key string, node *apinode.Node) {
			if i, ok := hasModulesAtKey(key); ok {
				// A subdirectory's own emptiness is unknown until it
				// materializes; conservatively probe it once here. This
				// is the one place directory-level laziness is traded
				// for correctness of the collision rule (spec.md §4.5).
				if keys, err := subs[i].node.Keys(); err == nil && len(keys) > 0 {
					b.warn(key, "module export dropped: shadowed by non-empty subdirectory")
					return
				}
			}
			props.Set(key, node)
		}

		var rootFn reflect.Value
		isRootCallable := false

		for _, m := range desc.Modules {
			m := m
			d := decision.Decide(m, desc, isRoot)
			switch d.Action {
			case decision.ActionFlattenValue:
				place(b.flattenValueKey(m), b.lazyFlattenValueNode(m))

			case decision.ActionLiftNamedExports:
				for _, name := range m.NamedExports {
					name := name
					key := sanitize.Sanitize(name, b.SanitizeOpts)
					place(key, b.lazyNamedExportNode(m, name, key))
				}

			case decision.ActionRootContributor:
				def, named, err := b.loadModule(m)
				if err != nil {
					return 0, reflect.Value{}, nil, nil, err
				}
				rootFn = def
				isRootCallable = true
				for name, v := range named {
					key := sanitize.Sanitize(name, b.SanitizeOpts)
					place(key, namedExportNode(joinPath(path, key), v))
				}

			default:
				place(m.FileKey, b.lazyModuleNode(m, m.FileKey))
			}
		}

		if isRoot && isRootCallable {
			return apinode.KindCallable, rootFn, props, nil, nil
		}
		return apinode.KindNamespace, reflect.Value{}, props, nil, nil
	})
}

// flattenValueKey computes the ActionFlattenValue placement key without
// loading the module: the single matching export's source-cased name is
// already known statically from Analyze.
func (b *Lazy) flattenValueKey(m *modscan.ModuleDescriptor) string {
	return decision.PreferredKey(m.NamedExports[0], m.FileKey, b.SanitizeOpts)
}

// lazyFlattenValueNode defers loading the module until first access, then
// resolves to the same {kind, fn, props, leaf} an eager build would.
func (b *Lazy) lazyFlattenValueNode(m *modscan.ModuleDescriptor) *apinode.Node {
	key := b.flattenValueKey(m)
	return apinode.NewLazy(key, func() (apinode.Kind, reflect.Value, *apinode.Namespace, interface{}, error) {
		_, named, err := b.loadModule(m)
		if err != nil {
			return 0, reflect.Value{}, nil, nil, err
		}
		v := named[m.NamedExports[0]]
		kind, fn, props, leaf := flattenedFields(key, v)
		return kind, fn, props, leaf, nil
	})
}

// lazyModuleNode defers a traditional module's load + shape resolution.
func (b *Lazy) lazyModuleNode(m *modscan.ModuleDescriptor, path string) *apinode.Node {
	return apinode.NewLazy(path, func() (apinode.Kind, reflect.Value, *apinode.Namespace, interface{}, error) {
		def, named, err := b.loadModule(m)
		if err != nil {
			return 0, reflect.Value{}, nil, nil, err
		}
		kind, fn, props, leaf := moduleNodeFields(def, named, m, path, b.SanitizeOpts)
		return kind, fn, props, leaf, nil
	})
}

// lazyNamedExportNode defers one lifted named export's placement; its
// Load is shared via loadGroup with any sibling export of the same module.
func (b *Lazy) lazyNamedExportNode(m *modscan.ModuleDescriptor, exportName, path string) *apinode.Node {
	return apinode.NewLazy(path, func() (apinode.Kind, reflect.Value, *apinode.Namespace, interface{}, error) {
		_, named, err := b.loadModule(m)
		if err != nil {
			return 0, reflect.Value{}, nil, nil, err
		}
		v := named[exportName]
		if v.IsValid() && v.Kind() == reflect.Func {
			return apinode.KindCallable, v, nil, nil, nil
		}
		var leaf interface{}
		if v.IsValid() {
			leaf = v.Interface()
		}
		return apinode.KindLeaf, reflect.Value{}, nil, leaf, nil
	})
}

func (b *Lazy) warn(path, msg string) {
	if b.Warn != nil {
		b.Warn(path, msg)
	}
	if b.Logger != nil {
		b.Logger.Warnw(msg, "path", path)
	}
}
