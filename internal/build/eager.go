// Package build implements C5 (eager builder) and C6 (lazy builder):
// walking a module tree via internal/modscan, consulting
// internal/decision for placement, and assembling the result into an
// internal/apinode tree.
package build

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"

	"golang.org/x/sync/errgroup"

	"slothlet/internal/apinode"
	"slothlet/internal/decision"
	"slothlet/internal/modscan"
	"slothlet/internal/sanitize"
	slothlog "slothlet/internal/slog"
)

// WarnFunc receives non-fatal build-time warnings (spec.md §4.5's
// "dropped with warning via the hook manager's error channel"). The
// orchestrator (slothlet.New) leaves it nil, so build warnings reach only
// the builder's Logger; a nil WarnFunc is skipped.
type WarnFunc func(path, msg string)

// Eager implements C5: realize the full tree in memory at build time.
type Eager struct {
	SanitizeOpts sanitize.Options
	Warn         WarnFunc
	Logger       *slothlog.Logger

	// MaxDepth bounds how many directory levels below the root C3 will
	// recurse into (spec.md §6 apiDepth). Negative (the default via
	// NewEager) means unlimited.
	MaxDepth int
}

// NewEager constructs an Eager builder with the given sanitizer config
// and no depth limit.
func NewEager(opts sanitize.Options) *Eager {
	return &Eager{SanitizeOpts: opts, Logger: slothlog.Noop(), MaxDepth: -1}
}

// Build walks rootDir depth-first and returns the root apinode.Node
// (spec.md §4.5).
func (b *Eager) Build(ctx context.Context, rootDir string) (*apinode.Node, error) {
	res, err := b.buildDir(ctx, rootDir, "", true, 0)
	if err != nil {
		return nil, err
	}
	return res.node, nil
}

type dirBuildResult struct {
	node       *apinode.Node
	hasModules bool
}

func (b *Eager) fileKey(name string) string {
	return sanitize.Sanitize(name, b.SanitizeOpts)
}

func (b *Eager) buildDir(ctx context.Context, dirPath, categoryKey string, isRoot bool, depth int) (*dirBuildResult, error) {
	desc, err := modscan.ScanDir(dirPath, categoryKey, b.fileKey)
	if err != nil {
		return nil, err
	}

	atDepthLimit := b.MaxDepth >= 0 && depth >= b.MaxDepth
	if atDepthLimit {
		desc.SubDirs = nil
	}

	// A single-file directory destined to be lifted skips the wrapper
	// namespace entirely: the directory becomes the module (spec.md
	// §4.4 rule 4). No subdirectories can coexist with StrategySingleFile.
	// When the lone module is also self-referential (rule 1), the two
	// rules compose: the flattened value itself is anchored directly at
	// categoryKey instead of nesting under a child key one level deeper
	// (spec.md §8 Concrete Scenario 1 — math/math.go collapses to
	// api.math.Add, not api.math.Math.Add).
	if desc.Strategy == modscan.StrategySingleFile && desc.FlattenSingle {
		d := decision.Decide(desc.Modules[0], desc, isRoot)
		switch d.Action {
		case decision.ActionLiftModuleContents:
			node, err := b.buildModuleNode(ctx, desc.Modules[0], categoryKey)
			if err != nil {
				return nil, err
			}
			return &dirBuildResult{node: node, hasModules: true}, nil
		case decision.ActionFlattenValue:
			node, err := b.buildFlattenedModuleNode(ctx, desc.Modules[0], categoryKey)
			if err != nil {
				return nil, err
			}
			return &dirBuildResult{node: node, hasModules: true}, nil
		}
	}

	path := categoryKey

	subResults := make([]*dirBuildResult, len(desc.SubDirs))
	subKeys := make([]string, len(desc.SubDirs))
	g, gctx := errgroup.WithContext(ctx)
	for i, sub := range desc.SubDirs {
		i, sub := i, sub
		subKeys[i] = b.fileKey(filepath.Base(sub))
		g.Go(func() error {
			res, err := b.buildDir(gctx, sub, subKeys[i], false, depth+1)
			if err != nil {
				return err
			}
			subResults[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	props := apinode.NewEmptyNamespace()
	for i, key := range subKeys {
		props.Set(key, subResults[i].node)
	}

	var rootFn reflect.Value
	isRootCallable := false

	for _, m := range desc.Modules {
		d := decision.Decide(m, desc, isRoot)
		switch d.Action {
		case decision.ActionFlattenValue:
			if err := b.placeFlattenedValue(ctx, props, m, subResults, subKeys); err != nil {
				return nil, err
			}

		case decision.ActionLiftNamedExports:
			if err := b.placeLiftedNamedExports(ctx, props, m, subResults, subKeys); err != nil {
				return nil, err
			}

		case decision.ActionRootContributor:
			def, named, err := m.Load(ctx)
			if err != nil {
				return nil, err
			}
			rootFn = def
			isRootCallable = true
			for name, v := range named {
				key := sanitize.Sanitize(name, b.SanitizeOpts)
				b.place(props, key, namedExportNode(joinPath(path, key), v), subResults, subKeys)
			}

		default: // ActionPreserveAsNamespace (multi-default-with-default and traditional both land here)
			node, err := b.buildModuleNode(ctx, m, m.FileKey)
			if err != nil {
				return nil, err
			}
			b.place(props, m.FileKey, node, subResults, subKeys)
		}
	}

	if isRoot && isRootCallable {
		return &dirBuildResult{node: apinode.NewCallable(path, rootFn, props), hasModules: len(desc.Modules) > 0}, nil
	}
	return &dirBuildResult{node: apinode.NewNamespace(path, props), hasModules: len(desc.Modules) > 0}, nil
}

func (b *Eager) placeFlattenedValue(ctx context.Context, props *apinode.Namespace, m *modscan.ModuleDescriptor, subResults []*dirBuildResult, subKeys []string) error {
	_, named, err := m.Load(ctx)
	if err != nil {
		return err
	}
	var exportName string
	var v reflect.Value
	for name, val := range named {
		exportName, v = name, val
	}
	key := decision.PreferredKey(exportName, m.FileKey, b.SanitizeOpts)
	kind, fn, fprops, leaf := flattenedFields(key, v)
	b.place(props, key, nodeFromFields(key, kind, fn, fprops, leaf), subResults, subKeys)
	return nil
}

func (b *Eager) placeLiftedNamedExports(ctx context.Context, props *apinode.Namespace, m *modscan.ModuleDescriptor, subResults []*dirBuildResult, subKeys []string) error {
	_, named, err := m.Load(ctx)
	if err != nil {
		return err
	}
	for _, name := range m.NamedExports {
		key := sanitize.Sanitize(name, b.SanitizeOpts)
		b.place(props, key, namedExportNode(key, named[name]), subResults, subKeys)
	}
	return nil
}

// place inserts node at key, resolving a module/subdirectory collision
// per spec.md §4.5: the module export wins unless the conflicting
// subdirectory has non-empty modules, in which case the directory wins
// and the export is dropped with a non-fatal warning.
func (b *Eager) place(props *apinode.Namespace, key string, node *apinode.Node, subResults []*dirBuildResult, subKeys []string) {
	for i, sk := range subKeys {
		if sk != key {
			continue
		}
		if subResults[i].hasModules {
			b.warn(key, fmt.Sprintf("module export %q dropped: shadowed by non-empty subdirectory", key))
			return
		}
		break
	}
	props.Set(key, node)
}

func (b *Eager) warn(path, msg string) {
	if b.Warn != nil {
		b.Warn(path, msg)
	}
	if b.Logger != nil {
		b.Logger.Warnw(msg, "path", path)
	}
}

// buildFlattenedModuleNode loads a self-referential module's single
// named export and builds its flattened shape (flattenedFields) rooted
// directly at path, for the composed single-file-directory case where
// the directory itself becomes that flattened value.
func (b *Eager) buildFlattenedModuleNode(ctx context.Context, m *modscan.ModuleDescriptor, path string) (*apinode.Node, error) {
	_, named, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}
	var v reflect.Value
	for _, val := range named {
		v = val
	}
	kind, fn, props, leaf := flattenedFields(path, v)
	return nodeFromFields(path, kind, fn, props, leaf), nil
}

// buildModuleNode loads a module and constructs its Node according to
// its export shape, via the kind/fn/props/leaf tuple shared with the
// lazy builder (nodefields.go).
func (b *Eager) buildModuleNode(ctx context.Context, m *modscan.ModuleDescriptor, path string) (*apinode.Node, error) {
	def, named, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}
	kind, fn, props, leaf := moduleNodeFields(def, named, m, path, b.SanitizeOpts)
	return nodeFromFields(path, kind, fn, props, leaf), nil
}

// nodeFromFields wraps an already-resolved {kind, fn, props, leaf} tuple
// into a ready (eagerly materialized) Node.
func nodeFromFields(path string, kind apinode.Kind, fn reflect.Value, props *apinode.Namespace, leaf interface{}) *apinode.Node {
	switch kind {
	case apinode.KindCallable:
		return apinode.NewCallable(path, fn, props)
	case apinode.KindLeaf:
		return apinode.NewLeaf(path, leaf)
	default:
		return apinode.NewNamespace(path, props)
	}
}
