// Package modscan implements C2 (module analyzer) and C3 (directory
// analyzer) from spec.md §4.2/§4.3. Export-shape classification is a
// static go/parser pass, grounded on the AST-driven export analysis in
// the pack's jscan module_analyzer.go; actually running a module's code
// to obtain callable values is the teacher's yaegi executor (interp.go).
package modscan

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"reflect"
	"sort"
	"strings"
)

// DefaultKind mirrors spec.md §3's ModuleDescriptor.defaultKind.
type DefaultKind int

const (
	DefaultNone DefaultKind = iota
	DefaultFunction
	DefaultObject
)

// defaultExportName is the Go analogue of `export default`: a
// package-level identifier named exactly this is the module's default
// export (SPEC_FULL.md §0).
const defaultExportName = "Default"

// ModuleDescriptor is the output of C2 (spec.md §3).
type ModuleDescriptor struct {
	FilePath            string
	FileKey             string
	PackageName         string
	DefaultKind         DefaultKind
	NamedExports        []string // source-cased identifiers, sorted lexicographically
	LegacyAggregate     bool     // isCommonJs analogue (SPEC_FULL.md §1 C2)
	SelfReferential     bool
	ShouldWrapAsCallable bool

	source string
}

// Load runs the module's source through yaegi (interp.go) and returns
// the default export's reflect.Value (zero Value if DefaultKind is
// DefaultNone) plus every named export's reflect.Value, keyed by their
// source-cased identifier. Load may be called multiple times; callers
// (the eager/lazy builders) are responsible for calling it at most once
// per materialization per spec.md §4.6's "no double load" guarantee.
func (m *ModuleDescriptor) Load(ctx context.Context) (def reflect.Value, named map[string]reflect.Value, err error) {
	wanted := make([]string, 0, len(m.NamedExports)+1)
	if m.DefaultKind != DefaultNone {
		wanted = append(wanted, defaultExportName)
	}
	wanted = append(wanted, m.NamedExports...)

	interpreted, err := interpret(ctx, m.source, m.PackageName, wanted)
	if err != nil {
		return reflect.Value{}, nil, err
	}

	named = make(map[string]reflect.Value, len(m.NamedExports))
	for _, n := range m.NamedExports {
		named[n] = interpreted.Symbols[n]
	}
	if m.DefaultKind != DefaultNone {
		def = interpreted.Symbols[defaultExportName]
	}
	return def, named, nil
}

// Analyze reads filePath and statically classifies its export shape
// (spec.md §4.2) without executing any code. fileKey is the already
// sanitized identifier derived from the file's name (C1's output).
func Analyze(filePath, fileKey string) (*ModuleDescriptor, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("slothlet: LoadError: read %s: %w", filePath, err)
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filePath, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("slothlet: LoadError: parse %s: %w", filePath, err)
	}

	m := &ModuleDescriptor{
		FilePath:    filePath,
		FileKey:     fileKey,
		PackageName: file.Name.Name,
		source:      string(src),
	}

	var aggregateCandidates int
	var topLevelValueDecls int

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv != nil || !d.Name.IsExported() {
				continue
			}
			if d.Name.Name == defaultExportName {
				m.DefaultKind = DefaultFunction
				continue
			}
			m.NamedExports = append(m.NamedExports, d.Name.Name)

		case *ast.GenDecl:
			if d.Tok != token.VAR && d.Tok != token.CONST {
				continue
			}
			for _, spec := range d.Specs {
				vs, ok := spec.(*ast.ValueSpec)
				if !ok {
					continue
				}
				topLevelValueDecls++
				for i, name := range vs.Names {
					if !name.IsExported() {
						continue
					}
					if name.Name == defaultExportName {
						m.DefaultKind = DefaultObject
						continue
					}
					m.NamedExports = append(m.NamedExports, name.Name)
					if i < len(vs.Values) && isCompositeLiteral(vs.Values[i]) {
						aggregateCandidates++
					}
				}
			}
		}
	}

	sort.Strings(m.NamedExports) // deterministic order; source declaration order is not load-bearing for exports

	m.LegacyAggregate = topLevelValueDecls == 1 && aggregateCandidates == 1 && m.DefaultKind == DefaultNone && len(m.NamedExports) == 1

	// Go's exported identifiers are always capitalized, so the source-
	// cased named export can never be byte-equal to a sanitized,
	// lower-camelCase fileKey; compare case-insensitively instead.
	m.SelfReferential = m.DefaultKind == DefaultNone && len(m.NamedExports) == 1 && strings.EqualFold(m.NamedExports[0], fileKey)

	m.ShouldWrapAsCallable = m.DefaultKind == DefaultFunction && len(m.NamedExports) > 0

	return m, nil
}

func isCompositeLiteral(expr ast.Expr) bool {
	switch e := expr.(type) {
	case *ast.CompositeLit:
		return true
	case *ast.UnaryExpr:
		_, ok := e.X.(*ast.CompositeLit)
		return ok
	default:
		return false
	}
}

// parseImports extracts the list of imported package paths from source,
// used by interp.go's validateImports.
func parseImports(source string) (*token.FileSet, []string, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", source, parser.ImportsOnly)
	if err != nil {
		return nil, nil, fmt.Errorf("slothlet: LoadError: parse imports: %w", err)
	}
	paths := make([]string, 0, len(file.Imports))
	for _, imp := range file.Imports {
		path := imp.Path.Value
		paths = append(paths, path[1:len(path)-1]) // strip quotes
	}
	return fset, paths, nil
}
