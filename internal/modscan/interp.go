// interp.go adapts the teacher's yaegi-based dynamic code executor
// (internal/autopoiesis/yaegi_executor.go) into slothlet's module
// loading mechanism: where the teacher ran short-lived, sandboxed tool
// snippets through github.com/traefik/yaegi to dodge `go build`
// compilation hangs, slothlet runs each source file found by the
// directory analyzer through its own yaegi interpreter to stand in for
// the JS runtime's dynamic import() (spec.md §0 re-grounding table).
package modscan

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// allowedPackages is the stdlib surface module source may import,
// carried over from the teacher's YaegiExecutor.allowedPackages
// allow-list (spec.md §1 Non-goals: "no sandboxing ... beyond what the
// host runtime provides" — this allow-list IS that host-runtime-level
// boundary, not an additional sandbox this spec invents).
var allowedPackages = map[string]bool{
	"strings":         true,
	"strconv":         true,
	"fmt":             true,
	"math":            true,
	"regexp":          true,
	"encoding/json":   true,
	"encoding/base64": true,
	"time":            true,
	"sort":            true,
	"bytes":           true,
	"path":            true,
	"path/filepath":   true,
	"context":         true,
	"errors":          true,
}

// interpreterTimeout bounds how long a single module's top-level
// evaluation may run, mirroring the teacher's context-timeout pattern
// around runToolFunc in ExecuteToolCode.
const interpreterTimeout = 5 * time.Second

// Interpreted holds the result of running one module file's source
// through yaegi: its package name and a lookup of every exported
// package-level identifier's reflect.Value.
type Interpreted struct {
	PackageName string
	Symbols     map[string]reflect.Value
}

// interpret evaluates source (the full contents of one module file) in
// a fresh, isolated yaegi interpreter (one per file, the Go analogue of
// one JS module realm per ES module) and resolves every name in
// exported into a reflect.Value.
func interpret(ctx context.Context, source string, packageName string, exported []string) (*Interpreted, error) {
	if err := validateImports(source); err != nil {
		return nil, fmt.Errorf("slothlet: %w", err)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("slothlet: load yaegi stdlib: %w", err)
	}

	evalCtx, cancel := context.WithTimeout(ctx, interpreterTimeout)
	defer cancel()

	type evalResult struct {
		err error
	}
	done := make(chan evalResult, 1)
	go func() {
		_, err := i.Eval(source)
		done <- evalResult{err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("slothlet: module evaluation failed: %w", r.err)
		}
	case <-evalCtx.Done():
		return nil, fmt.Errorf("slothlet: module evaluation timed out: %w", evalCtx.Err())
	}

	symbols := make(map[string]reflect.Value, len(exported))
	for _, name := range exported {
		v, err := i.Eval(packageName + "." + name)
		if err != nil {
			return nil, fmt.Errorf("slothlet: export %q not found: %w", name, err)
		}
		symbols[name] = v
	}

	return &Interpreted{PackageName: packageName, Symbols: symbols}, nil
}

// validateImports rejects any import outside allowedPackages, the same
// defense-in-depth pass as the teacher's YaegiExecutor.validateImports,
// generalized to walk a real import block rather than line-scanning
// (our modules are always full, parseable Go files).
func validateImports(source string) error {
	fset, decls, err := parseImports(source)
	_ = fset
	if err != nil {
		return err
	}
	var forbidden []string
	for _, pkg := range decls {
		if !allowedPackages[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports detected: %v", forbidden)
	}
	return nil
}
