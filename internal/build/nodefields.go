package build

import (
	"reflect"

	"slothlet/internal/apinode"
	"slothlet/internal/modscan"
	"slothlet/internal/sanitize"
)

// moduleNodeFields computes the {kind, fn, props, leaf} a loaded module
// resolves to (spec.md §4.2's shouldWrapAsCallable / default-object merge
// rules), shared between the eager builder (which wraps the result into a
// Node immediately) and the lazy builder (which wraps it inside a Node's
// Materializer). Go has no dynamic property bag to merge an arbitrary
// default object's own fields with named siblings, so a DefaultObject
// with named exports is approximated as a namespace exposing the named
// exports plus the default under the reserved "Default" key — documented
// in DESIGN.md as a deliberate simplification of the JS merge semantics.
func moduleNodeFields(def reflect.Value, named map[string]reflect.Value, m *modscan.ModuleDescriptor, path string, opts sanitize.Options) (apinode.Kind, reflect.Value, *apinode.Namespace, interface{}) {
	props := apinode.NewEmptyNamespace()
	for _, name := range m.NamedExports {
		key := sanitize.Sanitize(name, opts)
		props.Set(key, namedExportNode(joinPath(path, key), named[name]))
	}

	switch {
	case m.ShouldWrapAsCallable:
		return apinode.KindCallable, def, props, nil

	case m.DefaultKind == modscan.DefaultObject:
		if props.Len() == 0 {
			return apinode.KindLeaf, reflect.Value{}, nil, def.Interface()
		}
		if _, exists := props.Get("Default"); !exists {
			props.Set("Default", apinode.NewLeaf(joinPath(path, "Default"), def.Interface()))
		}
		return apinode.KindNamespace, reflect.Value{}, props, nil

	case m.DefaultKind == modscan.DefaultFunction:
		return apinode.KindCallable, def, nil, nil

	default:
		return apinode.KindNamespace, reflect.Value{}, props, nil
	}
}

// joinPath dot-joins a parent path and a key, without a leading dot when
// parent is the (empty) root path.
func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// namedExportNode wraps one named export's reflect.Value as a leaf or
// callable node depending on its kind.
func namedExportNode(path string, v reflect.Value) *apinode.Node {
	if v.IsValid() && v.Kind() == reflect.Func {
		return apinode.NewCallable(path, v, nil)
	}
	var leaf interface{}
	if v.IsValid() {
		leaf = v.Interface()
	}
	return apinode.NewLeaf(path, leaf)
}

// flattenedFields computes the {kind, fn, props, leaf} a self-referential
// module's single matching export resolves to (spec.md §4.4 rule 1/3,
// ActionFlattenValue). A function value flattens to a callable; a struct
// value exposing exported methods flattens to a namespace of those
// methods (the Go analogue of a JS object whose own properties are its
// functions, e.g. `export const math = { add, multiply }`); anything
// else flattens to a pass-through leaf.
func flattenedFields(path string, v reflect.Value) (apinode.Kind, reflect.Value, *apinode.Namespace, interface{}) {
	if !v.IsValid() {
		return apinode.KindLeaf, reflect.Value{}, nil, nil
	}
	if v.Kind() == reflect.Func {
		return apinode.KindCallable, v, nil, nil
	}
	if n := v.Type().NumMethod(); n > 0 {
		props := apinode.NewEmptyNamespace()
		for i := 0; i < n; i++ {
			m := v.Type().Method(i)
			props.Set(m.Name, apinode.NewCallable(joinPath(path, m.Name), v.Method(i), nil))
		}
		return apinode.KindNamespace, reflect.Value{}, props, nil
	}
	return apinode.KindLeaf, reflect.Value{}, nil, v.Interface()
}
