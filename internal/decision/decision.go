// Package decision implements C4: given a module descriptor and the
// directory descriptor it belongs to, decide where the module's contents
// ultimately live in the materialized API tree (spec.md §4.4).
package decision

import (
	"strings"

	"slothlet/internal/modscan"
	"slothlet/internal/sanitize"
)

// Action is the placement a Decision resolves to. Exactly one is
// effective per Decision, mirroring spec.md §3's FlatteningDecision
// shape (shouldFlatten/flattenToRoot/flattenToCategory/preserveAsNamespace
// collapsed into one tag since Go decisions are values, not bags of
// mutually exclusive flags).
type Action int

const (
	// ActionPreserveAsNamespace keeps the module as its own namespace
	// node at dir.categoryKey.fileKey.
	ActionPreserveAsNamespace Action = iota
	// ActionFlattenValue replaces the module's wrapper with its single
	// matching named export's own value, still at dir.categoryKey.fileKey.
	ActionFlattenValue
	// ActionLiftNamedExports places this module's named exports directly
	// onto the containing directory's namespace, skipping fileKey.
	ActionLiftNamedExports
	// ActionLiftModuleContents makes this module's contents become the
	// entirety of dir's own parent-level slot (the directory becomes the
	// module).
	ActionLiftModuleContents
	// ActionRootContributor makes the module's default function the API
	// root's callable; named siblings become root properties.
	ActionRootContributor
)

func (a Action) String() string {
	switch a {
	case ActionPreserveAsNamespace:
		return "preserveAsNamespace"
	case ActionFlattenValue:
		return "flattenValue"
	case ActionLiftNamedExports:
		return "liftNamedExports"
	case ActionLiftModuleContents:
		return "liftModuleContents"
	case ActionRootContributor:
		return "rootContributor"
	default:
		return "unknown"
	}
}

// Reason records which rule (spec.md §4.4, 1-6) fired.
type Reason int

const (
	ReasonSelfReferential Reason = iota
	ReasonMultiDefaultWithDefault
	ReasonMultiDefaultWithoutDefault
	ReasonFlattenSingleFileDirectory
	ReasonRootContributor
	ReasonTraditional
)

func (r Reason) String() string {
	switch r {
	case ReasonSelfReferential:
		return "self-referential"
	case ReasonMultiDefaultWithDefault:
		return "multi-default-with-default"
	case ReasonMultiDefaultWithoutDefault:
		return "multi-default-without-default"
	case ReasonFlattenSingleFileDirectory:
		return "flatten-single-file-directory"
	case ReasonRootContributor:
		return "root-contributor"
	case ReasonTraditional:
		return "traditional"
	default:
		return "unknown"
	}
}

// Decision is the output of C4, one per module within its directory.
type Decision struct {
	Action Action
	Reason Reason
}

// Decide evaluates the six ordered rules of spec.md §4.4, first match
// wins. isRoot tells Decide whether dir is the API's top-level directory
// (rule 5, root contributor, only ever applies there).
//
// Rule 4 ("single-file directory: the directory becomes the module") and
// rule 1 ("self-referential: flatten to the single matching export's own
// value") answer different questions — rule 1 decides WHAT replaces the
// module's wrapper, rule 3 decides WHERE that replacement is anchored —
// and a self-referential module in a single-file directory satisfies
// both at once (spec.md §8 Concrete Scenario 1: math/math.go's Math
// value is both self-referential and the directory's only file). Decide
// itself only reports the WHAT (ActionFlattenValue still wins, since a
// module can be self-referential without also being its directory's sole
// file); the builders (eager.go/lazy.go) consult dir.FlattenSingle
// alongside the returned Action to resolve the WHERE, anchoring a flatten
// result at the directory's own categoryKey instead of nesting it one
// level deeper when the two rules coincide.
func Decide(m *modscan.ModuleDescriptor, dir *modscan.DirectoryDescriptor, isRoot bool) Decision {
	switch {
	case m.SelfReferential:
		return Decision{Action: ActionFlattenValue, Reason: ReasonSelfReferential}

	case dir.MultiDefault:
		if m.DefaultKind != modscan.DefaultNone {
			return Decision{Action: ActionPreserveAsNamespace, Reason: ReasonMultiDefaultWithDefault}
		}
		return Decision{Action: ActionLiftNamedExports, Reason: ReasonMultiDefaultWithoutDefault}

	case dir.Strategy == modscan.StrategySingleFile && dir.FlattenSingle:
		return Decision{Action: ActionLiftModuleContents, Reason: ReasonFlattenSingleFileDirectory}

	case isRoot && m.DefaultKind == modscan.DefaultFunction:
		return Decision{Action: ActionRootContributor, Reason: ReasonRootContributor}

	default:
		return Decision{Action: ActionPreserveAsNamespace, Reason: ReasonTraditional}
	}
}

// PreferredKey implements the function-name-preference rule (spec.md
// §4.4): when a named export would be placed under a sanitized fileKey,
// prefer the export's own sanitized name over fileKey when the two
// differ only in acronym casing and the export's name preserves more
// uppercase runs (e.g. "AutoIP" over "autoIp").
func PreferredKey(exportName, fileKey string, opts sanitize.Options) string {
	sanitizedExport := sanitize.Sanitize(exportName, opts)
	sanitizedFileKey := sanitize.Sanitize(fileKey, opts)

	if sanitizedExport == sanitizedFileKey {
		return sanitizedFileKey
	}
	if !strings.EqualFold(sanitizedExport, sanitizedFileKey) {
		return sanitizedFileKey
	}
	if sanitize.UppercaseRunCount(sanitizedExport) > sanitize.UppercaseRunCount(sanitizedFileKey) {
		return sanitizedExport
	}
	return sanitizedFileKey
}
