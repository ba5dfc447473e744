package slothlet

import "slothlet/internal/apinode"

// DescribeNode is one entry in a Describe() snapshot: a diagnostic
// mirror of one apinode.Node, deep enough to inspect the tree's shape
// without handing out the live Nodes themselves.
type DescribeNode struct {
	Path     string                  `json:"path"`
	Kind     string                  `json:"kind"`
	State    string                  `json:"state"`
	Metadata map[string]interface{}  `json:"metadata,omitempty"`
	Children map[string]*DescribeNode `json:"children,omitempty"`
}

// Describe snapshots the instance's tree for diagnostics (spec.md §4.10
// "expose a describe()/introspect() style diagnostic"). The root level
// is always listed (you asked to see the tree, after all); below that,
// when showAll is false, a lazy node that hasn't materialized yet
// (through prior navigation or an earlier Describe(true)) is reported as
// a "planned" stub rather than being forced to load. When showAll is
// true, every node along the walk is materialized first so the snapshot
// is complete.
func (a *API) Describe(showAll bool) *DescribeNode {
	return describeNode(a.root, showAll, true)
}

func describeNode(n *apinode.Node, showAll, forceThisLevel bool) *DescribeNode {
	if !showAll && !forceThisLevel && n.State() == apinode.StatePlanned {
		return &DescribeNode{Path: n.Path, State: stateName(apinode.StatePlanned), Kind: n.Kind().String()}
	}

	keys, err := n.Keys() // materializes n if it was still lazy
	d := &DescribeNode{Path: n.Path, Kind: n.Kind().String(), State: stateName(n.State()), Metadata: n.Metadata}
	if err != nil || len(keys) == 0 {
		return d
	}
	d.Children = make(map[string]*DescribeNode, len(keys))
	for _, key := range keys {
		child, ok := n.Get(key)
		if !ok {
			continue
		}
		d.Children[key] = describeNode(child, showAll, false)
	}
	return d
}

func stateName(s apinode.MaterializeState) string {
	switch s {
	case apinode.StateMaterialized:
		return "materialized"
	case apinode.StatePlanned:
		return "planned"
	case apinode.StateMaterializing:
		return "materializing"
	case apinode.StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
