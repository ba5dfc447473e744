package apinode

import "fmt"

// Merge grafts subtree into root at the dot-joined path, creating
// intermediate namespace nodes as needed (spec.md §4.9 addApi: "merges
// it into the existing tree ... creating intermediate namespaces as
// needed"). If a node already exists at the final path segment, its
// contents are rebound in place (Node.Rebind) rather than the parent's
// reference being swapped to a new pointer, satisfying I3/I4 for the
// mutation lifecycle's mutateExisting semantics (reloadApi/reload:
// "prior deep references remain valid").
func Merge(root *Node, path string, subtree *Node) error {
	segs := splitPath(path)
	if len(segs) == 0 {
		return fmt.Errorf("slothlet: apinode: empty merge path")
	}

	cur := root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur.Get(seg)
		if !ok {
			next = NewNamespace(joinMergePath(cur.Path, seg), NewEmptyNamespace())
			if err := cur.SetChild(seg, next); err != nil {
				return err
			}
		}
		cur = next
	}

	last := segs[len(segs)-1]
	if existing, ok := cur.Get(last); ok {
		kind, fn, props, leaf, err := subtree.Contents()
		if err != nil {
			return err
		}
		existing.Rebind(kind, fn, props, leaf)
		return nil
	}
	return cur.SetChild(last, subtree)
}

// Unmerge removes the node at path from root, if present.
func Unmerge(root *Node, path string) error {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil
	}
	parent, err := root.Resolve(joinSegments(segs[:len(segs)-1]))
	if err != nil {
		return nil // already absent; removeApi tolerates path-not-found
	}
	return parent.RemoveChild(segs[len(segs)-1])
}

func joinMergePath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func joinSegments(segs []string) string {
	out := ""
	for i, s := range segs {
		if i > 0 {
			out += "."
		}
		out += s
	}
	return out
}
