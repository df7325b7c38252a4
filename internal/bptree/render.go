package bptree

import (
	"fmt"
	"io"
	"strings"
)

// DisplayMode selects one of the three debug traversal renderings
// (component G), following the three-mode dispatch of the source
// implementation's PrintNode (BTREE_DEPTH, BTREE_DEPTH_DOT,
// BTREE_SORTED_KEYVAL).
type DisplayMode int

const (
	DisplayDepth DisplayMode = iota
	DisplayDepthDot
	DisplaySortedKeyVal
)

// Display writes a debug traversal of the tree to w. It never mutates
// the tree, and tolerates any reachable node kind by emitting a
// clearly marked "unknown node" line rather than aborting.
func (idx *Index) Display(w io.Writer, mode DisplayMode) error {
	switch mode {
	case DisplaySortedKeyVal:
		return idx.renderSorted(w, idx.alloc.RootBlock())
	case DisplayDepthDot:
		fmt.Fprintln(w, "digraph {")
		if err := idx.renderDepth(w, idx.alloc.RootBlock(), 0, true); err != nil {
			return err
		}
		fmt.Fprintln(w, "}")
		return nil
	default:
		return idx.renderDepth(w, idx.alloc.RootBlock(), 0, false)
	}
}

func (idx *Index) renderDepth(w io.Writer, nodeIdx int64, depth int, dot bool) error {
	node, err := idx.alloc.readNode(nodeIdx)
	if err != nil {
		return err
	}

	switch node.Kind {
	case KindInterior, KindRoot:
		keys, ptrs := node.interiorEntries()
		var label strings.Builder
		fmt.Fprintf(&label, "%d: Interior: ", nodeIdx)
		for i, p := range ptrs {
			fmt.Fprintf(&label, "*%d ", p)
			if i < len(keys) {
				fmt.Fprintf(&label, "%s ", formatBytes(keys[i]))
			}
		}
		if dot {
			fmt.Fprintf(w, "  %d [label=%q];\n", nodeIdx, label.String())
			for _, p := range ptrs {
				fmt.Fprintf(w, "  %d -> %d;\n", nodeIdx, p)
			}
		} else {
			fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), label.String())
		}
		for _, p := range ptrs {
			if err := idx.renderDepth(w, p, depth+1, dot); err != nil {
				return err
			}
		}

	case KindLeaf:
		keys, vals := node.leafEntries()
		var label strings.Builder
		fmt.Fprintf(&label, "%d: Leaf: ", nodeIdx)
		for i := range keys {
			fmt.Fprintf(&label, "%s %s ", formatBytes(keys[i]), formatBytes(vals[i]))
		}
		if dot {
			fmt.Fprintf(w, "  %d [label=%q];\n", nodeIdx, label.String())
		} else {
			fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), label.String())
		}

	default:
		line := fmt.Sprintf("%d: unknown node (kind=%s)", nodeIdx, node.Kind)
		if dot {
			fmt.Fprintf(w, "  %d [label=%q];\n", nodeIdx, line)
		} else {
			fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), line)
		}
	}

	return nil
}

// renderSorted performs the leaf-only in-order projection: since no
// sibling chain is consulted for traversal (the link pointer at leaf
// slot 0 is reserved but unread, §9), this walks the tree itself.
func (idx *Index) renderSorted(w io.Writer, nodeIdx int64) error {
	node, err := idx.alloc.readNode(nodeIdx)
	if err != nil {
		return err
	}

	switch node.Kind {
	case KindInterior, KindRoot:
		_, ptrs := node.interiorEntries()
		for _, p := range ptrs {
			if err := idx.renderSorted(w, p); err != nil {
				return err
			}
		}
	case KindLeaf:
		keys, vals := node.leafEntries()
		for i := range keys {
			fmt.Fprintf(w, "(%s,%s)\n", formatBytes(keys[i]), formatBytes(vals[i]))
		}
	default:
		fmt.Fprintf(w, "unknown node (kind=%s)\n", node.Kind)
	}

	return nil
}

// formatBytes renders a fixed-width key/value for display, trimming
// trailing NUL padding (scenarios in SPEC_FULL.md §8 pad ASCII
// keys/values with NUL to the fixed width).
func formatBytes(b []byte) string {
	trimmed := strings.TrimRight(string(b), "\x00")
	return trimmed
}
