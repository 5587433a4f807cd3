package filedb

import (
	"github.com/pkg/errors"
)

// TreeSummary describes the shape of a tree as seen by Check.
type TreeSummary struct {
	Nodes    int
	Elements int
	Depth    int
	Root     uint64
}

type checkItem struct {
	link   uint64
	parent uint64
	depth  int
	// keys of the subtree must lie in [lo, hi]; bounds are inclusive because
	// equal keys may sit on both sides of a separator
	lo, hi       uint64
	hasLo, hasHi bool
}

// Check walks every node reachable from the root and verifies capacity, key
// order, key ranges against the separators above and the link_parent
// back-pointers. It stops at the first violation.
func (t *Tree) Check() (TreeSummary, error) {
	sum := TreeSummary{Root: t.meta.RootLink}
	if err := t.checkOpen(); err != nil {
		return sum, err
	}
	var (
		queue   = []checkItem{{link: t.meta.RootLink, depth: 1}}
		visited = make(map[uint64]struct{})
	)
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if _, ok := visited[it.link]; ok {
			return sum, errors.Wrapf(ErrMalformedNode, "node %d is linked twice", it.link)
		}
		visited[it.link] = struct{}{}
		n, short, err := t.readNode(it.link)
		if err != nil {
			return sum, err
		}
		if short && it.link != t.meta.RootLink {
			return sum, errors.Wrapf(ErrMalformedNode, "node %d is past end of file", it.link)
		}
		sum.Nodes++
		sum.Elements += n.size()
		sum.Depth = max(sum.Depth, it.depth)
		if err = t.checkNode(n, it); err != nil {
			return sum, err
		}
		children := append([]uint64{n.linkLeft}, make([]uint64, n.size())...)
		for i, e := range n.elements {
			children[i+1] = e.link
		}
		for i, child := range children {
			if child == 0 {
				continue
			}
			next := checkItem{link: child, parent: n.link, depth: it.depth + 1,
				lo: it.lo, hasLo: it.hasLo, hi: it.hi, hasHi: it.hasHi}
			if i > 0 {
				next.lo, next.hasLo = n.elements[i-1].key, true
			}
			if i < n.size() {
				next.hi, next.hasHi = n.elements[i].key, true
			}
			queue = append(queue, next)
		}
	}
	return sum, nil
}

func (t *Tree) checkNode(n *node, it checkItem) error {
	if n.size() > t.meta.MaxElemsInNode {
		return errors.Wrapf(ErrMalformedNode, "node %d holds %d elements", n.link, n.size())
	}
	if !n.isEmpty() && n.linkParent != it.parent {
		return errors.Wrapf(ErrMalformedNode, "node %d has parent %d, reached from %d", n.link, n.linkParent, it.parent)
	}
	for i, e := range n.elements {
		if i > 0 && compareKey(n.elements[i-1].key, e.key) > 0 {
			return errors.Wrapf(ErrMalformedNode, "node %d is not sorted at %d", n.link, i)
		}
		if it.hasLo && compareKey(e.key, it.lo) < 0 || it.hasHi && compareKey(e.key, it.hi) > 0 {
			return errors.Wrapf(ErrMalformedNode, "node %d key %d is out of range", n.link, e.key)
		}
	}
	return nil
}
