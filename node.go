package filedb

import (
	"io"
	"slices"
	"sort"

	"github.com/pkg/errors"
)

type element struct {
	key uint64
	val uint64
	// link is the right child: the subtree between this element and the next
	link uint64
}

// node is the in-memory copy of one fixed size slot of the index file. The
// slot offset (link) is the node identity; nodes are loaded fresh for every
// access and dropped after save.
type node struct {
	meta       *treeMeta
	link       uint64
	linkLeft   uint64
	linkParent uint64
	elements   []element
}

// newNode builds a node that exists only in memory until its first save.
func newNode(meta *treeMeta, link uint64, elems []element) *node {
	return &node{
		meta:     meta,
		link:     link,
		elements: elems,
	}
}

// loadNode reads the slot at link. A slot shorter than leaf_size (the root of
// a tree that was never written to) is returned as an empty node with
// short == true.
func loadNode(r io.ReaderAt, meta *treeMeta, link uint64) (n *node, short bool, err error) {
	n = newNode(meta, link, nil)
	raw := make([]byte, meta.LeafSize)
	read, err := r.ReadAt(raw, int64(link))
	if read < meta.LeafSize {
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, false, errors.Wrapf(err, "read node %d", link)
		}
		return n, true, nil
	}
	if err = n.unmarshal(raw); err != nil {
		return nil, false, errors.WithMessagef(err, "node %d", link)
	}
	return n, false, nil
}

func (n *node) save(w io.WriterAt) (int, error) {
	raw, err := n.marshal()
	if err != nil {
		return 0, err
	}
	written, err := w.WriteAt(raw, int64(n.link))
	if err != nil {
		return written, errors.Wrapf(err, "write node %d", n.link)
	}
	return written, nil
}

func (n *node) size() int {
	return len(n.elements)
}

func (n *node) isEmpty() bool {
	return len(n.elements) == 0
}

func (n *node) isLeaf() bool {
	if n.linkLeft != 0 {
		return false
	}
	for _, e := range n.elements {
		if e.link != 0 {
			return false
		}
	}
	return true
}

// leftOf returns the left child of element i, which is the right child of
// the element before it.
func (n *node) leftOf(i int) uint64 {
	if i == 0 {
		return n.linkLeft
	}
	return n.elements[i-1].link
}

// insert adds the element and keeps elements ordered by key. Equal keys stay
// in insertion order. Capacity is not checked here.
func (n *node) insert(key, val, link uint64) {
	n.elements = append(n.elements, element{key: key, val: val, link: link})
	slices.SortStableFunc(n.elements, func(a, b element) int {
		return compareKey(a.key, b.key)
	})
	if link != 0 {
		return
	}
	// A child-less duplicate landing after an equal key that owns a right
	// child takes that child over, otherwise the next element would lose its
	// left subtree.
	i := sort.Search(len(n.elements), func(i int) bool {
		return compareKey(n.elements[i].key, key) > 0
	}) - 1
	if i > 0 && n.elements[i-1].key == key && n.elements[i-1].link != 0 {
		n.elements[i].link, n.elements[i-1].link = n.elements[i-1].link, 0
	}
}

// searchForKey runs the local part of a lookup. It returns nil for an empty
// node, every element equal to key, or a single Navigation whose Link says
// where the lookup continues (0 when it cannot).
func (n *node) searchForKey(key uint64) []Navigation {
	if n.isEmpty() {
		return nil
	}
	var out []Navigation
	for i, e := range n.elements {
		if e.key == key {
			out = append(out, newNavigation(e.key, e.val, e.link, n.leftOf(i)))
		}
	}
	if len(out) > 0 {
		return out
	}
	last := len(n.elements) - 1
	if lastElem := n.elements[last]; compareKey(key, lastElem.key) > 0 && lastElem.link != 0 {
		nav := newNavigation(lastElem.key, lastElem.val, lastElem.link, n.leftOf(last))
		return []Navigation{nav.withLink(lastElem.link)}
	}
	if first := n.elements[0]; compareKey(key, first.key) < 0 && n.linkLeft != 0 {
		nav := newNavigation(first.key, first.val, first.link, n.linkLeft)
		return []Navigation{nav.withLink(n.linkLeft)}
	}
	pos := n.binarySearch(key)
	e := n.elements[pos]
	nav := newNavigation(e.key, e.val, e.link, n.leftOf(pos))
	if compareKey(e.key, key) < 0 {
		return []Navigation{nav.withLink(nav.LinkRight())}
	}
	return []Navigation{nav.withLink(nav.LinkLeft())}
}

// binarySearch returns the position of key or of the element where the
// search narrowed down to.
func (n *node) binarySearch(key uint64) int {
	top, bot, pos := len(n.elements)-1, 0, 0
	for top >= bot {
		pos = (top + bot) / 2
		switch c := compareKey(n.elements[pos].key, key); {
		case c < 0:
			bot = pos + 1
		case c > 0:
			top = pos - 1
		default:
			return pos
		}
	}
	return pos
}

// split partitions an overflowed node: the first max/2 elements, the element
// at max/2 that moves up, and everything after it.
func (n *node) split() (left []element, middle element, right []element) {
	half := n.meta.MaxElemsInNode / 2
	left = slices.Clone(n.elements[:half])
	middle = n.elements[half]
	right = slices.Clone(n.elements[half+1:])
	return
}
