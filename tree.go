package filedb

import (
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/nyan233/filedb/internal/sys"
	"github.com/pkg/errors"
)

// Tree is a B-tree index kept in a single file. Nodes are fixed size slots
// addressed by their byte offset; offset 0 holds the header. A Tree is not
// safe for concurrent use.
type Tree struct {
	path      string
	file      *os.File
	meta      treeMeta
	insertPos uint64
	logger    *slog.Logger
	stat      iStat
}

// OpenTree opens the index file at path, creating it with the layout from opt
// (nil means DefaultTreeOption) when it does not exist or is empty.
func OpenTree(path string, opt *TreeOption) (*Tree, error) {
	var o TreeOption
	if opt != nil {
		o = *opt
	}
	o = o.withDefaults()
	if err := o.validate(); err != nil {
		return nil, err
	}
	file, err := sys.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open tree %s", path)
	}
	t := &Tree{
		path:   path,
		file:   file,
		logger: o.Logger,
	}
	if err = t.init(o); err != nil {
		_ = file.Close()
		return nil, err
	}
	return t, nil
}

func (t *Tree) init(opt TreeOption) error {
	size, err := t.fileSize()
	if err != nil {
		return err
	}
	want := newTreeMeta(opt)
	if size == 0 {
		t.meta = want
		if err = t.writeMeta(); err != nil {
			return err
		}
	}
	if err = t.readMeta(); err != nil {
		return err
	}
	if size > 0 && !t.meta.equalLayout(&want) {
		t.logger.Debug("tree layout taken from existing header", "path", t.path,
			"maxElemsInNode", t.meta.MaxElemsInNode, "keySize", t.meta.KeySize, "valSize", t.meta.ValSize)
	}
	t.insertPos, err = t.insertPosition()
	return err
}

func (t *Tree) fileSize() (uint64, error) {
	stat, err := t.file.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "stat tree %s", t.path)
	}
	return uint64(stat.Size()), nil
}

// insertPosition is where the next new node goes: the end of the file, but
// never before the slot of the first root.
func (t *Tree) insertPosition() (uint64, error) {
	size, err := t.fileSize()
	if err != nil {
		return 0, err
	}
	if first := uint64(metaLength + t.meta.LeafSize); size < first {
		return first, nil
	}
	return size, nil
}

func (t *Tree) writeMeta() error {
	raw, err := t.meta.marshal()
	if err != nil {
		return err
	}
	if _, err = t.file.WriteAt(raw, 0); err != nil {
		return errors.Wrapf(err, "write tree header %s", t.path)
	}
	return nil
}

func (t *Tree) readMeta() error {
	raw := make([]byte, metaLength)
	n, err := t.file.ReadAt(raw, 0)
	if err != nil && !(errors.Is(err, io.EOF) && n == metaLength) {
		if errors.Is(err, io.EOF) {
			return errors.Wrapf(ErrMalformedMeta, "%s: header is %d bytes", t.path, n)
		}
		return errors.Wrapf(err, "read tree header %s", t.path)
	}
	return t.meta.unmarshal(raw)
}

func (t *Tree) setRootLink(link uint64) error {
	t.meta.RootLink = link
	t.stat.rootChanges.Add(1)
	t.logger.Debug("tree root changed", "path", t.path, "root", link)
	return t.writeMeta()
}

func (t *Tree) readNode(link uint64) (*node, bool, error) {
	n, short, err := loadNode(t.file, &t.meta, link)
	if err != nil {
		return nil, false, err
	}
	t.stat.nodeReads.Add(1)
	if short {
		t.stat.shortReads.Add(1)
		if link != t.meta.RootLink {
			t.logger.Warn("short read of non root node", "path", t.path, "link", link)
		}
	}
	return n, short, nil
}

func (t *Tree) writeNode(n *node) (int, error) {
	written, err := n.save(t.file)
	if err != nil {
		t.logger.Error("write node fail", "path", t.path, "link", n.link, "err", err)
		return written, err
	}
	t.stat.nodeWrites.Add(1)
	t.stat.bytesWrite.Add(uint64(written))
	return written, nil
}

func (t *Tree) checkOpen() error {
	if t.file == nil {
		return errors.Wrapf(ErrClosed, "tree %s", t.path)
	}
	return nil
}

// Put inserts the pair and returns the number of bytes written to the file,
// splits included. Duplicate keys are kept.
func (t *Tree) Put(key, val uint64) (int, error) {
	if err := t.checkOpen(); err != nil {
		return 0, err
	}
	if _, err := t.meta.keyCodec().appendTo(nil, key); err != nil {
		return 0, errors.WithMessage(err, "key")
	}
	if _, err := t.meta.valCodec().appendTo(nil, val); err != nil {
		return 0, errors.WithMessage(err, "value")
	}
	n, sizes, err := t.leafToInsertIn(key)
	if err != nil {
		return 0, err
	}
	if err = t.checkGrowth(sizes); err != nil {
		return 0, err
	}
	return t.insertInto(n, element{key: key, val: val})
}

// leafToInsertIn follows child links from the root until a node has nowhere
// further to send the key. A node holding the key itself stops the descent.
// sizes holds the element count of every node on the way down.
func (t *Tree) leafToInsertIn(key uint64) (*node, []int, error) {
	var (
		link    = t.meta.RootLink
		sizes   []int
		visited = make(map[uint64]struct{})
	)
	for {
		if _, ok := visited[link]; ok {
			return nil, nil, errors.Wrapf(ErrMalformedNode, "link cycle at %d", link)
		}
		visited[link] = struct{}{}
		n, _, err := t.readNode(link)
		if err != nil {
			return nil, nil, err
		}
		sizes = append(sizes, n.size())
		navs := n.searchForKey(key)
		if len(navs) > 0 && navs[0].Link() != 0 {
			link = navs[0].Link()
			continue
		}
		return n, sizes, nil
	}
}

// checkGrowth fails when a node the insert would allocate gets an offset
// wider than the link field. Only full nodes at the bottom of the path split.
func (t *Tree) checkGrowth(sizes []int) error {
	grow := 0
	for i := len(sizes) - 1; i >= 0 && sizes[i] >= t.meta.MaxElemsInNode; i-- {
		grow++
	}
	if grow == 0 {
		return nil
	}
	if grow == len(sizes) {
		// new root
		grow++
	}
	return t.checkLinkFits(t.insertPos + uint64(grow-1)*uint64(t.meta.LeafSize))
}

// insertInto adds e to n and saves it, splitting and pushing the middle
// element upwards for as long as a node overflows.
func (t *Tree) insertInto(n *node, e element) (int, error) {
	written := 0
	for {
		n.insert(e.key, e.val, e.link)
		if n.size() <= t.meta.MaxElemsInNode {
			c, err := t.writeNode(n)
			return written + c, err
		}
		var (
			parent *node
			c      int
			err    error
		)
		e, parent, c, err = t.rebuild(n)
		written += c
		if err != nil || parent == nil {
			return written, err
		}
		n = parent
	}
}

// rebuild splits the overflowed node n. The left part stays at n's offset,
// the right part goes to the end of the file. When n has a parent it is
// returned together with the element to insert into it; otherwise a new root
// holding that element is written and parent is nil.
func (t *Tree) rebuild(n *node) (promoted element, parent *node, written int, err error) {
	var (
		leafSize         = uint64(t.meta.LeafSize)
		left, mid, right = n.split()
		rightLink        = t.insertPos
		isRoot           = n.linkParent == 0
		parentLink       = n.linkParent
	)
	if isRoot {
		parentLink = t.insertPos + leafSize
	}
	if err = t.checkLinkFits(max(rightLink, parentLink)); err != nil {
		return
	}
	// children of the middle and right elements now hang below the right node
	for _, e := range append([]element{mid}, right...) {
		if e.link == 0 {
			continue
		}
		var c int
		c, err = t.reparent(e.link, rightLink)
		written += c
		if err != nil {
			return
		}
	}

	leftNode := newNode(&t.meta, n.link, left)
	leftNode.linkLeft = n.linkLeft
	leftNode.linkParent = parentLink
	c, err := t.writeNode(leftNode)
	written += c
	if err != nil {
		return
	}

	rightNode := newNode(&t.meta, rightLink, right)
	rightNode.linkLeft = mid.link
	rightNode.linkParent = parentLink
	c, err = t.writeNode(rightNode)
	written += c
	if err != nil {
		return
	}
	t.insertPos += leafSize
	t.stat.splits.Add(1)
	t.logger.Debug("tree node split", "path", t.path, "link", n.link, "right", rightLink, "key", mid.key)

	promoted = element{key: mid.key, val: mid.val, link: rightLink}
	if !isRoot {
		parent, _, err = t.readNode(n.linkParent)
		return
	}
	root := newNode(&t.meta, t.insertPos, []element{promoted})
	root.linkLeft = n.link
	c, err = t.writeNode(root)
	written += c
	if err != nil {
		return
	}
	t.insertPos += leafSize
	err = t.setRootLink(root.link)
	return
}

func (t *Tree) reparent(child, parent uint64) (int, error) {
	n, short, err := t.readNode(child)
	if err != nil {
		return 0, err
	}
	if short {
		return 0, errors.Wrapf(ErrMalformedNode, "child %d is past end of file", child)
	}
	n.linkParent = parent
	return t.writeNode(n)
}

func (t *Tree) checkLinkFits(link uint64) error {
	if t.meta.LinkSize < maxDigits && link >= uint64(math.Pow10(t.meta.LinkSize)) {
		return errors.Wrapf(ErrFieldOverflow, "offset %d needs more than %d digits", link, t.meta.LinkSize)
	}
	return nil
}

// Get returns every element stored under key. found is false when there is
// none.
func (t *Tree) Get(key uint64) (res []Navigation, found bool, err error) {
	if err = t.checkOpen(); err != nil {
		return
	}
	res, err = t.get(key, 0)
	return res, len(res) > 0, err
}

// get searches depth first from offset (the root when 0). Equal keys can sit
// on both sides of every match, so both children of a match are searched.
// Each node is read at most once per call.
func (t *Tree) get(key, offset uint64) ([]Navigation, error) {
	if offset == 0 {
		offset = t.meta.RootLink
	}
	var (
		out     []Navigation
		s       = new(stack)
		visited = make(map[uint64]struct{})
	)
	s.push(offset)
	for s.len() > 0 {
		link, _ := s.pop()
		if _, ok := visited[link]; ok {
			continue
		}
		visited[link] = struct{}{}
		n, _, err := t.readNode(link)
		if err != nil {
			return nil, err
		}
		var next []uint64
		for _, nav := range n.searchForKey(key) {
			if nav.Key() == key {
				out = append(out, nav)
				next = append(next, nav.LinkRight(), nav.LinkLeft())
			} else if nav.Link() != 0 {
				next = append(next, nav.Link())
			}
		}
		s.pushReversed(dedupOffsets(next))
	}
	return out, nil
}

// Clear truncates the file, resets the root and removes the file from disk.
// The Tree must be reopened before it is used again.
func (t *Tree) Clear() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if err := t.file.Truncate(0); err != nil {
		return errors.Wrapf(err, "truncate tree %s", t.path)
	}
	t.insertPos = uint64(t.meta.LinkSize)
	if err := t.setRootLink(uint64(t.meta.LinkSize)); err != nil {
		return err
	}
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove tree %s", t.path)
	}
	return nil
}

func (t *Tree) Sync() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if err := sys.Fsync(t.file); err != nil {
		return errors.Wrapf(err, "sync tree %s", t.path)
	}
	return nil
}

func (t *Tree) Close() error {
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	if err != nil {
		return errors.Wrapf(err, "close tree %s", t.path)
	}
	return nil
}

func (t *Tree) Path() string {
	return t.path
}

func (t *Tree) RootLink() uint64 {
	return t.meta.RootLink
}

func (t *Tree) Stat() ExportStat {
	return t.stat.export()
}
