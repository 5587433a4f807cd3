package filedb

import (
	"math"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// Index maps a numeric key to the row addresses stored under it. Keys may
// repeat.
type Index interface {
	Put(key, row uint64) (int, error)
	Get(key uint64) ([]uint64, error)
	// Clear drops every entry and the files behind them. The index must be
	// reopened afterwards.
	Clear() error
	Close() error
}

var (
	_ Index = (*treeIndex)(nil)
	_ Index = (*lsmIndex)(nil)
)

type treeIndex struct {
	tree *Tree
}

func openTreeIndex(path string, opt *TreeOption) (*treeIndex, error) {
	t, err := OpenTree(path, opt)
	if err != nil {
		return nil, err
	}
	return &treeIndex{tree: t}, nil
}

func (i *treeIndex) Put(key, row uint64) (int, error) {
	return i.tree.Put(key, row)
}

func (i *treeIndex) Get(key uint64) ([]uint64, error) {
	navs, _, err := i.tree.Get(key)
	if err != nil {
		return nil, err
	}
	rows := make([]uint64, len(navs))
	for j, nav := range navs {
		rows[j] = nav.Value()
	}
	return rows, nil
}

func (i *treeIndex) Clear() error {
	return i.tree.Clear()
}

func (i *treeIndex) Close() error {
	return i.tree.Close()
}

// dbIndex binds an Index to the column it covers.
type dbIndex struct {
	desc     *IndexDesc
	column   Column
	path     string
	keyWidth int
	Index
}

func openDBIndex(dir, db string, desc *IndexDesc, col Column, opt TreeOption) (*dbIndex, error) {
	idx := &dbIndex{
		desc:   desc,
		column: col,
		path:   filepath.Join(dir, indexFileName(db, *desc)),
	}
	if err := idx.open(opt); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *dbIndex) open(opt TreeOption) (err error) {
	switch idx.desc.Type {
	case IndexTypeLSM:
		idx.keyWidth = maxDigits
		idx.Index, err = openLSMIndex(idx.path)
	default:
		var ti *treeIndex
		ti, err = openTreeIndex(idx.path, &opt)
		if err == nil {
			idx.keyWidth = ti.tree.meta.KeySize
			idx.Index = ti
		}
	}
	return
}

// reset clears the index and opens it again empty.
func (idx *dbIndex) reset(opt TreeOption) error {
	if err := idx.Clear(); err != nil {
		return err
	}
	if err := idx.Close(); err != nil {
		return err
	}
	return idx.open(opt)
}

// keyOf turns a column value into an index key. Int values are used as is.
// String values are hashed and folded into the key width, so a match only
// names a candidate row.
func (idx *dbIndex) keyOf(v string) (uint64, error) {
	if idx.column.Type == ColumnTypeInt {
		k, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(ErrMalformedRow, "column %q: %q is not an integer", idx.column.Name, v)
		}
		return k, nil
	}
	h := xxhash.Sum64String(v)
	if idx.keyWidth < maxDigits {
		h %= uint64(math.Pow10(idx.keyWidth))
	}
	return h, nil
}
