package filedb

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func testMeta(maxElems int) *treeMeta {
	opt := DefaultTreeOption()
	opt.MaxElemsInNode = maxElems
	m := newTreeMeta(opt)
	return &m
}

func nodeKeys(n *node) []uint64 {
	keys := make([]uint64, n.size())
	for i, e := range n.elements {
		keys[i] = e.key
	}
	return keys
}

func TestNodeInsert(t *testing.T) {
	t.Run("Sorted", func(t *testing.T) {
		n := newNode(testMeta(8), metaLength, nil)
		for _, k := range []uint64{5, 3, 8, 1, 9} {
			n.insert(k, k*10, 0)
		}
		require.Equal(t, []uint64{1, 3, 5, 8, 9}, nodeKeys(n))
		require.True(t, n.isLeaf())
	})
	t.Run("DuplicatesKeepOrder", func(t *testing.T) {
		n := newNode(testMeta(8), metaLength, nil)
		n.insert(4, 1, 0)
		n.insert(2, 2, 0)
		n.insert(4, 3, 0)
		n.insert(4, 4, 0)
		require.Equal(t, []element{{2, 2, 0}, {4, 1, 0}, {4, 3, 0}, {4, 4, 0}}, n.elements)
	})
	t.Run("DuplicateTakesRightChild", func(t *testing.T) {
		n := newNode(testMeta(8), metaLength, []element{{key: 4, val: 1, link: 500}, {key: 9, val: 2, link: 600}})
		n.linkLeft = 400
		n.insert(4, 3, 0)
		require.Equal(t, []element{{4, 1, 0}, {4, 3, 500}, {9, 2, 600}}, n.elements)
		n.insert(4, 5, 0)
		require.Equal(t, []element{{4, 1, 0}, {4, 3, 0}, {4, 5, 500}, {9, 2, 600}}, n.elements)
		require.Equal(t, uint64(500), n.leftOf(3))
	})
	t.Run("PromotedKeepsLink", func(t *testing.T) {
		n := newNode(testMeta(8), metaLength, []element{{key: 4, val: 1, link: 500}})
		n.insert(4, 2, 700)
		require.Equal(t, []element{{4, 1, 500}, {4, 2, 700}}, n.elements)
	})
}

func TestNodeSearchForKey(t *testing.T) {
	n := newNode(testMeta(8), metaLength, []element{
		{key: 10, val: 1, link: 200},
		{key: 20, val: 2, link: 300},
		{key: 20, val: 3, link: 400},
		{key: 30, val: 4, link: 500},
	})
	n.linkLeft = 100

	navs := n.searchForKey(20)
	require.Len(t, navs, 2)
	require.Equal(t, uint64(2), navs[0].Value())
	require.Equal(t, uint64(300), navs[0].LinkRight())
	require.Equal(t, uint64(200), navs[0].LinkLeft())
	require.Equal(t, uint64(400), navs[1].LinkRight())
	require.Equal(t, uint64(300), navs[1].LinkLeft())
	require.Zero(t, navs[0].Link())

	cases := []struct {
		key  uint64
		link uint64
	}{
		{key: 5, link: 100},
		{key: 15, link: 200},
		{key: 25, link: 400},
		{key: 35, link: 500},
	}
	for _, c := range cases {
		navs = n.searchForKey(c.key)
		require.Len(t, navs, 1)
		require.Equal(t, c.link, navs[0].Link(), "key=%d", c.key)
		require.NotEqual(t, c.key, navs[0].Key())
	}

	require.Nil(t, newNode(testMeta(8), metaLength, nil).searchForKey(1))

	leaf := newNode(testMeta(8), metaLength, []element{{key: 10, val: 1}, {key: 30, val: 2}})
	for _, k := range []uint64{5, 20, 40} {
		navs = leaf.searchForKey(k)
		require.Len(t, navs, 1)
		require.Zero(t, navs[0].Link())
	}
}

func TestNodeBinarySearch(t *testing.T) {
	n := newNode(testMeta(8), metaLength, nil)
	for _, k := range []uint64{2, 4, 6, 8, 10} {
		n.insert(k, 0, 0)
	}
	for i, k := range []uint64{2, 4, 6, 8, 10} {
		require.Equal(t, i, n.binarySearch(k))
	}
	for _, k := range []uint64{1, 3, 5, 7, 9, 11} {
		e := n.elements[n.binarySearch(k)]
		require.LessOrEqual(t, max(e.key, k)-min(e.key, k), uint64(1))
	}
}

func TestNodeSplit(t *testing.T) {
	for _, c := range []struct {
		max         int
		left, right int
	}{
		{max: 2, left: 1, right: 1},
		{max: 3, left: 1, right: 2},
		{max: 4, left: 2, right: 2},
		{max: 51, left: 25, right: 26},
	} {
		n := newNode(testMeta(c.max), metaLength, nil)
		for k := uint64(0); k <= uint64(c.max); k++ {
			n.insert(k, k, 0)
		}
		left, mid, right := n.split()
		require.Len(t, left, c.left)
		require.Len(t, right, c.right)
		require.Equal(t, uint64(c.max/2), mid.key)
		left[0].key = 999
		require.Equal(t, uint64(0), n.elements[0].key)
	}
}

func TestNodeRecord(t *testing.T) {
	m := testMeta(3)
	n := newNode(m, 300, []element{{key: 1, val: 10, link: 0}, {key: 22, val: 2, link: 419}})
	n.linkLeft = 181
	n.linkParent = 538
	raw, err := n.marshal()
	require.NoError(t, err)
	require.Len(t, raw, m.LeafSize)
	require.True(t, bytes.HasPrefix(raw, []byte("181\x00\x00\x00\x00\x00538\x00\x00\x00\x00\x001\x00")))
	require.Equal(t, byte('\n'), raw[len(raw)-1])
	// key 1, value 10, no child
	elem := raw[16 : 16+m.ElemSize]
	require.Equal(t, padNul([]byte("1"), m.KeySize), elem[:m.KeySize])
	require.Equal(t, padNul([]byte("10"), m.ValSize), elem[m.KeySize:m.KeySize+m.ValSize])
	require.Equal(t, make([]byte, m.LinkSize), elem[m.KeySize+m.ValSize:])
	require.Equal(t, padNul([]byte("419"), m.LinkSize), raw[16+2*m.ElemSize-m.LinkSize:16+2*m.ElemSize])

	got := newNode(m, 300, nil)
	require.NoError(t, got.unmarshal(raw))
	require.Equal(t, n.elements, got.elements)
	require.Equal(t, n.linkLeft, got.linkLeft)
	require.Equal(t, n.linkParent, got.linkParent)

	t.Run("Empty", func(t *testing.T) {
		raw, err := newNode(m, 181, nil).marshal()
		require.NoError(t, err)
		require.Equal(t, make([]byte, 16), raw[:16])
		require.Equal(t, []byte(m.Eod), raw[16:16+len(m.Eod)])
		got := newNode(m, 181, nil)
		require.NoError(t, got.unmarshal(raw))
		require.True(t, got.isEmpty())
		require.Zero(t, got.linkLeft)
	})
	t.Run("Overfull", func(t *testing.T) {
		over := newNode(m, 181, []element{{key: 1}, {key: 2}, {key: 3}, {key: 4}})
		_, err := over.marshal()
		require.ErrorIs(t, err, ErrMalformedNode)
	})
	t.Run("NoEod", func(t *testing.T) {
		bad := bytes.Repeat([]byte{'1'}, m.LeafSize)
		require.ErrorIs(t, newNode(m, 181, nil).unmarshal(bad), ErrMalformedNode)
	})
	t.Run("Garbage", func(t *testing.T) {
		bad := append([]byte{}, raw...)
		bad[16] = 'x'
		require.ErrorIs(t, newNode(m, 181, nil).unmarshal(bad), ErrMalformedNode)
	})
	t.Run("ShortRead", func(t *testing.T) {
		n, short, err := loadNode(bytes.NewReader(raw[:10]), m, 0)
		require.NoError(t, err)
		require.True(t, short)
		require.True(t, n.isEmpty())
	})
}
