package filedb

import (
	"strconv"

	"github.com/pkg/errors"
)

// treeMeta is the typed view of the 181 byte header at offset 0 of an index
// file. Field order on disk follows the struct order.
type treeMeta struct {
	MaxElemsInNode int
	KeySize        int
	ValSize        int
	LinkSize       int
	Eod            string
	EndOfNode      string
	RootLink       uint64
	ElemSize       int
	LeafSize       int
}

func newTreeMeta(opt TreeOption) treeMeta {
	m := treeMeta{
		MaxElemsInNode: opt.MaxElemsInNode,
		KeySize:        opt.KeySize,
		ValSize:        opt.ValSize,
		LinkSize:       opt.LinkSize,
		Eod:            opt.Eod,
		EndOfNode:      opt.EndOfNode,
		RootLink:       metaLength,
	}
	m.ElemSize = m.KeySize + m.ValSize + m.LinkSize
	m.LeafSize = m.LinkSize*2 + m.MaxElemsInNode*m.ElemSize + len(m.Eod) + len(m.EndOfNode)
	return m
}

func (m *treeMeta) fields() []string {
	return []string{
		strconv.Itoa(m.MaxElemsInNode),
		strconv.Itoa(m.KeySize),
		strconv.Itoa(m.ValSize),
		strconv.Itoa(m.LinkSize),
		m.Eod,
		m.EndOfNode,
		strconv.FormatUint(m.RootLink, 10),
		strconv.Itoa(m.ElemSize),
		strconv.Itoa(m.LeafSize),
	}
}

func (m *treeMeta) marshal() ([]byte, error) {
	codec := PaddedStringCodec{Width: metaParamLength}
	buf := make([]byte, 0, metaLength)
	for _, f := range m.fields() {
		b, err := codec.Marshal(&f)
		if err != nil {
			return nil, errors.Wrap(err, "encode tree header")
		}
		buf = append(buf, b...)
	}
	return append(buf, '\n'), nil
}

func (m *treeMeta) unmarshal(raw []byte) error {
	if len(raw) < metaParamLength*metaFieldCount {
		return errors.Wrapf(ErrMalformedMeta, "header is %d bytes", len(raw))
	}
	var (
		codec  = PaddedStringCodec{Width: metaParamLength}
		fields = make([]string, metaFieldCount)
	)
	for i := range fields {
		if err := codec.Unmarshal(raw[i*metaParamLength:(i+1)*metaParamLength], &fields[i]); err != nil {
			return errors.Wrapf(ErrMalformedMeta, "field %d: %v", i, err)
		}
	}
	ints := []*int{&m.MaxElemsInNode, &m.KeySize, &m.ValSize, &m.LinkSize}
	for i, p := range ints {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return errors.Wrapf(ErrMalformedMeta, "field %d: %v", i, err)
		}
		*p = v
	}
	m.Eod, m.EndOfNode = fields[4], fields[5]
	root, err := strconv.ParseUint(fields[6], 10, 64)
	if err != nil {
		return errors.Wrapf(ErrMalformedMeta, "root_link: %v", err)
	}
	m.RootLink = root
	if m.ElemSize, err = strconv.Atoi(fields[7]); err != nil {
		return errors.Wrapf(ErrMalformedMeta, "elem_size: %v", err)
	}
	if m.LeafSize, err = strconv.Atoi(fields[8]); err != nil {
		return errors.Wrapf(ErrMalformedMeta, "leaf_size: %v", err)
	}
	return m.check()
}

// check rejects headers whose derived sizes disagree with the widths, which
// would make every node offset computation wrong.
func (m *treeMeta) check() error {
	switch {
	case m.MaxElemsInNode < 2, m.KeySize < 1, m.ValSize < 1, m.LinkSize < 1:
		return errors.Wrapf(ErrMalformedMeta, "bad layout %+v", *m)
	case m.Eod == "" || m.EndOfNode == "":
		return errors.Wrap(ErrMalformedMeta, "empty sentinel")
	case m.ElemSize != m.KeySize+m.ValSize+m.LinkSize:
		return errors.Wrapf(ErrMalformedMeta, "elem_size %d", m.ElemSize)
	case m.LeafSize != m.LinkSize*2+m.MaxElemsInNode*m.ElemSize+len(m.Eod)+len(m.EndOfNode):
		return errors.Wrapf(ErrMalformedMeta, "leaf_size %d", m.LeafSize)
	}
	return nil
}

func (m *treeMeta) keyCodec() FixedWidthCodec  { return FixedWidthCodec{Width: m.KeySize} }
func (m *treeMeta) valCodec() FixedWidthCodec  { return FixedWidthCodec{Width: m.ValSize} }
func (m *treeMeta) linkCodec() FixedWidthCodec {
	return FixedWidthCodec{Width: m.LinkSize, EmptyZero: true}
}

func (m *treeMeta) equalLayout(o *treeMeta) bool {
	return m.MaxElemsInNode == o.MaxElemsInNode && m.KeySize == o.KeySize &&
		m.ValSize == o.ValSize && m.LinkSize == o.LinkSize &&
		m.Eod == o.Eod && m.EndOfNode == o.EndOfNode
}
