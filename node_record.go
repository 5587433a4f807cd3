package filedb

import (
	"bytes"

	"github.com/pkg/errors"
)

// Node record layout, leaf_size bytes in total:
//
//	link_left | link_parent | (key | val | link)* | eod | NUL padding | end_of_node
//
// Every number is ASCII decimal right-padded with NUL to its field width.

func (n *node) marshal() ([]byte, error) {
	m := n.meta
	if len(n.elements) > m.MaxElemsInNode {
		return nil, errors.Wrapf(ErrMalformedNode, "node %d holds %d elements, capacity is %d",
			n.link, len(n.elements), m.MaxElemsInNode)
	}
	var (
		buf = make([]byte, 0, m.LeafSize)
		kc  = m.keyCodec()
		vc  = m.valCodec()
		lc  = m.linkCodec()
		err error
	)
	if buf, err = lc.appendTo(buf, n.linkLeft); err != nil {
		return nil, err
	}
	if buf, err = lc.appendTo(buf, n.linkParent); err != nil {
		return nil, err
	}
	for _, e := range n.elements {
		if buf, err = kc.appendTo(buf, e.key); err != nil {
			return nil, errors.WithMessage(err, "key")
		}
		if buf, err = vc.appendTo(buf, e.val); err != nil {
			return nil, errors.WithMessage(err, "value")
		}
		if buf, err = lc.appendTo(buf, e.link); err != nil {
			return nil, errors.WithMessage(err, "link")
		}
	}
	buf = append(buf, m.Eod...)
	for len(buf) < m.LeafSize-len(m.EndOfNode) {
		buf = append(buf, 0)
	}
	return append(buf, m.EndOfNode...), nil
}

func (n *node) unmarshal(raw []byte) error {
	m := n.meta
	if len(raw) < m.LeafSize {
		return errors.Wrapf(ErrMalformedNode, "record is %d bytes, want %d", len(raw), m.LeafSize)
	}
	var (
		kc = m.keyCodec()
		vc = m.valCodec()
		lc = m.linkCodec()
		ls = m.LinkSize
	)
	if err := lc.Unmarshal(raw[:ls], &n.linkLeft); err != nil {
		return errors.Wrapf(ErrMalformedNode, "link_left: %v", err)
	}
	if err := lc.Unmarshal(raw[ls:2*ls], &n.linkParent); err != nil {
		return errors.Wrapf(ErrMalformedNode, "link_parent: %v", err)
	}
	body := raw[2*ls : m.LeafSize]
	end := bytes.Index(body, []byte(m.Eod))
	if end < 0 {
		return errors.Wrap(ErrMalformedNode, "no end of data marker")
	}
	body = body[:end]
	if len(body)%m.ElemSize != 0 || len(body)/m.ElemSize > m.MaxElemsInNode {
		return errors.Wrapf(ErrMalformedNode, "element region is %d bytes", len(body))
	}
	n.elements = make([]element, 0, len(body)/m.ElemSize)
	for ; len(body) > 0; body = body[m.ElemSize:] {
		var e element
		if err := kc.Unmarshal(body[:m.KeySize], &e.key); err != nil {
			return errors.Wrapf(ErrMalformedNode, "key: %v", err)
		}
		if err := vc.Unmarshal(body[m.KeySize:m.KeySize+m.ValSize], &e.val); err != nil {
			return errors.Wrapf(ErrMalformedNode, "value: %v", err)
		}
		if err := lc.Unmarshal(body[m.KeySize+m.ValSize:m.ElemSize], &e.link); err != nil {
			return errors.Wrapf(ErrMalformedNode, "link: %v", err)
		}
		n.elements = append(n.elements, e)
	}
	return nil
}
