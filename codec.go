package filedb

import (
	"cmp"
	"strconv"

	"github.com/pkg/errors"
)

var (
	_ Codec[uint64] = FixedWidthCodec{}
	_ Codec[string] = PaddedStringCodec{}
)

type Codec[T any] interface {
	Unmarshal(data []byte, v *T) error
	Marshal(v *T) ([]byte, error)
}

// FixedWidthCodec renders an uint64 as ASCII decimal right-padded with NUL
// bytes to exactly Width bytes. The empty field decodes to 0. With EmptyZero
// set, 0 is written as the empty field.
type FixedWidthCodec struct {
	Width     int
	EmptyZero bool
}

func (c FixedWidthCodec) Marshal(v *uint64) ([]byte, error) {
	return c.appendTo(make([]byte, 0, c.Width), *v)
}

func (c FixedWidthCodec) appendTo(dst []byte, v uint64) ([]byte, error) {
	start := len(dst)
	if v != 0 || !c.EmptyZero {
		dst = strconv.AppendUint(dst, v, 10)
	}
	if n := len(dst) - start; n > c.Width {
		return dst[:start], errors.Wrapf(ErrFieldOverflow, "%d needs %d digits, width is %d", v, n, c.Width)
	}
	for len(dst)-start < c.Width {
		dst = append(dst, 0)
	}
	return dst, nil
}

func (c FixedWidthCodec) Unmarshal(data []byte, v *uint64) error {
	d := stripNul(data)
	if len(d) == 0 {
		*v = 0
		return nil
	}
	if !isDecimal(d) {
		return errors.Errorf("field %q is not decimal", d)
	}
	n, err := strconv.ParseUint(string(d), 10, 64)
	if err != nil {
		return errors.Wrapf(err, "parse field %q", d)
	}
	*v = n
	return nil
}

// PaddedStringCodec stores a string right-padded with NUL bytes.
type PaddedStringCodec struct {
	Width int
}

func (c PaddedStringCodec) Marshal(v *string) ([]byte, error) {
	if len(*v) > c.Width {
		return nil, errors.Wrapf(ErrFieldOverflow, "%q is %d bytes, width is %d", *v, len(*v), c.Width)
	}
	return padNul([]byte(*v), c.Width), nil
}

func (c PaddedStringCodec) Unmarshal(data []byte, v *string) error {
	*v = string(stripNul(data))
	return nil
}

// compareKey orders keys by numeric value.
func compareKey(a, b uint64) int {
	return cmp.Compare(a, b)
}
