package filedb

import "errors"

var (
	ErrMalformedMeta = errors.New("malformed tree header")
	ErrMalformedNode = errors.New("malformed tree node")
	ErrFieldOverflow = errors.New("value does not fit fixed width field")
	ErrDuplicateKey  = errors.New("duplicate key")
	ErrIndexWrite    = errors.New("index write failed")
	ErrUnknownColumn = errors.New("unknown column")
	ErrMalformedRow  = errors.New("row does not match schema")
	ErrNotIndexed    = errors.New("column is not indexed")
	ErrBadLimit      = errors.New("bad limit")
	ErrEmptySchema   = errors.New("schema has no columns")
	ErrRowNotFound   = errors.New("row address out of range")
	ErrClosed        = errors.New("closed")
)
