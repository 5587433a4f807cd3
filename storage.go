package filedb

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nyan233/filedb/internal/sys"
	"github.com/pkg/errors"
)

// rowStorage keeps rows as fixed length records, one per line. Every column
// value is right-padded with NUL to its declared length, in schema order. Row
// address n (1-based) starts at byte (n-1)*(lineLength+1).
type rowStorage struct {
	path       string
	file       *os.File
	cols       []Column
	lineLength int
	rows       uint64
	logger     *slog.Logger
}

func storagePath(dir, name string) string {
	return filepath.Join(dir, name+".storage")
}

func openRowStorage(path string, cols []Column, logger *slog.Logger) (*rowStorage, error) {
	s := &rowStorage{
		path:   path,
		cols:   cols,
		logger: logger,
	}
	for _, c := range cols {
		s.lineLength += c.Length
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *rowStorage) init() (err error) {
	s.file, err = sys.OpenFile(s.path)
	if err != nil {
		return errors.Wrapf(err, "open storage %s", s.path)
	}
	stat, err := s.file.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat storage %s", s.path)
	}
	size := uint64(stat.Size())
	s.rows = size / s.recordSize()
	if size%s.recordSize() != 0 {
		s.logger.Warn("storage ends with a partial record", "path", s.path, "size", size, "rows", s.rows)
	}
	return nil
}

func (s *rowStorage) recordSize() uint64 {
	return uint64(s.lineLength + 1)
}

func (s *rowStorage) count() uint64 {
	return s.rows
}

// encode checks row against the schema and renders its record.
func (s *rowStorage) encode(row Row) ([]byte, error) {
	buf := make([]byte, 0, s.recordSize())
	for _, c := range s.cols {
		v, ok := row[c.Name]
		if !ok {
			return nil, errors.Wrapf(ErrMalformedRow, "column %q is missing", c.Name)
		}
		if err := checkValue(c, v); err != nil {
			return nil, err
		}
		buf = append(buf, padNul([]byte(v), c.Length)...)
	}
	return append(buf, '\n'), nil
}

func checkValue(c Column, v string) error {
	if len(v) > c.Length {
		return errors.Wrapf(ErrFieldOverflow, "column %q: %q is longer than %d", c.Name, v, c.Length)
	}
	if c.Type == ColumnTypeInt && (v == "" || !isDecimal([]byte(v))) {
		return errors.Wrapf(ErrMalformedRow, "column %q: %q is not an integer", c.Name, v)
	}
	if bytes.ContainsAny([]byte(v), "\x00\n") {
		return errors.Wrapf(ErrMalformedRow, "column %q: value contains NUL or newline", c.Name)
	}
	return nil
}

func (s *rowStorage) decode(raw []byte) Row {
	row := make(Row, len(s.cols))
	off := 0
	for _, c := range s.cols {
		row[c.Name] = string(stripNul(raw[off : off+c.Length]))
		off += c.Length
	}
	return row
}

// put appends row as the next record.
func (s *rowStorage) put(row Row) (bool, error) {
	raw, err := s.encode(row)
	if err != nil {
		return false, err
	}
	if _, err = s.file.WriteAt(raw, int64(s.rows*s.recordSize())); err != nil {
		s.logger.Error("storage append fail", "path", s.path, "err", err)
		return false, errors.Wrapf(err, "append to storage %s", s.path)
	}
	s.rows++
	return true, nil
}

// get reads the rows at the given addresses, in that order.
func (s *rowStorage) get(addrs []uint64) ([]Row, error) {
	out := make([]Row, 0, len(addrs))
	raw := make([]byte, s.recordSize())
	for _, addr := range addrs {
		if addr == 0 || addr > s.rows {
			return nil, errors.Wrapf(ErrRowNotFound, "address %d, storage holds %d rows", addr, s.rows)
		}
		if _, err := s.file.ReadAt(raw, int64((addr-1)*s.recordSize())); err != nil {
			return nil, errors.Wrapf(err, "read row %d", addr)
		}
		out = append(out, s.decode(raw))
	}
	return out, nil
}

// scan returns every stored row in address order.
func (s *rowStorage) scan() ([]Row, error) {
	out := make([]Row, 0, s.rows)
	r := io.NewSectionReader(s.file, 0, int64(s.rows*s.recordSize()))
	raw := make([]byte, s.recordSize())
	for {
		if _, err := io.ReadFull(r, raw); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, errors.Wrapf(err, "scan storage %s", s.path)
		}
		out = append(out, s.decode(raw))
	}
}

// delete truncates and removes the file, then starts over with an empty one.
func (s *rowStorage) delete() error {
	if err := s.file.Truncate(0); err != nil {
		return errors.Wrapf(err, "truncate storage %s", s.path)
	}
	if err := s.file.Close(); err != nil {
		return errors.Wrapf(err, "close storage %s", s.path)
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove storage %s", s.path)
	}
	s.rows = 0
	return s.init()
}

func (s *rowStorage) sync() error {
	if err := sys.Fsync(s.file); err != nil {
		return errors.Wrapf(err, "sync storage %s", s.path)
	}
	return nil
}

func (s *rowStorage) close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return errors.Wrapf(err, "close storage %s", s.path)
	}
	return nil
}
