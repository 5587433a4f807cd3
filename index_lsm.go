package filedb

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// lsmIndex keeps index entries in a pebble directory. The pebble key is the
// big-endian index key followed by the big-endian row address, so duplicate
// keys stay apart and a lookup is a prefix scan.
type lsmIndex struct {
	dir string
	db  *pebble.DB
}

func openLSMIndex(dir string) (*lsmIndex, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open lsm index %s", dir)
	}
	return &lsmIndex{dir: dir, db: db}, nil
}

func encodeEntry(key, row uint64) []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b, key)
	binary.BigEndian.PutUint64(b[8:], row)
	return b
}

func (l *lsmIndex) checkOpen() error {
	if l.db == nil {
		return errors.Wrapf(ErrClosed, "lsm index %s", l.dir)
	}
	return nil
}

func (l *lsmIndex) Put(key, row uint64) (int, error) {
	if err := l.checkOpen(); err != nil {
		return 0, err
	}
	k := encodeEntry(key, row)
	if err := l.db.Set(k, nil, pebble.NoSync); err != nil {
		return 0, errors.Wrapf(err, "lsm put %d", key)
	}
	return len(k), nil
}

func (l *lsmIndex) Get(key uint64) ([]uint64, error) {
	if err := l.checkOpen(); err != nil {
		return nil, err
	}
	opts := &pebble.IterOptions{LowerBound: encodeEntry(key, 0)}
	if key < math.MaxUint64 {
		opts.UpperBound = encodeEntry(key+1, 0)
	}
	iter, err := l.db.NewIter(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "lsm get %d", key)
	}
	var rows []uint64
	for iter.First(); iter.Valid(); iter.Next() {
		k := iter.Key()
		if len(k) != 16 {
			_ = iter.Close()
			return nil, errors.Errorf("lsm get %d: unexpected key length %d", key, len(k))
		}
		rows = append(rows, binary.BigEndian.Uint64(k[8:]))
	}
	if err = iter.Close(); err != nil {
		return nil, errors.Wrapf(err, "lsm get %d", key)
	}
	return rows, nil
}

func (l *lsmIndex) Clear() error {
	if err := l.Close(); err != nil {
		return err
	}
	if err := os.RemoveAll(l.dir); err != nil {
		return errors.Wrapf(err, "remove lsm index %s", l.dir)
	}
	return nil
}

func (l *lsmIndex) Close() error {
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	if err != nil {
		return errors.Wrapf(err, "close lsm index %s", l.dir)
	}
	return nil
}
