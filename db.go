package filedb

import (
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// DB is a named table of fixed length rows with secondary indexes. All files
// of a DB live in Config.RootDir. A DB is not safe for concurrent use.
type DB struct {
	cfg     Config
	meta    *metaStore
	storage *rowStorage
	indexes []*dbIndex
	logger  *slog.Logger
}

func Open(cfg Config) (*DB, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Tree.Logger == nil {
		cfg.Tree.Logger = cfg.Logger
	}
	opt := cfg.Tree.withDefaults()
	if err := opt.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.RootDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "create directory %s", cfg.RootDir)
	}
	meta, err := openMetaStore(cfg.RootDir, cfg.Name, cfg.Schema)
	if err != nil {
		return nil, err
	}
	if meta.isEmpty() {
		return nil, errors.Wrapf(ErrEmptySchema, "database %q", cfg.Name)
	}
	db := &DB{
		cfg:    cfg,
		meta:   meta,
		logger: cfg.Logger,
	}
	if err = db.init(); err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	db.logger.Debug("database opened", "name", cfg.Name, "rows", meta.Rows, "indexes", len(db.indexes))
	return db, nil
}

func (db *DB) init() (err error) {
	db.storage, err = openRowStorage(storagePath(db.cfg.RootDir, db.cfg.Name), db.meta.Cols, db.logger)
	if err != nil {
		return err
	}
	if db.storage.count() != db.meta.Rows {
		db.logger.Warn("row count differs from metadata", "name", db.cfg.Name,
			"storage", db.storage.count(), "meta", db.meta.Rows)
	}
	for i := range db.meta.Indexes {
		desc := &db.meta.Indexes[i]
		col, _ := db.meta.column(desc.Columns[0])
		idx, err := openDBIndex(db.cfg.RootDir, db.cfg.Name, desc, col, db.cfg.Tree)
		if err != nil {
			return err
		}
		db.indexes = append(db.indexes, idx)
	}
	return nil
}

// Metadata returns a copy of the schema and bookkeeping.
func (db *DB) Metadata() Metadata {
	return cloneMetadata(db.meta.Metadata)
}

// checkRow rejects rows that could never be stored.
func (db *DB) checkRow(row Row) error {
	for name := range row {
		if _, ok := db.meta.column(name); !ok {
			return errors.Wrapf(ErrUnknownColumn, "%q", name)
		}
	}
	for _, c := range db.meta.Cols {
		v, ok := row[c.Name]
		if !ok {
			return errors.Wrapf(ErrMalformedRow, "column %q is missing", c.Name)
		}
		if err := checkValue(c, v); err != nil {
			return err
		}
	}
	return nil
}

// Insert stores rows and indexes them. Every row is checked against the
// schema first and nothing is written if one fails. After that rows are
// inserted one by one: a row that fails (duplicate unique key, index or
// storage error) is skipped and its error collected. Insert returns the
// number of rows written and the collected errors.
func (db *DB) Insert(rows []Row) (int, error) {
	for i, row := range rows {
		if err := db.checkRow(row); err != nil {
			return 0, errors.WithMessagef(err, "row %d", i)
		}
	}
	var (
		inserted int
		errs     error
	)
	for i, row := range rows {
		if err := db.insertRow(row); err != nil {
			errs = multierr.Append(errs, errors.WithMessagef(err, "row %d", i))
			continue
		}
		inserted++
	}
	if inserted > 0 {
		db.meta.Rows += uint64(inserted)
		errs = multierr.Append(errs, db.meta.save())
	}
	return inserted, errs
}

func (db *DB) insertRow(row Row) error {
	var (
		addr = db.storage.count() + 1
		keys = make([]uint64, len(db.indexes))
	)
	for i, idx := range db.indexes {
		v := row[idx.column.Name]
		k, err := idx.keyOf(v)
		if err != nil {
			return err
		}
		keys[i] = k
		if !idx.desc.Unique {
			continue
		}
		dup, err := db.holds(idx, k, v)
		if err != nil {
			return err
		}
		if dup {
			return errors.Wrapf(ErrDuplicateKey, "column %q: %q", idx.column.Name, v)
		}
	}
	for i, idx := range db.indexes {
		if _, err := idx.Put(keys[i], addr); err != nil {
			db.logger.Error("index put fail", "path", idx.path, "err", err)
			return errors.Wrapf(multierr.Append(ErrIndexWrite, err), "column %q", idx.column.Name)
		}
		idx.desc.Status = IndexStatusReady
	}
	_, err := db.storage.put(row)
	return err
}

// holds reports whether a stored row has value v in the column of idx.
func (db *DB) holds(idx *dbIndex, key uint64, v string) (bool, error) {
	addrs, err := idx.Get(key)
	if err != nil {
		return false, err
	}
	rows, err := db.storage.get(db.liveAddrs(addrs))
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if row[idx.column.Name] == v {
			return true, nil
		}
	}
	return false, nil
}

// liveAddrs drops addresses past the end of storage. They are left behind by
// rows whose storage write failed after indexing.
func (db *DB) liveAddrs(addrs []uint64) []uint64 {
	out := addrs[:0]
	for _, a := range addrs {
		if a > 0 && a <= db.storage.count() {
			out = append(out, a)
		}
	}
	return out
}

// indexFor returns the ready index whose leading column is column.
func (db *DB) indexFor(column string) (*dbIndex, error) {
	i, ok := db.meta.indexOn(column)
	if !ok || !db.indexes[i].desc.ready() {
		return nil, errors.Wrapf(ErrNotIndexed, "%q", column)
	}
	return db.indexes[i], nil
}

// Delete clears every index and the storage and resets the row count. The
// schema is kept.
func (db *DB) Delete() error {
	var err error
	for _, idx := range db.indexes {
		err = multierr.Append(err, idx.reset(db.cfg.Tree))
		idx.desc.Status = IndexStatusEmpty
	}
	db.meta.Rows = 0
	err = multierr.Append(err, db.meta.save())
	err = multierr.Append(err, db.storage.delete())
	if err != nil {
		db.logger.Error("delete database fail", "name", db.cfg.Name, "err", err)
	}
	return err
}

// Sync flushes storage and tree indexes to disk.
func (db *DB) Sync() error {
	err := db.storage.sync()
	for _, idx := range db.indexes {
		if ti, ok := idx.Index.(*treeIndex); ok {
			err = multierr.Append(err, ti.tree.Sync())
		}
	}
	return err
}

func (db *DB) Close() error {
	var err error
	if db.storage != nil {
		err = multierr.Append(err, db.storage.close())
	}
	for _, idx := range db.indexes {
		err = multierr.Append(err, idx.Close())
	}
	db.indexes = nil
	return err
}
