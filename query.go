package filedb

import (
	"slices"

	"github.com/pkg/errors"
)

type whereClause struct {
	idx    *dbIndex
	values []string
}

// Query collects the parts of a select. The first error raised by a builder
// method is kept and returned by Select, which then does no I/O.
type Query struct {
	db      *DB
	columns []string
	where   []whereClause
	offset  int
	amount  int
	limited bool
	err     error
}

func (db *DB) Query() *Query {
	return &Query{db: db}
}

func (q *Query) checkColumns(cols []string) error {
	for _, c := range cols {
		if _, ok := q.db.meta.column(c); !ok {
			return errors.Wrapf(ErrUnknownColumn, "%q", c)
		}
	}
	return nil
}

// Columns sets the columns returned by Select. No call means every column.
func (q *Query) Columns(cols ...string) *Query {
	if q.err != nil {
		return q
	}
	if q.err = q.checkColumns(cols); q.err == nil {
		q.columns = cols
	}
	return q
}

// Where keeps rows whose column equals one of values. The column needs a
// ready index. Several Where calls must all match.
func (q *Query) Where(column string, values ...string) *Query {
	if q.err != nil {
		return q
	}
	if q.err = q.checkColumns([]string{column}); q.err != nil {
		return q
	}
	idx, err := q.db.indexFor(column)
	if err != nil {
		q.err = err
		return q
	}
	q.where = append(q.where, whereClause{idx: idx, values: values})
	return q
}

// Limit skips offset matching rows and returns at most amount of the rest.
func (q *Query) Limit(offset, amount int) *Query {
	if q.err != nil {
		return q
	}
	if offset < 0 || amount <= 0 {
		q.err = errors.Wrapf(ErrBadLimit, "offset %d, amount %d", offset, amount)
		return q
	}
	q.offset, q.amount, q.limited = offset, amount, true
	return q
}

// Select runs the query. cols, when given, replace the columns set with
// Columns. Rows come back in insertion order.
func (q *Query) Select(cols ...string) ([]Row, error) {
	if q.err == nil && len(cols) > 0 {
		q.Columns(cols...)
	}
	if q.err != nil {
		return nil, q.err
	}
	rows, err := q.rows()
	if err != nil {
		return nil, err
	}
	if q.limited {
		start := min(q.offset, len(rows))
		end := len(rows)
		if q.amount < end-start {
			end = start + q.amount
		}
		rows = rows[start:end]
	}
	if len(q.columns) > 0 {
		for i, row := range rows {
			rows[i] = project(row, q.columns)
		}
	}
	return rows, nil
}

func (q *Query) rows() ([]Row, error) {
	if len(q.where) == 0 {
		return q.db.storage.scan()
	}
	var addrs []uint64
	for i, w := range q.where {
		found, err := w.addresses()
		if err != nil {
			return nil, err
		}
		if i == 0 {
			addrs = found
			continue
		}
		addrs = slices.DeleteFunc(addrs, func(a uint64) bool {
			_, ok := slices.BinarySearch(found, a)
			return !ok
		})
	}
	rows, err := q.db.storage.get(q.db.liveAddrs(addrs))
	if err != nil {
		return nil, err
	}
	// index hits are candidates: hashed string keys collide and stale
	// entries may point at reused addresses
	return slices.DeleteFunc(rows, func(row Row) bool {
		for _, w := range q.where {
			if !slices.Contains(w.values, row[w.idx.column.Name]) {
				return true
			}
		}
		return false
	}), nil
}

// addresses returns the sorted, distinct row addresses stored under any of
// the clause values.
func (w whereClause) addresses() ([]uint64, error) {
	var out []uint64
	for _, v := range w.values {
		k, err := w.idx.keyOf(v)
		if err != nil {
			// a non-numeric value can never match an int column
			continue
		}
		found, err := w.idx.Get(k)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func project(row Row, cols []string) Row {
	out := make(Row, len(cols))
	for _, c := range cols {
		out[c] = row[c]
	}
	return out
}
