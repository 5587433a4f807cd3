package filedb

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Column struct {
	Name   string `yaml:"name" validate:"required"`
	Type   string `yaml:"type" validate:"oneof=int string"`
	Length int    `yaml:"length" validate:"min=1,max=255"`
}

type IndexDesc struct {
	Columns []string `yaml:"columns" validate:"min=1,dive,required"`
	Status  string   `yaml:"status,omitempty"`
	Type    string   `yaml:"type" validate:"oneof=btree lsm"`
	Unique  bool     `yaml:"unique,omitempty"`
}

func (d *IndexDesc) ready() bool {
	return d.Status == IndexStatusReady
}

// Metadata is the schema of a database together with its bookkeeping. Cols
// keeps the column order of storage records.
type Metadata struct {
	Cols        []Column    `yaml:"cols" validate:"dive"`
	Description string      `yaml:"description,omitempty"`
	Indexes     []IndexDesc `yaml:"indexes,omitempty" validate:"dive"`
	Rows        uint64      `yaml:"rows"`
}

// Row maps column names to values. Int columns hold decimal digits.
type Row map[string]string

type metaStore struct {
	Metadata
	path       string
	lineLength int
	colIndex   map[string]int
}

func metaPath(dir, name string) string {
	return filepath.Join(dir, name+"_meta.yaml")
}

// openMetaStore loads the metadata file of the named database. A missing file
// is created from template; without a template the store stays empty.
func openMetaStore(dir, name string, template *Metadata) (*metaStore, error) {
	m := &metaStore{path: metaPath(dir, name)}
	raw, err := os.ReadFile(m.path)
	switch {
	case err == nil:
		if err = yaml.Unmarshal(raw, &m.Metadata); err != nil {
			return nil, errors.Wrapf(err, "decode metadata %s", m.path)
		}
	case os.IsNotExist(err):
		if template == nil {
			break
		}
		m.Metadata = cloneMetadata(*template)
		if err = m.check(); err != nil {
			return nil, err
		}
		if err = m.save(); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Wrapf(err, "read metadata %s", m.path)
	}
	if err = m.check(); err != nil {
		return nil, err
	}
	m.derive()
	return m, nil
}

func cloneMetadata(md Metadata) Metadata {
	md.Cols = slices.Clone(md.Cols)
	md.Indexes = slices.Clone(md.Indexes)
	for i := range md.Indexes {
		md.Indexes[i].Columns = slices.Clone(md.Indexes[i].Columns)
	}
	return md
}

func (m *metaStore) check() error {
	if m.isEmpty() {
		return nil
	}
	if err := structValidator.Struct(&m.Metadata); err != nil {
		return errors.Wrapf(err, "invalid metadata %s", m.path)
	}
	seen := make(map[string]struct{}, len(m.Cols))
	for _, c := range m.Cols {
		if _, ok := seen[c.Name]; ok {
			return errors.Errorf("invalid metadata %s: column %q declared twice", m.path, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	for _, idx := range m.Indexes {
		for _, c := range idx.Columns {
			if _, ok := seen[c]; !ok {
				return errors.Wrapf(ErrUnknownColumn, "index on %q in %s", c, m.path)
			}
		}
	}
	return nil
}

func (m *metaStore) derive() {
	m.lineLength = 0
	m.colIndex = make(map[string]int, len(m.Cols))
	for i, c := range m.Cols {
		m.lineLength += c.Length
		m.colIndex[c.Name] = i
	}
}

func (m *metaStore) isEmpty() bool {
	return len(m.Cols) == 0
}

func (m *metaStore) column(name string) (Column, bool) {
	i, ok := m.colIndex[name]
	if !ok {
		return Column{}, false
	}
	return m.Cols[i], true
}

func (m *metaStore) columnNames() []string {
	names := make([]string, len(m.Cols))
	for i, c := range m.Cols {
		names[i] = c.Name
	}
	return names
}

// indexOn returns the position of the first index whose leading column is
// column.
func (m *metaStore) indexOn(column string) (int, bool) {
	for i, idx := range m.Indexes {
		if idx.Columns[0] == column {
			return i, true
		}
	}
	return 0, false
}

// save rewrites the metadata file through a temporary file and rename.
func (m *metaStore) save() error {
	raw, err := yaml.Marshal(&m.Metadata)
	if err != nil {
		return errors.Wrap(err, "encode metadata")
	}
	tmp := m.path + ".tmp"
	if err = os.WriteFile(tmp, raw, 0644); err != nil {
		return errors.Wrapf(err, "write metadata %s", tmp)
	}
	if err = os.Rename(tmp, m.path); err != nil {
		return errors.Wrapf(err, "replace metadata %s", m.path)
	}
	return nil
}

// indexFileName is <db>_<columns in lowerCamel>.<type>, e.g. nets_networkMask.btree.
func indexFileName(db string, idx IndexDesc) string {
	var b strings.Builder
	for i, c := range idx.Columns {
		r := []rune(c)
		if len(r) > 0 {
			if i == 0 {
				r[0] = unicode.ToLower(r[0])
			} else {
				r[0] = unicode.ToUpper(r[0])
			}
		}
		b.WriteString(string(r))
	}
	return db + "_" + b.String() + "." + idx.Type
}
