package filedb

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSchema() *Metadata {
	return &Metadata{
		Cols:        testCols,
		Description: "Test",
		Indexes: []IndexDesc{
			{Columns: []string{"network"}, Type: IndexTypeBTree},
		},
	}
}

func TestMetaStore(t *testing.T) {
	t.Run("Bootstrap", func(t *testing.T) {
		dir := t.TempDir()
		m, err := openMetaStore(dir, "nets", testSchema())
		require.NoError(t, err)
		require.False(t, m.isEmpty())
		require.Equal(t, 32, m.lineLength)
		c, ok := m.column("status")
		require.True(t, ok)
		require.Equal(t, 2, c.Length)
		_, ok = m.column("nope")
		require.False(t, ok)
		require.Equal(t, []string{"network", "mask", "status", "note"}, m.columnNames())

		raw, err := os.ReadFile(metaPath(dir, "nets"))
		require.NoError(t, err)
		require.Contains(t, string(raw), "description: Test")

		m.Rows = 12
		m.Indexes[0].Status = IndexStatusReady
		require.NoError(t, m.save())

		// the file wins over the template once it exists
		m2, err := openMetaStore(dir, "nets", &Metadata{Cols: []Column{{Name: "x", Type: ColumnTypeInt, Length: 1}}})
		require.NoError(t, err)
		require.Equal(t, uint64(12), m2.Rows)
		require.Len(t, m2.Cols, 4)
		require.True(t, m2.Indexes[0].ready())
		i, ok := m2.indexOn("network")
		require.True(t, ok)
		require.Zero(t, i)
		_, ok = m2.indexOn("mask")
		require.False(t, ok)
	})
	t.Run("TemplateNotShared", func(t *testing.T) {
		schema := testSchema()
		m, err := openMetaStore(t.TempDir(), "nets", schema)
		require.NoError(t, err)
		m.Indexes[0].Status = IndexStatusReady
		require.Empty(t, schema.Indexes[0].Status)
	})
	t.Run("Empty", func(t *testing.T) {
		m, err := openMetaStore(t.TempDir(), "none", nil)
		require.NoError(t, err)
		require.True(t, m.isEmpty())
	})
	t.Run("Invalid", func(t *testing.T) {
		_, err := openMetaStore(t.TempDir(), "bad", &Metadata{Cols: []Column{{Name: "a", Type: "float", Length: 4}}})
		require.Error(t, err)
		_, err = openMetaStore(t.TempDir(), "bad", &Metadata{Cols: []Column{
			{Name: "a", Type: ColumnTypeInt, Length: 4},
			{Name: "a", Type: ColumnTypeInt, Length: 4},
		}})
		require.Error(t, err)
		_, err = openMetaStore(t.TempDir(), "bad", &Metadata{
			Cols:    []Column{{Name: "a", Type: ColumnTypeInt, Length: 4}},
			Indexes: []IndexDesc{{Columns: []string{"b"}, Type: IndexTypeBTree}},
		})
		require.ErrorIs(t, err, ErrUnknownColumn)
	})
}

func TestIndexFileName(t *testing.T) {
	require.Equal(t, "nets_network.btree", indexFileName("nets", IndexDesc{Columns: []string{"network"}, Type: IndexTypeBTree}))
	require.Equal(t, "nets_networkMask.lsm", indexFileName("nets", IndexDesc{Columns: []string{"Network", "mask"}, Type: IndexTypeLSM}))
}
