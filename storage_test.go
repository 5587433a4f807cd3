package filedb

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var testCols = []Column{
	{Name: "network", Type: ColumnTypeInt, Length: 11},
	{Name: "mask", Type: ColumnTypeInt, Length: 11},
	{Name: "status", Type: ColumnTypeInt, Length: 2},
	{Name: "note", Type: ColumnTypeString, Length: 8},
}

func openTestStorage(t *testing.T) *rowStorage {
	s, err := openRowStorage(filepath.Join(t.TempDir(), "test.storage"), testCols, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.close() })
	return s
}

func TestRowStorage(t *testing.T) {
	t.Run("PutGet", func(t *testing.T) {
		s := openTestStorage(t)
		require.Equal(t, uint64(33), s.recordSize())
		rows := []Row{
			{"network": "167772160", "mask": "4278190080", "status": "1", "note": "a"},
			{"network": "3232235520", "mask": "4294901760", "status": "0", "note": "home lan"},
			{"network": "0", "mask": "0", "status": "12", "note": ""},
		}
		for _, r := range rows {
			ok, err := s.put(r)
			require.NoError(t, err)
			require.True(t, ok)
		}
		require.Equal(t, uint64(3), s.count())

		got, err := s.get([]uint64{3, 1})
		require.NoError(t, err)
		require.Equal(t, []Row{rows[2], rows[0]}, got)
		all, err := s.scan()
		require.NoError(t, err)
		require.Equal(t, rows, all)

		raw, err := os.ReadFile(s.path)
		require.NoError(t, err)
		require.Len(t, raw, 99)
		require.Equal(t, "167772160\x00\x00", string(raw[:11]))
		require.Equal(t, byte('\n'), raw[32])

		_, err = s.get([]uint64{4})
		require.ErrorIs(t, err, ErrRowNotFound)
		_, err = s.get([]uint64{0})
		require.ErrorIs(t, err, ErrRowNotFound)
	})
	t.Run("BadRows", func(t *testing.T) {
		s := openTestStorage(t)
		_, err := s.put(Row{"network": "1", "mask": "1", "status": "1"})
		require.ErrorIs(t, err, ErrMalformedRow)
		_, err = s.put(Row{"network": "1x", "mask": "1", "status": "1", "note": ""})
		require.ErrorIs(t, err, ErrMalformedRow)
		_, err = s.put(Row{"network": "1", "mask": "1", "status": "123", "note": ""})
		require.ErrorIs(t, err, ErrFieldOverflow)
		_, err = s.put(Row{"network": "1", "mask": "1", "status": "1", "note": "a\nb"})
		require.ErrorIs(t, err, ErrMalformedRow)
		require.Zero(t, s.count())
	})
	t.Run("Reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reopen.storage")
		s, err := openRowStorage(path, testCols, slog.Default())
		require.NoError(t, err)
		_, err = s.put(Row{"network": "7", "mask": "8", "status": "9", "note": "x"})
		require.NoError(t, err)
		require.NoError(t, s.sync())
		require.NoError(t, s.close())

		s, err = openRowStorage(path, testCols, slog.Default())
		require.NoError(t, err)
		defer s.close()
		require.Equal(t, uint64(1), s.count())
		rows, err := s.get([]uint64{1})
		require.NoError(t, err)
		require.Equal(t, "x", rows[0]["note"])
	})
	t.Run("Delete", func(t *testing.T) {
		s := openTestStorage(t)
		for i := 0; i < 5; i++ {
			_, err := s.put(Row{"network": "1", "mask": "2", "status": "3", "note": "n"})
			require.NoError(t, err)
		}
		require.NoError(t, s.delete())
		require.Zero(t, s.count())
		stat, err := os.Stat(s.path)
		require.NoError(t, err)
		require.Zero(t, stat.Size())
		rows, err := s.scan()
		require.NoError(t, err)
		require.Empty(t, rows)
		_, err = s.put(Row{"network": "1", "mask": "2", "status": "3", "note": "n"})
		require.NoError(t, err)
		require.Equal(t, uint64(1), s.count())
	})
}
