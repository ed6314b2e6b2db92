package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lllypuk/dwidmapper/internal/domain/user"
)

// UserRecords builds records with numeric ids 1..n in the given order.
func UserRecords(t *testing.T, names ...string) []user.Record {
	t.Helper()

	records := make([]user.Record, 0, len(names))
	for i, name := range names {
		id, err := user.ParseID(i + 1)
		require.NoError(t, err)
		rec, err := user.NewRecord(id, name)
		require.NoError(t, err)
		records = append(records, rec)
	}
	return records
}

// Directory builds a directory from UserRecords.
func Directory(t *testing.T, names ...string) *user.Directory {
	t.Helper()

	dir, err := user.NewDirectory(UserRecords(t, names...))
	require.NoError(t, err)
	return dir
}
