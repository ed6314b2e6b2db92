package dataset_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/dwidmapper/internal/dataset"
	"github.com/lllypuk/dwidmapper/internal/domain/errs"
	"github.com/lllypuk/dwidmapper/internal/domain/user"
)

func names(records []user.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name()
	}
	return out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileSource_JSONObjectKeepsDocumentOrder(t *testing.T) {
	path := writeFile(t, "users.json", `{
		"zed":   {"userID": 3, "userName": "zed"},
		"alice": {"userID": 1, "userName": "alice"},
		"bob":   {"userID": "b-2", "userName": "bob"}
	}`)

	records, err := dataset.NewFileSource(path).Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"zed", "alice", "bob"}, names(records))
	assert.True(t, records[0].ID().IsNumeric())
	assert.False(t, records[2].ID().IsNumeric())
	assert.Equal(t, "b-2", records[2].ID().String())
}

func TestFileSource_JSONArray(t *testing.T) {
	path := writeFile(t, "users.json", `[
		{"userID": 1234, "userName": "user1"},
		{"userID": 1223, "userName": "user2"}
	]`)

	records, err := dataset.NewFileSource(path).Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"user1", "user2"}, names(records))
}

func TestFileSource_JSONNameFromKey(t *testing.T) {
	path := writeFile(t, "users.json", `{"user1": {"userID": 1234}}`)

	records, err := dataset.NewFileSource(path).Load(context.Background())

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "user1", records[0].Name())
}

func TestFileSource_JSONRepeatedKeyLastValueWins(t *testing.T) {
	path := writeFile(t, "users.json", `{
		"alice": {"userID": 1, "userName": "alice"},
		"bob":   {"userID": 2, "userName": "bob"},
		"alice": {"userID": 9, "userName": "alice"}
	}`)

	records, err := dataset.NewFileSource(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names(records))
	assert.Equal(t, "9", records[0].ID().String())

	dir, err := user.NewDirectory(records)
	require.NoError(t, err)
	assert.Equal(t, 2, dir.Len())
}

func TestFileSource_JSONRepeatedKeyOnlyLastValueDecoded(t *testing.T) {
	path := writeFile(t, "users.json", `{"alice": {"userName": "alice"}, "alice": {"userID": 3}}`)

	records, err := dataset.NewFileSource(path).Load(context.Background())

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "3", records[0].ID().String())
}

func TestFileSource_JSONArrayDuplicateNamesRejected(t *testing.T) {
	path := writeFile(t, "users.json", `[
		{"userID": 1, "userName": "alice"},
		{"userID": 2, "userName": "alice"}
	]`)

	_, err := dataset.LoadDirectory(context.Background(), dataset.NewFileSource(path), nil)

	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestFileSource_JSONKeyMismatch(t *testing.T) {
	path := writeFile(t, "users.json", `{"user1": {"userID": 1, "userName": "someone-else"}}`)

	_, err := dataset.NewFileSource(path).Load(context.Background())

	require.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestFileSource_JSONErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"scalar document", `42`, errs.ErrUnsupportedFormat},
		{"missing id", `{"a": {"userName": "a"}}`, errs.ErrInvalidInput},
		{"truncated", `{"a": {"userID": 1`, nil},
		{"trailing data", `{} {}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "users.json", tt.content)

			_, err := dataset.NewFileSource(path).Load(context.Background())

			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestFileSource_YAML(t *testing.T) {
	path := writeFile(t, "users.yaml", `
zed:
  userID: 3
  userName: zed
alice:
  userID: "0001"
bob:
  userID: 2.5
  userName: bob
`)

	records, err := dataset.NewFileSource(path).Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"zed", "alice", "bob"}, names(records))
	assert.True(t, records[0].ID().IsNumeric())
	assert.False(t, records[1].ID().IsNumeric())
	assert.Equal(t, "0001", records[1].ID().String())
	assert.Equal(t, "2.5", records[2].ID().String())
}

func TestFileSource_YAMLSequence(t *testing.T) {
	path := writeFile(t, "users.yml", `
- userID: 1
  userName: alice
- userID: 2
  userName: bob
`)

	records, err := dataset.NewFileSource(path).Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names(records))
}

func TestFileSource_YAMLMissingID(t *testing.T) {
	path := writeFile(t, "users.yaml", "alice:\n  userName: alice\n")

	_, err := dataset.NewFileSource(path).Load(context.Background())

	require.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestFileSource_ECMAScriptOrder(t *testing.T) {
	path := writeFile(t, "users.json", `{
		"bob": {"userID": 1},
		"10":  {"userID": 2},
		"alice": {"userID": 3},
		"2":   {"userID": 4},
		"007": {"userID": 5}
	}`)

	records, err := dataset.NewFileSource(path, dataset.WithKeyOrder(dataset.KeyOrderECMAScript)).
		Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"2", "10", "bob", "alice", "007"}, names(records))
}

func TestFileSource_NotFound(t *testing.T) {
	_, err := dataset.NewFileSource(filepath.Join(t.TempDir(), "missing.json")).Load(context.Background())

	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestFileSource_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, "users.csv", "alice,1")

	_, err := dataset.NewFileSource(path).Load(context.Background())

	require.ErrorIs(t, err, errs.ErrUnsupportedFormat)
}

func TestFileSource_WithFS(t *testing.T) {
	fsys := fstest.MapFS{
		"fixtures/users.json": {Data: []byte(`{"alice": {"userID": 1, "userName": "alice"}}`)},
	}

	src := dataset.NewFileSource("fixtures/users.json", dataset.WithFS(fsys))
	records, err := src.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, names(records))
	assert.Equal(t, "file:fixtures/users.json", src.Name())
}

func TestParseKeyOrder(t *testing.T) {
	order, err := dataset.ParseKeyOrder("")
	require.NoError(t, err)
	assert.Equal(t, dataset.KeyOrderDocument, order)

	order, err = dataset.ParseKeyOrder("ECMAScript")
	require.NoError(t, err)
	assert.Equal(t, dataset.KeyOrderECMAScript, order)

	_, err = dataset.ParseKeyOrder("alphabetical")
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}
