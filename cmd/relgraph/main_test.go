package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/relgraph/qcsql"
)

func TestRunDispatch(t *testing.T) {
	require.EqualError(t, run(nil), "missing command")
	require.EqualError(t, run([]string{"bogus"}), `unknown command "bogus"`)
	require.NoError(t, run([]string{"help"}))
	require.NoError(t, run([]string{"help", "serve"}))
	require.EqualError(t, run([]string{"help", "bogus"}), `unknown help topic "bogus"`)
}

func TestLoadConfigRequiresDatabase(t *testing.T) {
	_, err := loadConfig("", "", nil)
	require.EqualError(t, err, "no database configured; pass -db or set 'database' in the config file")
}

func newTestDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	eng, err := qcsql.Open(path)
	require.NoError(t, err)
	defer eng.Close()
	stmts := []string{
		`CREATE TABLE region (region_id INTEGER PRIMARY KEY, name TEXT)`,
		`CREATE TABLE nation (
			nation_id INTEGER PRIMARY KEY,
			name TEXT,
			region_id INTEGER REFERENCES region(region_id)
		)`,
	}
	for _, stmt := range stmts {
		_, err := eng.DB().Exec(stmt)
		require.NoError(t, err)
	}
	return path
}

func TestPrintSDL(t *testing.T) {
	db := newTestDB(t)
	out := filepath.Join(t.TempDir(), "schema.graphql")
	require.NoError(t, run([]string{"print-sdl", "-db", db, "-out", out}))

	sdl, err := os.ReadFile(out)
	require.NoError(t, err)
	s := string(sdl)
	require.Contains(t, s, "type region {")
	require.Contains(t, s, "type region_connection {")
	require.Contains(t, s, "get(id: region_id!): region")
	// the foreign key surfaces as navigations, not a column
	require.Contains(t, s, "region: region")
	require.Contains(t, s, "nation: nation_connection!")
	require.NotContains(t, s, "region_id: Int")
}

func TestPrintSDLEntityFilter(t *testing.T) {
	db := newTestDB(t)
	out := filepath.Join(t.TempDir(), "schema.graphql")
	require.NoError(t, run([]string{"print-sdl", "-db", db, "-graphql.entity", "region", "-out", out}))

	sdl, err := os.ReadFile(out)
	require.NoError(t, err)
	s := string(sdl)
	start := strings.Index(s, "type Root {")
	require.GreaterOrEqual(t, start, 0)
	root := s[start : start+strings.Index(s[start:], "}")]
	require.Contains(t, root, "region: region_connection!")
	require.NotContains(t, root, "nation:")

	t.Run("unknown entity", func(t *testing.T) {
		err := run([]string{"print-sdl", "-db", db, "-graphql.entity", "city"})
		require.EqualError(t, err, `unknown entity "city"`)
	})
}
