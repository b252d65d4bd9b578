package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	input := `-- header comment
CREATE TABLE a (x Int64) ENGINE = MergeTree() ORDER BY x;

-- second; with a semicolon
CREATE TABLE b (y String DEFAULT 'a;b') ENGINE = MergeTree() ORDER BY y; -- trailing
`
	stmts, err := splitStatements(input)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x Int64) ENGINE = MergeTree() ORDER BY x", stmts[0])
	assert.Contains(t, stmts[1], "DEFAULT 'a;b'")
	assert.NotContains(t, stmts[1], "--")
}

func TestSplitStatements_EscapedQuote(t *testing.T) {
	stmts, err := splitStatements(`SELECT 'it''s; fine'; SELECT 2`)
	require.NoError(t, err)
	assert.Equal(t, []string{`SELECT 'it''s; fine'`, "SELECT 2"}, stmts)
}

func TestSplitStatements_Unterminated(t *testing.T) {
	_, err := splitStatements(`SELECT 'oops;`)
	assert.ErrorIs(t, err, errUnterminatedString)
}

func TestDatabaseFromDSN(t *testing.T) {
	tests := []struct {
		dsn     string
		want    string
		wantErr bool
	}{
		{dsn: "clickhouse://default@localhost:9000/fx", want: "fx"},
		{dsn: "clickhouse://localhost:9000?database=bars", want: "bars"},
		{dsn: "clickhouse://localhost:9000", wantErr: true},
	}
	for _, tt := range tests {
		got, err := databaseFromDSN(tt.dsn)
		if tt.wantErr {
			assert.Error(t, err, tt.dsn)
			continue
		}
		require.NoError(t, err, tt.dsn)
		assert.Equal(t, tt.want, got)
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "`fx`", quoteIdent("fx"))
	assert.Equal(t, "`a``b`", quoteIdent("a`b"))
}

func TestLoad_OrdersAndSkipsEmpty(t *testing.T) {
	fsys := fstest.MapFS{
		"pg/002_b.sql": {Data: []byte("SELECT 2;")},
		"pg/001_a.sql": {Data: []byte("SELECT 1;")},
		"pg/003_c.sql": {Data: []byte("  \n")},
		"pg/notes.txt": {Data: []byte("ignored")},
	}
	got, err := load(fsys, "pg")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "001_a.sql", got[0].Name)
	assert.Equal(t, "002_b.sql", got[1].Name)
}

func TestEmbeddedMigrations(t *testing.T) {
	ch, err := load(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.NotEmpty(t, ch)
	stmts, err := splitStatements(ch[0].SQL)
	require.NoError(t, err)
	assert.Len(t, stmts, 1)

	pg, err := load(PostgresFS, "postgres")
	require.NoError(t, err)
	require.NotEmpty(t, pg)
	assert.Contains(t, pg[0].SQL, "CREATE TABLE IF NOT EXISTS reports")
}
