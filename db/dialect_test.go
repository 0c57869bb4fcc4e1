package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		query   string
		want    string
	}{
		{
			name:    "sqlite untouched",
			dialect: SQLite,
			query:   "UPDATE posting_jobs SET status = ? WHERE id = ?",
			want:    "UPDATE posting_jobs SET status = ? WHERE id = ?",
		},
		{
			name:    "postgres numbered",
			dialect: Postgres,
			query:   "UPDATE posting_jobs SET status = ? WHERE id = ?",
			want:    "UPDATE posting_jobs SET status = $1 WHERE id = $2",
		},
		{
			name:    "quoted question mark kept",
			dialect: Postgres,
			query:   "SELECT '?' FROM t WHERE a = ?",
			want:    "SELECT '?' FROM t WHERE a = $1",
		},
		{
			name:    "mysql untouched",
			dialect: MySQL,
			query:   "SELECT 1 WHERE a = ?",
			want:    "SELECT 1 WHERE a = ?",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.Rebind(tt.query))
		})
	}
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{
		"sqlite3":    SQLite,
		"":           SQLite,
		"postgres":   Postgres,
		"postgresql": Postgres,
		"mysql":      MySQL,
	} {
		got, err := ParseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDialect("oracle")
	assert.Error(t, err)
}

func TestSplitStatements(t *testing.T) {
	body := `-- header comment
CREATE TABLE a (id TEXT);

CREATE INDEX idx_a ON a(id);
`
	stmts := splitStatements(body)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (id TEXT)", stmts[0])
	assert.Equal(t, "CREATE INDEX idx_a ON a(id)", stmts[1])
}

func TestMigrationsPresentForEveryDialect(t *testing.T) {
	var counts []int
	for _, d := range []Dialect{SQLite, Postgres, MySQL} {
		entries, err := migrations.ReadDir(d.migrationsDir())
		require.NoError(t, err, d)
		counts = append(counts, len(entries))
	}
	assert.Equal(t, counts[0], counts[1])
	assert.Equal(t, counts[0], counts[2])
}
