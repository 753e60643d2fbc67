package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSQL(t *testing.T) {
	s := &Store{}
	statements := s.splitSQL(`
-- comment line
CREATE TABLE a (id INT); CREATE TABLE b (note TEXT DEFAULT 'x; y');
INSERT INTO a VALUES (1); -- trailing
`)
	assert.Equal(t, []string{
		"CREATE TABLE a (id INT);",
		"CREATE TABLE b (note TEXT DEFAULT 'x; y');",
		"INSERT INTO a VALUES (1);",
	}, statements)
}

func TestSplitSQLEmbeddedSchema(t *testing.T) {
	s := &Store{}
	raw, err := migrationFS.ReadFile("migration/postgres/" + LatestSchemaFileName)
	assert.NoError(t, err)
	statements := s.splitSQL(string(raw))
	assert.Greater(t, len(statements), 10)
	assert.Equal(t, "CREATE EXTENSION IF NOT EXISTS vector;", statements[0])
}
