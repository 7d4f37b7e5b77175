package contacttag

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The attach statements are built from insertColumns; every one of those
// columns must exist in the contact_tags DDL or the import transaction aborts
// at runtime.
func TestInsertColumnsMatchSchema(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "..", "db", "pg", "000001_init.up.sql"))
	require.NoError(t, err)

	ddl := regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS contact_tags \((.*?)\);`).FindStringSubmatch(string(data))
	require.Len(t, ddl, 2, "contact_tags DDL not found in migration")

	for _, col := range insertColumns {
		assert.Contains(t, ddl[1], col)
	}
}
