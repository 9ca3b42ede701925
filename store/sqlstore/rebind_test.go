package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	q := `UPDATE employees SET version = version + 1 WHERE id = ? AND version = ?`

	assert.Equal(t, q, rebind(DialectSQLite, q))
	assert.Equal(t,
		`UPDATE employees SET version = version + 1 WHERE id = $1 AND version = $2`,
		rebind(DialectPostgres, q))
}
