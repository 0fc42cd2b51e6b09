package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	q := `UPDATE tasks SET text = ? WHERE id = ? AND notes <> 'why?'`

	assert.Equal(t, q, Rebind(DriverSQLite, q))
	assert.Equal(t,
		`UPDATE tasks SET text = $1 WHERE id = $2 AND notes <> 'why?'`,
		Rebind(DriverPostgres, q),
	)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", Placeholders(0))
	assert.Equal(t, "?", Placeholders(1))
	assert.Equal(t, "?,?,?", Placeholders(3))
}
