package relica

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name       string
		driverName string
		query      string
		expected   string
	}{
		{
			name:       "MySQL keeps question marks",
			driverName: "mysql",
			query:      "UPDATE t SET a = ? WHERE b = ?",
			expected:   "UPDATE t SET a = ? WHERE b = ?",
		},
		{
			name:       "SQLite keeps question marks",
			driverName: "sqlite3",
			query:      "DELETE FROM t WHERE id = ?",
			expected:   "DELETE FROM t WHERE id = ?",
		},
		{
			name:       "PostgreSQL numbers placeholders",
			driverName: "postgres",
			query:      "UPDATE t SET a = ?, b = ? WHERE c = ?",
			expected:   "UPDATE t SET a = $1, b = $2 WHERE c = $3",
		},
		{
			name:       "PostgreSQL with no placeholders",
			driverName: "postgres",
			query:      "SELECT 1",
			expected:   "SELECT 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rebind(tt.driverName, tt.query))
		})
	}
}

func TestUpsertConflictClause(t *testing.T) {
	keys := []string{"message_id"}
	sets := []string{"lock_token", "status"}

	t.Run("MySQL", func(t *testing.T) {
		clause := upsertConflictClause("mysql", keys, sets)
		assert.Equal(t, " ON DUPLICATE KEY UPDATE lock_token = VALUES(lock_token), status = VALUES(status)", clause)
	})

	t.Run("PostgreSQL", func(t *testing.T) {
		clause := upsertConflictClause("postgres", keys, sets)
		assert.Equal(t, " ON CONFLICT (message_id) DO UPDATE SET lock_token = excluded.lock_token, status = excluded.status", clause)
	})

	t.Run("SQLite uses ON CONFLICT", func(t *testing.T) {
		clause := upsertConflictClause("sqlite3", keys, sets)
		assert.Equal(t, " ON CONFLICT (message_id) DO UPDATE SET lock_token = excluded.lock_token, status = excluded.status", clause)
	})
}
