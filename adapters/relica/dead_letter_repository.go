package relica

import (
	"context"
	"database/sql"

	"github.com/coregx/relaybus"
	"github.com/coregx/relaybus/model"
	"github.com/coregx/relica"
)

// DeadLetterRepository implements relaybus.DeadLetterReader using Relica.
// It is read-only; rows are written by the broker's dead-letter path.
type DeadLetterRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewDeadLetterRepository creates a new DeadLetterRepository with default table prefix.
func NewDeadLetterRepository(sqlDB *sql.DB, driverName string) *DeadLetterRepository {
	return NewDeadLetterRepositoryWithPrefix(sqlDB, driverName, "relaybus_")
}

// NewDeadLetterRepositoryWithPrefix creates a new DeadLetterRepository with custom table prefix.
func NewDeadLetterRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *DeadLetterRepository {
	return &DeadLetterRepository{
		db:          relica.WrapDB(sqlDB, driverName),
		tablePrefix: prefix,
	}
}

func (r *DeadLetterRepository) tableName() string {
	return r.tablePrefix + "dead_letter"
}

// ReadDeadLetterMessages retrieves dead letters, optionally filtered by
// interface (empty string = all), newest first.
func (r *DeadLetterRepository) ReadDeadLetterMessages(ctx context.Context, interfaceName string) ([]model.DeadLetterMessage, error) {
	var messages []model.DeadLetterMessage
	var err error
	if interfaceName != "" {
		err = r.db.WithContext(ctx).Select("*").
			From(r.tableName()).
			Where("interface_name = ?", interfaceName).
			OrderBy("created_at DESC").
			All(&messages)
	} else {
		err = r.db.WithContext(ctx).Select("*").
			From(r.tableName()).
			OrderBy("created_at DESC").
			All(&messages)
	}
	if err != nil {
		return nil, relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to read dead letters", err)
	}
	if len(messages) == 0 {
		return nil, relaybus.ErrNoData
	}
	return messages, nil
}
