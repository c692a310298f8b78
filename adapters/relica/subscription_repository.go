package relica

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coregx/relaybus"
	"github.com/coregx/relaybus/model"
	"github.com/coregx/relica"
)

// SubscriptionRepository implements relaybus.SubscriptionRepository using Relica.
type SubscriptionRepository struct {
	db          *relica.DB
	sqlDB       *sql.DB
	driverName  string
	tablePrefix string
}

// NewSubscriptionRepository creates a new SubscriptionRepository with default table prefix.
func NewSubscriptionRepository(sqlDB *sql.DB, driverName string) *SubscriptionRepository {
	return NewSubscriptionRepositoryWithPrefix(sqlDB, driverName, "relaybus_")
}

// NewSubscriptionRepositoryWithPrefix creates a new SubscriptionRepository with custom table prefix.
func NewSubscriptionRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *SubscriptionRepository {
	return &SubscriptionRepository{
		db:          relica.WrapDB(sqlDB, driverName),
		sqlDB:       sqlDB,
		driverName:  driverName,
		tablePrefix: prefix,
	}
}

func (r *SubscriptionRepository) tableName() string {
	return r.tablePrefix + "subscription"
}

// Load retrieves a subscription by ID.
func (r *SubscriptionRepository) Load(ctx context.Context, id int64) (model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("id = ?", id).One(&sub)
	if errors.Is(err, sql.ErrNoRows) {
		return sub, relaybus.ErrNoData
	}
	if err != nil {
		return sub, relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to load subscription", err)
	}
	return sub, nil
}

// Upsert atomically inserts or updates the unique
// (adapter_instance_id, interface_name) row and returns the stored state.
func (r *SubscriptionRepository) Upsert(ctx context.Context, m model.Subscription) (model.Subscription, error) {
	query := "INSERT INTO " + r.tableName() +
		" (adapter_instance_id, interface_name, adapter_name, filter_criteria, enabled, created_at, updated_at)" +
		" VALUES (?, ?, ?, ?, ?, ?, ?)" +
		upsertConflictClause(r.driverName,
			[]string{"adapter_instance_id", "interface_name"},
			[]string{"adapter_name", "filter_criteria", "enabled", "updated_at"})

	_, err := r.sqlDB.ExecContext(ctx, rebind(r.driverName, query),
		m.AdapterInstanceID, m.InterfaceName, m.AdapterName, m.FilterCriteria,
		m.Enabled, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return m, relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to upsert subscription", err)
	}

	// Re-read for the authoritative row (ID and original created_at).
	return r.FindByKey(ctx, m.AdapterInstanceID, m.InterfaceName)
}

// FindByKey retrieves the subscription for one adapter instance on one interface.
func (r *SubscriptionRepository) FindByKey(ctx context.Context, adapterInstanceID, interfaceName string) (model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).
		Where("adapter_instance_id = ?", adapterInstanceID).
		Where("interface_name = ?", interfaceName).
		One(&sub)
	if errors.Is(err, sql.ErrNoRows) {
		return sub, relaybus.ErrNoData
	}
	if err != nil {
		return sub, relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to find subscription by key", err)
	}
	return sub, nil
}

// FindByInterface retrieves all enabled subscriptions for an interface.
func (r *SubscriptionRepository) FindByInterface(ctx context.Context, interfaceName string) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).
		Where("interface_name = ?", interfaceName).
		Where("enabled = ?", true).
		OrderBy("adapter_instance_id ASC").
		All(&subs)
	if err != nil {
		return nil, relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to find subscriptions by interface", err)
	}
	if len(subs) == 0 {
		return nil, relaybus.ErrNoData
	}
	return subs, nil
}

// FindByAdapter retrieves all enabled subscriptions for one adapter instance.
func (r *SubscriptionRepository) FindByAdapter(ctx context.Context, adapterInstanceID string) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).
		Where("adapter_instance_id = ?", adapterInstanceID).
		Where("enabled = ?", true).
		OrderBy("interface_name ASC").
		All(&subs)
	if err != nil {
		return nil, relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to find subscriptions by adapter", err)
	}
	if len(subs) == 0 {
		return nil, relaybus.ErrNoData
	}
	return subs, nil
}

// SetEnabled updates the enabled flag for a subscription.
func (r *SubscriptionRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	query := "UPDATE " + r.tableName() + " SET enabled = ?, updated_at = ? WHERE id = ?"
	res, err := r.sqlDB.ExecContext(ctx, rebind(r.driverName, query), enabled, time.Now(), id)
	if err != nil {
		return relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to toggle subscription", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to toggle subscription", err)
	}
	if affected == 0 {
		// MySQL reports changed rows rather than matched rows unless the
		// connection sets clientFoundRows, so setting the flag to its
		// current value can report zero. Distinguish that from a missing id.
		if _, lerr := r.Load(ctx, id); lerr != nil {
			return lerr
		}
	}
	return nil
}

// Delete permanently removes a subscription.
func (r *SubscriptionRepository) Delete(ctx context.Context, id int64) error {
	query := "DELETE FROM " + r.tableName() + " WHERE id = ?"
	res, err := r.sqlDB.ExecContext(ctx, rebind(r.driverName, query), id)
	if err != nil {
		return relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to delete subscription", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to delete subscription", err)
	}
	if affected == 0 {
		return relaybus.ErrNoData
	}
	return nil
}
