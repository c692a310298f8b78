package relaybus

import (
	"context"
	"fmt"

	"github.com/coregx/relaybus/model"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// SubscriptionRegistry manages the persistent mapping of adapter instances
// to filtered subscriptions on named interfaces.
//
// Key operations:
//   - Upsert: create or update the unique (adapter instance, interface) row
//   - ListByInterface / ListByAdapter: query enabled subscriptions
//   - SetEnabled: idempotent enable/disable toggle
//   - Delete: idempotent explicit removal
//
// The registry holds no cache: the durable store is the single source of
// truth so that recovery after a restart sees exactly the persisted state.
//
// Thread safety: Safe for concurrent use; uniqueness under concurrent
// upserts is enforced by the store's atomic insert-or-update.
type SubscriptionRegistry struct {
	subscriptionRepo SubscriptionRepository
	notifications    NotificationService
	logger           Logger
}

// SubscriptionRegistryOption is a function that configures a SubscriptionRegistry.
// Used with the Options Pattern for flexible service construction.
type SubscriptionRegistryOption func(*SubscriptionRegistry) error

// NewSubscriptionRegistry creates a new SubscriptionRegistry with the provided options.
//
// Required options:
//   - WithRegistryRepository: subscription repository
//   - WithRegistryLogger: logger instance
//
// Optional options:
//   - WithRegistryNotifications: notification hooks (default: no-op)
func NewSubscriptionRegistry(opts ...SubscriptionRegistryOption) (*SubscriptionRegistry, error) {
	r := &SubscriptionRegistry{
		notifications: &NoOpNotificationService{},
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply registry option", err)
		}
	}

	// Validate required dependencies
	if r.subscriptionRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "SubscriptionRepository is required (use WithRegistryRepository)")
	}
	if r.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithRegistryLogger)")
	}

	return r, nil
}

// WithRegistryRepository sets the required repository dependency.
//
// This is a required option for NewSubscriptionRegistry.
func WithRegistryRepository(repo SubscriptionRepository) SubscriptionRegistryOption {
	return func(r *SubscriptionRegistry) error {
		if repo == nil {
			return fmt.Errorf("repo cannot be nil")
		}
		r.subscriptionRepo = repo
		return nil
	}
}

// WithRegistryLogger sets the logger instance.
//
// This is a required option for NewSubscriptionRegistry.
func WithRegistryLogger(logger Logger) SubscriptionRegistryOption {
	return func(r *SubscriptionRegistry) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		r.logger = logger
		return nil
	}
}

// WithRegistryNotifications sets an optional notification service.
func WithRegistryNotifications(service NotificationService) SubscriptionRegistryOption {
	return func(r *SubscriptionRegistry) error {
		if service == nil {
			return fmt.Errorf("notification service cannot be nil")
		}
		r.notifications = service
		return nil
	}
}

// UpsertRequest represents a request to enable an adapter instance on an
// interface. FilterCriteria is optional and stored verbatim.
type UpsertRequest struct {
	AdapterInstanceID string // Stable adapter endpoint identifier (required)
	InterfaceName     string // Interface to subscribe to (required)
	AdapterName       string // Adapter type name (required)
	FilterCriteria    string // Opaque broker-interpreted predicate (optional)
}

// Validate checks the request fields.
func (m UpsertRequest) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.AdapterInstanceID, validation.Required, validation.Length(1, 255)),
		validation.Field(&m.InterfaceName, validation.Required, validation.Length(1, 255)),
		validation.Field(&m.AdapterName, validation.Required, validation.Length(1, 255)),
	)
}

// Upsert creates or updates the unique (AdapterInstanceID, InterfaceName)
// subscription, always setting Enabled=true. Calling Upsert twice for the
// same pair updates FilterCriteria and UpdatedAt in place; it never
// creates a duplicate row.
//
// Returns the stored subscription, or a validation error if identifiers
// are missing.
func (r *SubscriptionRegistry) Upsert(ctx context.Context, req UpsertRequest) (*model.Subscription, error) {
	if err := req.Validate(); err != nil {
		return nil, NewErrorWithCause(ErrCodeValidation, "invalid subscription request", err)
	}

	subscription := model.NewSubscription(req.AdapterInstanceID, req.InterfaceName, req.AdapterName, req.FilterCriteria)
	subscription, err := r.subscriptionRepo.Upsert(ctx, subscription)
	if err != nil {
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to upsert subscription", err)
	}

	r.logger.Infof("Subscription upserted: id=%d, adapter=%s, interface=%s, filter=%q",
		subscription.ID, req.AdapterInstanceID, req.InterfaceName, req.FilterCriteria)

	if err := r.notifications.NotifySubscriptionProvisioned(ctx, subscription); err != nil {
		r.logger.Warnf("Failed to send subscription notification: %v", err)
	}

	return &subscription, nil
}

// ListByInterface returns all enabled subscriptions for an interface.
// Routing uses this to determine fan-out. Returns empty slice if no
// subscription is enabled (not an error).
func (r *SubscriptionRegistry) ListByInterface(ctx context.Context, interfaceName string) ([]model.Subscription, error) {
	if interfaceName == "" {
		return nil, NewError(ErrCodeValidation, "interface name is required")
	}

	subscriptions, err := r.subscriptionRepo.FindByInterface(ctx, interfaceName)
	if err != nil {
		if IsNoData(err) {
			return []model.Subscription{}, nil
		}
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to list subscriptions by interface", err)
	}

	return subscriptions, nil
}

// ListByAdapter returns all enabled subscriptions for one adapter instance.
// Returns empty slice if none found (not an error).
func (r *SubscriptionRegistry) ListByAdapter(ctx context.Context, adapterInstanceID string) ([]model.Subscription, error) {
	if adapterInstanceID == "" {
		return nil, NewError(ErrCodeValidation, "adapter instance id is required")
	}

	subscriptions, err := r.subscriptionRepo.FindByAdapter(ctx, adapterInstanceID)
	if err != nil {
		if IsNoData(err) {
			return []model.Subscription{}, nil
		}
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to list subscriptions by adapter", err)
	}

	return subscriptions, nil
}

// SetEnabled toggles a subscription on or off. Disabled subscriptions stop
// appearing in ListByInterface results but keep their row, so re-enabling
// restores delivery.
//
// Idempotent: toggling an unknown id is a logged no-op, not an error.
func (r *SubscriptionRegistry) SetEnabled(ctx context.Context, subscriptionID int64, enabled bool) error {
	if subscriptionID == 0 {
		return NewError(ErrCodeValidation, "subscription id is required")
	}

	err := r.subscriptionRepo.SetEnabled(ctx, subscriptionID, enabled)
	if err != nil {
		if IsNoData(err) {
			r.logger.Warnf("SetEnabled no-op, subscription not found: id=%d", subscriptionID)
			return nil
		}
		return NewErrorWithCause(ErrCodeDatabase, "failed to toggle subscription", err)
	}

	r.logger.Infof("Subscription toggled: id=%d, enabled=%t", subscriptionID, enabled)
	return nil
}

// Delete removes a subscription row entirely. Unlike SetEnabled(false),
// the registry forgets the filter criteria and history.
//
// Idempotent: deleting an unknown id is a logged no-op, not an error.
func (r *SubscriptionRegistry) Delete(ctx context.Context, subscriptionID int64) error {
	if subscriptionID == 0 {
		return NewError(ErrCodeValidation, "subscription id is required")
	}

	subscription, err := r.subscriptionRepo.Load(ctx, subscriptionID)
	if err != nil && !IsNoData(err) {
		return NewErrorWithCause(ErrCodeDatabase, "failed to load subscription", err)
	}

	err = r.subscriptionRepo.Delete(ctx, subscriptionID)
	if err != nil {
		if IsNoData(err) {
			r.logger.Warnf("Delete no-op, subscription not found: id=%d", subscriptionID)
			return nil
		}
		return NewErrorWithCause(ErrCodeDatabase, "failed to delete subscription", err)
	}

	r.logger.Infof("Subscription deleted: id=%d, adapter=%s, interface=%s",
		subscriptionID, subscription.AdapterInstanceID, subscription.InterfaceName)

	if err := r.notifications.NotifySubscriptionRemoved(ctx, subscription); err != nil {
		r.logger.Warnf("Failed to send subscription notification: %v", err)
	}

	return nil
}

// Get retrieves a single subscription by ID.
// Returns ErrNoData-coded error if not found.
func (r *SubscriptionRegistry) Get(ctx context.Context, subscriptionID int64) (*model.Subscription, error) {
	if subscriptionID == 0 {
		return nil, NewError(ErrCodeValidation, "subscription id is required")
	}

	subscription, err := r.subscriptionRepo.Load(ctx, subscriptionID)
	if err != nil {
		if IsNoData(err) {
			return nil, err
		}
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to load subscription", err)
	}

	return &subscription, nil
}
