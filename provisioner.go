package relaybus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coregx/relaybus/retry"
)

// TopicName returns the deterministic broker topic name for an interface.
func TopicName(interfaceName string) string {
	return "interface-" + strings.ToLower(interfaceName)
}

// SubscriptionName returns the deterministic broker subscription name for
// an adapter instance.
func SubscriptionName(adapterInstanceID string) string {
	return "destination-" + strings.ToLower(adapterInstanceID)
}

// TopicSubscriptionProvisioner materializes registry entries as broker
// resources: one durable topic per interface, one durable subscription per
// (interface, adapter instance) under that topic. Broker-level fan-out
// then implements the registry's routing intent.
//
// All provisioning calls wrap broker administration requests in the retry
// policy for transient errors; definitional conflicts ("already exists"
// on create) are treated as success, never retried.
//
// Thread safety: Safe for concurrent use. The broker administration
// client is stateless per call; no caller-side synchronization is needed.
type TopicSubscriptionProvisioner struct {
	admin    BrokerAdmin
	settings SubscriptionSettings
	policy   retry.Policy
	logger   Logger
}

// ProvisionerOption is a function that configures a TopicSubscriptionProvisioner.
type ProvisionerOption func(*TopicSubscriptionProvisioner) error

// NewTopicSubscriptionProvisioner creates a provisioner with the provided options.
//
// Required options:
//   - WithBrokerAdmin: broker administration client
//   - WithProvisionerLogger: logger instance
//
// Optional options:
//   - WithSubscriptionSettings: durable-subscription parameters
//     (default: DefaultSubscriptionSettings())
//   - WithProvisionerRetryPolicy: retry policy (default: retry.DefaultPolicy())
func NewTopicSubscriptionProvisioner(opts ...ProvisionerOption) (*TopicSubscriptionProvisioner, error) {
	p := &TopicSubscriptionProvisioner{
		settings: DefaultSubscriptionSettings(),
		policy:   retry.DefaultPolicy(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply provisioner option", err)
		}
	}

	// Validate required dependencies
	if p.admin == nil {
		return nil, NewError(ErrCodeConfiguration, "BrokerAdmin is required (use WithBrokerAdmin)")
	}
	if p.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithProvisionerLogger)")
	}

	return p, nil
}

// WithBrokerAdmin sets the required broker administration client.
//
// This is a required option for NewTopicSubscriptionProvisioner.
func WithBrokerAdmin(admin BrokerAdmin) ProvisionerOption {
	return func(p *TopicSubscriptionProvisioner) error {
		if admin == nil {
			return fmt.Errorf("admin cannot be nil")
		}
		p.admin = admin
		return nil
	}
}

// WithProvisionerLogger sets the logger instance.
//
// This is a required option for NewTopicSubscriptionProvisioner.
func WithProvisionerLogger(logger Logger) ProvisionerOption {
	return func(p *TopicSubscriptionProvisioner) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		p.logger = logger
		return nil
	}
}

// WithSubscriptionSettings sets the durable-subscription parameters
// applied when subscriptions are created.
func WithSubscriptionSettings(settings SubscriptionSettings) ProvisionerOption {
	return func(p *TopicSubscriptionProvisioner) error {
		if settings.LockDuration <= 0 {
			return fmt.Errorf("lock duration must be > 0")
		}
		if settings.MaxDeliveryCount <= 0 {
			return fmt.Errorf("max delivery count must be > 0")
		}
		p.settings = settings
		return nil
	}
}

// WithProvisionerRetryPolicy sets a custom retry policy for broker calls.
func WithProvisionerRetryPolicy(policy retry.Policy) ProvisionerOption {
	return func(p *TopicSubscriptionProvisioner) error {
		p.policy = policy
		return nil
	}
}

// EnsureTopic idempotently creates the broker topic for an interface.
// Calling it for an existing topic is a no-op success.
func (p *TopicSubscriptionProvisioner) EnsureTopic(ctx context.Context, interfaceName string) error {
	if interfaceName == "" {
		return NewError(ErrCodeValidation, "interface name is required")
	}

	topicName := TopicName(interfaceName)

	err := p.policy.ExecuteWithPredicate(ctx, func(ctx context.Context) error {
		exists, err := p.admin.TopicExists(ctx, topicName)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		if err := p.admin.CreateTopic(ctx, topicName); err != nil {
			if errors.Is(err, ErrBrokerEntityExists) {
				// Lost a create race; the topic is there either way.
				return nil
			}
			return err
		}
		p.logger.Infof("Topic created: %s (interface=%s)", topicName, interfaceName)
		return nil
	}, p.shouldRetry)
	if err != nil {
		return NewErrorWithCause(ErrCodeBroker, fmt.Sprintf("failed to ensure topic %s", topicName), err)
	}

	return nil
}

// EnsureSubscription idempotently creates the broker subscription binding
// an adapter instance to an interface topic, creating the topic first if
// needed. The subscription is configured with the provisioner's
// SubscriptionSettings plus the given filter criteria (opaque, passed to
// the broker verbatim).
func (p *TopicSubscriptionProvisioner) EnsureSubscription(ctx context.Context, interfaceName, adapterInstanceID, filterCriteria string) error {
	if interfaceName == "" {
		return NewError(ErrCodeValidation, "interface name is required")
	}
	if adapterInstanceID == "" {
		return NewError(ErrCodeValidation, "adapter instance id is required")
	}

	if err := p.EnsureTopic(ctx, interfaceName); err != nil {
		return err
	}

	topicName := TopicName(interfaceName)
	subscriptionName := SubscriptionName(adapterInstanceID)
	settings := p.settings
	settings.FilterCriteria = filterCriteria

	err := p.policy.ExecuteWithPredicate(ctx, func(ctx context.Context) error {
		exists, err := p.admin.SubscriptionExists(ctx, topicName, subscriptionName)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		if err := p.admin.CreateSubscription(ctx, topicName, subscriptionName, settings); err != nil {
			if errors.Is(err, ErrBrokerEntityExists) {
				return nil
			}
			return err
		}
		p.logger.Infof("Subscription created: %s under %s (adapter=%s, lock=%v, maxDelivery=%d)",
			subscriptionName, topicName, adapterInstanceID, settings.LockDuration, settings.MaxDeliveryCount)
		return nil
	}, p.shouldRetry)
	if err != nil {
		return NewErrorWithCause(ErrCodeBroker,
			fmt.Sprintf("failed to ensure subscription %s under %s", subscriptionName, topicName), err)
	}

	return nil
}

// DeleteSubscription removes the broker subscription for an adapter
// instance on an interface. Idempotent: deleting a missing subscription
// is a logged no-op.
func (p *TopicSubscriptionProvisioner) DeleteSubscription(ctx context.Context, interfaceName, adapterInstanceID string) error {
	if interfaceName == "" {
		return NewError(ErrCodeValidation, "interface name is required")
	}
	if adapterInstanceID == "" {
		return NewError(ErrCodeValidation, "adapter instance id is required")
	}

	topicName := TopicName(interfaceName)
	subscriptionName := SubscriptionName(adapterInstanceID)

	err := p.policy.ExecuteWithPredicate(ctx, func(ctx context.Context) error {
		if err := p.admin.DeleteSubscription(ctx, topicName, subscriptionName); err != nil {
			if errors.Is(err, ErrBrokerEntityNotFound) {
				p.logger.Warnf("DeleteSubscription no-op, not found: %s under %s", subscriptionName, topicName)
				return nil
			}
			return err
		}
		p.logger.Infof("Subscription deleted: %s under %s", subscriptionName, topicName)
		return nil
	}, p.shouldRetry)
	if err != nil {
		return NewErrorWithCause(ErrCodeBroker,
			fmt.Sprintf("failed to delete subscription %s under %s", subscriptionName, topicName), err)
	}

	return nil
}

// Exists reports whether the broker subscription for an adapter instance
// on an interface is present.
func (p *TopicSubscriptionProvisioner) Exists(ctx context.Context, interfaceName, adapterInstanceID string) (bool, error) {
	if interfaceName == "" {
		return false, NewError(ErrCodeValidation, "interface name is required")
	}
	if adapterInstanceID == "" {
		return false, NewError(ErrCodeValidation, "adapter instance id is required")
	}

	topicName := TopicName(interfaceName)
	subscriptionName := SubscriptionName(adapterInstanceID)

	var exists bool
	err := p.policy.ExecuteWithPredicate(ctx, func(ctx context.Context) error {
		var err error
		exists, err = p.admin.SubscriptionExists(ctx, topicName, subscriptionName)
		return err
	}, p.shouldRetry)
	if err != nil {
		return false, NewErrorWithCause(ErrCodeBroker,
			fmt.Sprintf("failed to check subscription %s under %s", subscriptionName, topicName), err)
	}

	return exists, nil
}

// shouldRetry retries transient infrastructure failures only.
// Definitional outcomes (already exists, not found, validation) are final.
func (p *TopicSubscriptionProvisioner) shouldRetry(err error) bool {
	if errors.Is(err, ErrBrokerEntityExists) || errors.Is(err, ErrBrokerEntityNotFound) {
		return false
	}
	return IsTransientCode(err) || retry.IsTransient(err)
}
