package relaybus

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/coregx/relaybus/model"
	"github.com/coregx/relaybus/retry"
)

// fakeSubscriptionRepo is an in-memory SubscriptionRepository for tests.
type fakeSubscriptionRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]model.Subscription

	failWith error // returned by every call when set
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{rows: make(map[int64]model.Subscription)}
}

func (r *fakeSubscriptionRepo) Load(_ context.Context, id int64) (model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return model.Subscription{}, r.failWith
	}
	sub, ok := r.rows[id]
	if !ok {
		return model.Subscription{}, ErrNoData
	}
	return sub, nil
}

func (r *fakeSubscriptionRepo) Upsert(_ context.Context, m model.Subscription) (model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return model.Subscription{}, r.failWith
	}
	for id, existing := range r.rows {
		if existing.AdapterInstanceID == m.AdapterInstanceID && existing.InterfaceName == m.InterfaceName {
			m.ID = id
			m.CreatedAt = existing.CreatedAt
			r.rows[id] = m
			return m, nil
		}
	}
	r.nextID++
	m.ID = r.nextID
	r.rows[m.ID] = m
	return m, nil
}

func (r *fakeSubscriptionRepo) FindByKey(_ context.Context, adapterInstanceID, interfaceName string) (model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.rows {
		if sub.AdapterInstanceID == adapterInstanceID && sub.InterfaceName == interfaceName {
			return sub, nil
		}
	}
	return model.Subscription{}, ErrNoData
}

func (r *fakeSubscriptionRepo) FindByInterface(_ context.Context, interfaceName string) ([]model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	var subs []model.Subscription
	for _, sub := range r.rows {
		if sub.InterfaceName == interfaceName && sub.Enabled {
			subs = append(subs, sub)
		}
	}
	if len(subs) == 0 {
		return nil, ErrNoData
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].AdapterInstanceID < subs[j].AdapterInstanceID })
	return subs, nil
}

func (r *fakeSubscriptionRepo) FindByAdapter(_ context.Context, adapterInstanceID string) ([]model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	var subs []model.Subscription
	for _, sub := range r.rows {
		if sub.AdapterInstanceID == adapterInstanceID && sub.Enabled {
			subs = append(subs, sub)
		}
	}
	if len(subs) == 0 {
		return nil, ErrNoData
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].InterfaceName < subs[j].InterfaceName })
	return subs, nil
}

func (r *fakeSubscriptionRepo) SetEnabled(_ context.Context, id int64, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.rows[id]
	if !ok {
		return ErrNoData
	}
	sub.Enabled = enabled
	sub.UpdatedAt = time.Now()
	r.rows[id] = sub
	return nil
}

func (r *fakeSubscriptionRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return ErrNoData
	}
	delete(r.rows, id)
	return nil
}

// fakeLockRepo is an in-memory DeliveryLockRepository for tests. It mirrors
// the conditional-update semantics of the SQL adapter.
type fakeLockRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]model.DeliveryLock

	failWith     error // returned by every call when set
	upsertErrs   []error
	deleteErrSet error

	beforeTransition func() // runs before Transition applies, simulating a racing writer
	expireErrAfter   error  // returned by ExpireOverdue alongside the rows it transitioned
}

func newFakeLockRepo() *fakeLockRepo {
	return &fakeLockRepo{rows: make(map[string]model.DeliveryLock)}
}

func (r *fakeLockRepo) FindByMessageID(_ context.Context, messageID string) (model.DeliveryLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return model.DeliveryLock{}, r.failWith
	}
	lock, ok := r.rows[messageID]
	if !ok {
		return model.DeliveryLock{}, ErrNoData
	}
	return lock, nil
}

func (r *fakeLockRepo) Upsert(_ context.Context, m model.DeliveryLock) (model.DeliveryLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.upsertErrs) > 0 {
		err := r.upsertErrs[0]
		r.upsertErrs = r.upsertErrs[1:]
		if err != nil {
			return model.DeliveryLock{}, err
		}
	} else if r.failWith != nil {
		return model.DeliveryLock{}, r.failWith
	}
	if existing, ok := r.rows[m.MessageID]; ok {
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
	} else {
		r.nextID++
		m.ID = r.nextID
	}
	r.rows[m.MessageID] = m
	return m, nil
}

func (r *fakeLockRepo) Renew(_ context.Context, messageID, newToken string, newExpiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return false, r.failWith
	}
	lock, ok := r.rows[messageID]
	if !ok || lock.Status != model.LockStatusActive || lock.LockExpiresAt.After(newExpiresAt) {
		return false, nil
	}
	lock.LockToken = newToken
	lock.LockExpiresAt = newExpiresAt
	lock.LastRenewedAt = sql.NullTime{Time: time.Now(), Valid: true}
	lock.RenewalCount++
	r.rows[messageID] = lock
	return true, nil
}

func (r *fakeLockRepo) Transition(_ context.Context, messageID string, status model.LockStatus, reason string) (bool, error) {
	if r.beforeTransition != nil {
		r.beforeTransition()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return false, r.failWith
	}
	lock, ok := r.rows[messageID]
	if !ok || lock.Status != model.LockStatusActive {
		return false, nil
	}
	lock.Status = status
	if status.IsTerminal() {
		lock.CompletionReason = reason
		lock.CompletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	} else {
		lock.CompletionReason = ""
		lock.CompletedAt = sql.NullTime{}
	}
	r.rows[messageID] = lock
	return true, nil
}

func (r *fakeLockRepo) FindNeedingRenewal(_ context.Context, threshold time.Duration) ([]model.DeliveryLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	deadline := time.Now().Add(threshold)
	var locks []model.DeliveryLock
	for _, lock := range r.rows {
		if lock.Status == model.LockStatusActive && !lock.LockExpiresAt.After(deadline) {
			locks = append(locks, lock)
		}
	}
	if len(locks) == 0 {
		return nil, ErrNoData
	}
	sort.Slice(locks, func(i, j int) bool { return locks[i].LockExpiresAt.Before(locks[j].LockExpiresAt) })
	return locks, nil
}

func (r *fakeLockRepo) ExpireOverdue(_ context.Context, reason string) ([]model.DeliveryLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	now := time.Now()
	var expired []model.DeliveryLock
	for id, lock := range r.rows {
		if lock.Status == model.LockStatusActive && !lock.LockExpiresAt.After(now) {
			lock.Status = model.LockStatusExpired
			lock.CompletionReason = reason
			lock.CompletedAt = sql.NullTime{Time: now, Valid: true}
			r.rows[id] = lock
			expired = append(expired, lock)
		}
	}
	if len(expired) == 0 {
		return nil, ErrNoData
	}
	if r.expireErrAfter != nil {
		return expired, r.expireErrAfter
	}
	return expired, nil
}

func (r *fakeLockRepo) DeleteTerminalOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErrSet != nil {
		return 0, r.deleteErrSet
	}
	if r.failWith != nil {
		return 0, r.failWith
	}
	removed := 0
	for id, lock := range r.rows {
		if lock.Status.IsTerminal() && lock.CompletedAt.Valid && lock.CompletedAt.Time.Before(cutoff) {
			delete(r.rows, id)
			removed++
		}
	}
	return removed, nil
}

func (r *fakeLockRepo) get(messageID string) (model.DeliveryLock, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.rows[messageID]
	return lock, ok
}

// fakeDeadLetterReader serves a fixed dead-letter set for tests.
type fakeDeadLetterReader struct {
	messages []model.DeadLetterMessage
	failWith error
}

func (r *fakeDeadLetterReader) ReadDeadLetterMessages(_ context.Context, interfaceName string) ([]model.DeadLetterMessage, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	var out []model.DeadLetterMessage
	for _, msg := range r.messages {
		if interfaceName == "" || msg.InterfaceName == interfaceName {
			out = append(out, msg)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

// fakeBrokerAdmin records broker administration calls for tests.
type fakeBrokerAdmin struct {
	mu            sync.Mutex
	topics        map[string]bool
	subscriptions map[string]SubscriptionSettings

	createTopicCalls        int
	createSubscriptionCalls int
	transientFailures       int // fail this many calls before succeeding
}

func newFakeBrokerAdmin() *fakeBrokerAdmin {
	return &fakeBrokerAdmin{
		topics:        make(map[string]bool),
		subscriptions: make(map[string]SubscriptionSettings),
	}
}

func (a *fakeBrokerAdmin) consumeFailure() error {
	if a.transientFailures > 0 {
		a.transientFailures--
		return NewError(ErrCodeTransient, "broker temporarily unavailable")
	}
	return nil
}

func (a *fakeBrokerAdmin) TopicExists(_ context.Context, topicName string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.consumeFailure(); err != nil {
		return false, err
	}
	return a.topics[topicName], nil
}

func (a *fakeBrokerAdmin) CreateTopic(_ context.Context, topicName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.consumeFailure(); err != nil {
		return err
	}
	a.createTopicCalls++
	if a.topics[topicName] {
		return ErrBrokerEntityExists
	}
	a.topics[topicName] = true
	return nil
}

func (a *fakeBrokerAdmin) SubscriptionExists(_ context.Context, topicName, subscriptionName string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.consumeFailure(); err != nil {
		return false, err
	}
	_, ok := a.subscriptions[topicName+"/"+subscriptionName]
	return ok, nil
}

func (a *fakeBrokerAdmin) CreateSubscription(_ context.Context, topicName, subscriptionName string, settings SubscriptionSettings) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.consumeFailure(); err != nil {
		return err
	}
	a.createSubscriptionCalls++
	key := topicName + "/" + subscriptionName
	if _, ok := a.subscriptions[key]; ok {
		return ErrBrokerEntityExists
	}
	a.subscriptions[key] = settings
	return nil
}

func (a *fakeBrokerAdmin) DeleteSubscription(_ context.Context, topicName, subscriptionName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.consumeFailure(); err != nil {
		return err
	}
	key := topicName + "/" + subscriptionName
	if _, ok := a.subscriptions[key]; !ok {
		return ErrBrokerEntityNotFound
	}
	delete(a.subscriptions, key)
	return nil
}

// fakeLockRenewer scripts broker renewal outcomes per message for tests.
type fakeLockRenewer struct {
	mu        sync.Mutex
	extendBy  time.Duration
	lostLocks map[string]bool
	failWith  error
	calls     int
}

func newFakeLockRenewer(extendBy time.Duration) *fakeLockRenewer {
	return &fakeLockRenewer{extendBy: extendBy, lostLocks: make(map[string]bool)}
}

func (f *fakeLockRenewer) RenewMessageLock(_ context.Context, _, _, messageID, lockToken string) (string, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failWith != nil {
		return "", time.Time{}, f.failWith
	}
	if f.lostLocks[messageID] {
		return "", time.Time{}, ErrLockLost
	}
	return lockToken + "-renewed", time.Now().Add(f.extendBy), nil
}

// thresholdAlert captures one NotifyDeadLetterThresholdExceeded call.
type thresholdAlert struct {
	interfaceName string
	count         int
	threshold     int
}

// captureNotifications records notification calls for tests.
type captureNotifications struct {
	mu              sync.Mutex
	expiredLocks    []model.DeliveryLock
	provisioned     []model.Subscription
	removed         []model.Subscription
	thresholdAlerts []thresholdAlert
}

func (c *captureNotifications) NotifyLockExpired(_ context.Context, lock model.DeliveryLock) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expiredLocks = append(c.expiredLocks, lock)
	return nil
}

func (c *captureNotifications) NotifyDeadLetterThresholdExceeded(_ context.Context, interfaceName string, count, threshold int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thresholdAlerts = append(c.thresholdAlerts, thresholdAlert{interfaceName, count, threshold})
	return nil
}

func (c *captureNotifications) NotifySubscriptionProvisioned(_ context.Context, subscription model.Subscription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.provisioned = append(c.provisioned, subscription)
	return nil
}

func (c *captureNotifications) NotifySubscriptionRemoved(_ context.Context, subscription model.Subscription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = append(c.removed, subscription)
	return nil
}

// fastPolicy keeps retry sleeps negligible in tests.
func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, MaxJitter: 0}
}
