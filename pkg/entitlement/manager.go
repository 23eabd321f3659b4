package entitlement

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"musegen_backend/internal/model"
	"musegen_backend/pkg/store"
)

const subscriptionKeyPrefix = "subscription-"

// ErrTierNotPurchasable is returned when an upgrade names FREE or TRIAL.
// The trial is auto-granted exactly once and never selectable.
var ErrTierNotPurchasable = errors.New("entitlement: tier is not purchasable")

// Allowance is the answer to "may this user consume one generation unit".
type Allowance struct {
	Allowed   bool       `json:"allowed"`
	Remaining int        `json:"remaining"`
	Limit     int        `json:"limit"`
	Tier      model.Tier `json:"tier"`
}

// Manager is the single source of truth for subscription, trial and quota
// state. All state lives in the key/value store; there is no background
// timer — every read reconciles day rollover and trial expiry lazily.
type Manager struct {
	store *store.Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-user, guards check+increment
}

func NewManager(s *store.Store) *Manager {
	return &Manager{
		store: s,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

func SubscriptionKey(username string) string {
	return subscriptionKeyPrefix + username
}

func (m *Manager) lockFor(username string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[username]
	if !ok {
		l = &sync.Mutex{}
		m.locks[username] = l
	}
	return l
}

func (m *Manager) dateString(t time.Time) string {
	return t.Format("2006-01-02")
}

// GetSubscription loads the user's record, creating it on first access
// (auto-enrolled trial) and correcting stale state before returning it.
func (m *Manager) GetSubscription(username string) (*model.UserSubscription, error) {
	l := m.lockFor(username)
	l.Lock()
	defer l.Unlock()
	return m.getSubscriptionLocked(username)
}

func (m *Manager) getSubscriptionLocked(username string) (*model.UserSubscription, error) {
	key := SubscriptionKey(username)

	var sub model.UserSubscription
	found, err := m.store.GetJSON(key, &sub)
	if err != nil {
		return nil, err
	}

	now := m.now()

	// New user: start the 3-day trial immediately and mark it used so it
	// can never be re-entered.
	if !found {
		expiry := now.Add(TrialDuration)
		sub = model.UserSubscription{
			Tier:          model.TierTrial,
			StartDate:     now,
			ExpiryDate:    &expiry,
			DailyUsage:    0,
			LastUsageDate: m.dateString(now),
			HasUsedTrial:  true,
		}
		if err := m.store.SetJSON(key, &sub); err != nil {
			return nil, err
		}
		return &sub, nil
	}

	// Day rollover: reset the daily counter.
	today := m.dateString(now)
	if sub.LastUsageDate != today {
		sub.DailyUsage = 0
		sub.LastUsageDate = today
		if err := m.store.SetJSON(key, &sub); err != nil {
			return nil, err
		}
	}

	// Trial expiry: one-way downgrade to FREE.
	if sub.ExpiryDate != nil && now.After(*sub.ExpiryDate) && sub.Tier != model.TierFree {
		sub.Tier = model.TierFree
		sub.ExpiryDate = nil
		if err := m.store.SetJSON(key, &sub); err != nil {
			return nil, err
		}
	}

	return &sub, nil
}

func allowanceFor(sub *model.UserSubscription) Allowance {
	limit := DailyLimit(sub.Tier)
	if sub.Tier == model.TierFree {
		return Allowance{Allowed: false, Remaining: 0, Limit: limit, Tier: sub.Tier}
	}
	remaining := limit - sub.DailyUsage
	if remaining < 0 {
		remaining = 0
	}
	return Allowance{Allowed: remaining > 0, Remaining: remaining, Limit: limit, Tier: sub.Tier}
}

// CheckCanGenerate reports whether the user could consume one unit right
// now. Pure read apart from lazy reconciliation.
func (m *Manager) CheckCanGenerate(username string) (Allowance, error) {
	sub, err := m.GetSubscription(username)
	if err != nil {
		return Allowance{}, err
	}
	return allowanceFor(sub), nil
}

// IncrementUsage consumes one unit if the daily limit permits. Kept for
// callers that already performed their own check; new code should prefer
// TryConsume, which does check and increment as one step.
func (m *Manager) IncrementUsage(username string) (bool, error) {
	l := m.lockFor(username)
	l.Lock()
	defer l.Unlock()

	sub, err := m.getSubscriptionLocked(username)
	if err != nil {
		return false, err
	}
	if sub.DailyUsage >= DailyLimit(sub.Tier) {
		return false, nil
	}
	sub.DailyUsage++
	if err := m.store.SetJSON(SubscriptionKey(username), sub); err != nil {
		return false, err
	}
	return true, nil
}

// TryConsume atomically checks the allowance and, if permitted, consumes
// one unit. The returned Remaining reflects the state after consumption.
// Holding the per-user lock across check and mutation closes the
// double-trigger race a separate check/increment pair would have.
func (m *Manager) TryConsume(username string) (Allowance, error) {
	l := m.lockFor(username)
	l.Lock()
	defer l.Unlock()

	sub, err := m.getSubscriptionLocked(username)
	if err != nil {
		return Allowance{}, err
	}

	allowance := allowanceFor(sub)
	if !allowance.Allowed {
		return allowance, nil
	}

	sub.DailyUsage++
	if err := m.store.SetJSON(SubscriptionKey(username), sub); err != nil {
		return Allowance{}, err
	}

	allowance.Remaining--
	allowance.Allowed = true
	return allowance, nil
}

// Upgrade switches the user to a paid tier with a fresh daily allowance.
// Paid tiers are modeled as indefinitely active, so the expiry is cleared.
func (m *Manager) Upgrade(username string, tier model.Tier) (*model.UserSubscription, error) {
	if !tier.IsPaid() {
		return nil, fmt.Errorf("%w: %s", ErrTierNotPurchasable, tier)
	}

	l := m.lockFor(username)
	l.Lock()
	defer l.Unlock()

	sub, err := m.getSubscriptionLocked(username)
	if err != nil {
		return nil, err
	}

	sub.Tier = tier
	sub.StartDate = m.now()
	sub.DailyUsage = 0
	sub.ExpiryDate = nil

	if err := m.store.SetJSON(SubscriptionKey(username), sub); err != nil {
		return nil, err
	}
	return sub, nil
}
