package entitlement

import (
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"musegen_backend/internal/model"
	"musegen_backend/pkg/store"
)

// testClock lets tests advance time without sleeping.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestManager(t *testing.T) (*Manager, *testClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s, err := store.New(db, store.DefaultMaxBytes, nil)
	require.NoError(t, err)

	clock := &testClock{t: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)}
	m := NewManager(s)
	m.now = clock.Now
	return m, clock
}

func TestNewUserAutoEnrolledInTrial(t *testing.T) {
	m, clock := newTestManager(t)

	sub, err := m.GetSubscription("alice")
	require.NoError(t, err)

	assert.Equal(t, model.TierTrial, sub.Tier)
	assert.Equal(t, 0, sub.DailyUsage)
	assert.True(t, sub.HasUsedTrial)
	assert.Equal(t, "2024-05-10", sub.LastUsageDate)
	require.NotNil(t, sub.ExpiryDate)
	assert.WithinDuration(t, clock.Now().Add(TrialDuration), *sub.ExpiryDate, time.Second)
}

func TestGetSubscriptionIdempotent(t *testing.T) {
	m, _ := newTestManager(t)

	first, err := m.GetSubscription("alice")
	require.NoError(t, err)
	second, err := m.GetSubscription("alice")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDailyLimitIsHard(t *testing.T) {
	m, _ := newTestManager(t)

	limit := DailyLimit(model.TierTrial)
	for i := 0; i < limit; i++ {
		ok, err := m.IncrementUsage("alice")
		require.NoError(t, err)
		assert.True(t, ok, "increment %d should succeed", i+1)
	}

	// The call past the limit fails and leaves usage unchanged.
	ok, err := m.IncrementUsage("alice")
	require.NoError(t, err)
	assert.False(t, ok)

	sub, err := m.GetSubscription("alice")
	require.NoError(t, err)
	assert.Equal(t, limit, sub.DailyUsage)
}

func TestDayRolloverResetsUsage(t *testing.T) {
	m, clock := newTestManager(t)

	for i := 0; i < 4; i++ {
		_, err := m.TryConsume("alice")
		require.NoError(t, err)
	}

	clock.Advance(24 * time.Hour)

	sub, err := m.GetSubscription("alice")
	require.NoError(t, err)
	assert.Equal(t, 0, sub.DailyUsage)
	assert.Equal(t, "2024-05-11", sub.LastUsageDate)
}

func TestTrialExpiryIsOneWay(t *testing.T) {
	m, clock := newTestManager(t)

	_, err := m.GetSubscription("alice")
	require.NoError(t, err)

	clock.Advance(TrialDuration + time.Hour)

	sub, err := m.GetSubscription("alice")
	require.NoError(t, err)
	assert.Equal(t, model.TierFree, sub.Tier)
	assert.Nil(t, sub.ExpiryDate)

	allowance, err := m.CheckCanGenerate("alice")
	require.NoError(t, err)
	assert.False(t, allowance.Allowed)
	assert.Equal(t, 0, allowance.Remaining)

	// FREE never reverts to TRIAL on its own.
	clock.Advance(30 * 24 * time.Hour)
	sub, err = m.GetSubscription("alice")
	require.NoError(t, err)
	assert.Equal(t, model.TierFree, sub.Tier)
}

func TestUpgradeAfterExpiry(t *testing.T) {
	m, clock := newTestManager(t)

	_, err := m.GetSubscription("alice")
	require.NoError(t, err)
	clock.Advance(TrialDuration + time.Hour)
	_, err = m.GetSubscription("alice")
	require.NoError(t, err)

	sub, err := m.Upgrade("alice", model.TierGold)
	require.NoError(t, err)
	assert.Equal(t, model.TierGold, sub.Tier)
	assert.Equal(t, 0, sub.DailyUsage)
	assert.Nil(t, sub.ExpiryDate)
	assert.Equal(t, clock.Now(), sub.StartDate)

	allowance, err := m.CheckCanGenerate("alice")
	require.NoError(t, err)
	assert.True(t, allowance.Allowed)
	assert.Equal(t, 100, allowance.Remaining)
	assert.Equal(t, 100, allowance.Limit)
}

func TestUpgradeResetsUsage(t *testing.T) {
	m, _ := newTestManager(t)

	for i := 0; i < 5; i++ {
		_, err := m.TryConsume("alice")
		require.NoError(t, err)
	}

	sub, err := m.Upgrade("alice", model.TierSilver)
	require.NoError(t, err)
	assert.Equal(t, 0, sub.DailyUsage)

	allowance, err := m.CheckCanGenerate("alice")
	require.NoError(t, err)
	assert.Equal(t, 15, allowance.Remaining)
}

func TestUnpurchasableTiers(t *testing.T) {
	m, _ := newTestManager(t)

	for _, tier := range []model.Tier{model.TierTrial, model.TierFree} {
		_, err := m.Upgrade("alice", tier)
		assert.ErrorIs(t, err, ErrTierNotPurchasable, "tier %s", tier)
	}
}

func TestTryConsumeCountsDown(t *testing.T) {
	m, _ := newTestManager(t)

	limit := DailyLimit(model.TierTrial)
	for i := 0; i < limit; i++ {
		allowance, err := m.TryConsume("alice")
		require.NoError(t, err)
		assert.True(t, allowance.Allowed)
		assert.Equal(t, limit-i-1, allowance.Remaining)
	}

	allowance, err := m.TryConsume("alice")
	require.NoError(t, err)
	assert.False(t, allowance.Allowed)
	assert.Equal(t, 0, allowance.Remaining)

	sub, err := m.GetSubscription("alice")
	require.NoError(t, err)
	assert.Equal(t, limit, sub.DailyUsage)
}

func TestTryConsumeConcurrent(t *testing.T) {
	m, _ := newTestManager(t)

	// Prime the record so every goroutine races on consumption only.
	_, err := m.GetSubscription("alice")
	require.NoError(t, err)

	limit := DailyLimit(model.TierTrial)
	attempts := limit * 3

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowance, err := m.TryConsume("alice")
			if err != nil {
				return
			}
			if allowance.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, allowed)

	sub, err := m.GetSubscription("alice")
	require.NoError(t, err)
	assert.Equal(t, limit, sub.DailyUsage)
}

func TestFreeTierAlwaysDenied(t *testing.T) {
	m, clock := newTestManager(t)

	_, err := m.GetSubscription("alice")
	require.NoError(t, err)
	clock.Advance(TrialDuration + time.Hour)

	for i := 0; i < 3; i++ {
		allowance, err := m.TryConsume("alice")
		require.NoError(t, err)
		assert.False(t, allowance.Allowed)
		assert.Equal(t, model.TierFree, allowance.Tier)
	}
}
