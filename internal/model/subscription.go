package model

import "time"

// Subscription Tiers
type Tier string

const (
	TierFree    Tier = "FREE" // terminal post-expiry state, no allowance
	TierTrial   Tier = "TRIAL"
	TierSilver  Tier = "SILVER"
	TierGold    Tier = "GOLD"
	TierDiamond Tier = "DIAMOND"
)

// UserSubscription is the per-user entitlement record. It is stored as a
// single JSON blob per user and reconciled lazily on every read: a day
// rollover resets DailyUsage, an elapsed trial expiry downgrades to FREE.
type UserSubscription struct {
	Tier          Tier       `json:"tier"`
	StartDate     time.Time  `json:"startDate"`
	ExpiryDate    *time.Time `json:"expiryDate"` // only TRIAL carries an expiry
	DailyUsage    int        `json:"dailyUsage"`
	LastUsageDate string     `json:"lastUsageDate"` // YYYY-MM-DD, for daily reset detection
	HasUsedTrial  bool       `json:"hasUsedTrial"`  // trial is auto-granted exactly once
}

func (t Tier) IsPaid() bool {
	return t == TierSilver || t == TierGold || t == TierDiamond
}
