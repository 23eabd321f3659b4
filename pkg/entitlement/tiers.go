package entitlement

import (
	"time"

	"musegen_backend/internal/model"
)

// TrialDuration is how long the auto-granted trial stays active.
const TrialDuration = 3 * 24 * time.Hour

// TierLimits holds the daily generation-unit allowance per tier.
// FREE is the post-trial-expiry state and allows nothing.
var TierLimits = map[model.Tier]int{
	model.TierFree:    0,
	model.TierTrial:   10,
	model.TierSilver:  15,
	model.TierGold:    100,
	model.TierDiamond: 500,
}

// TierPrices holds the monthly price per tier in USD. FREE is not listed
// as a plan; TRIAL is free and auto-granted, never purchasable.
var TierPrices = map[model.Tier]float64{
	model.TierTrial:   0,
	model.TierSilver:  5,
	model.TierGold:    15,
	model.TierDiamond: 49.99,
}

// DailyLimit returns the daily allowance for a tier. Unknown tiers get 0.
func DailyLimit(tier model.Tier) int {
	return TierLimits[tier]
}

// Plan describes a purchasable tier for the pricing endpoint.
type Plan struct {
	Tier       model.Tier `json:"tier"`
	Price      float64    `json:"price"`
	DailyLimit int        `json:"daily_limit"`
}

// Plans lists the tiers a user can upgrade to, cheapest first.
func Plans() []Plan {
	tiers := []model.Tier{model.TierSilver, model.TierGold, model.TierDiamond}
	plans := make([]Plan, 0, len(tiers))
	for _, t := range tiers {
		plans = append(plans, Plan{Tier: t, Price: TierPrices[t], DailyLimit: TierLimits[t]})
	}
	return plans
}
