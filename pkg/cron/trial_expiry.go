package cron

import (
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"musegen_backend/internal/model"
	"musegen_backend/pkg/store"
)

// InitTrialExpiryCron schedules a daily sweep reporting trials that have
// expired or expire within a day. Advisory only: the entitlement manager
// reconciles expiry lazily on every read, so this job never mutates state.
func InitTrialExpiryCron(s *store.Store) {
	c := cron.New()

	_, err := c.AddFunc("0 9 * * *", func() {
		sweepTrialExpiry(s)
	})

	if err != nil {
		log.Printf("Could not initialize trial expiry cron: %v", err)
		return
	}

	c.Start()
}

func sweepTrialExpiry(s *store.Store) {
	log.Println("Checking for expiring trials...")

	keys, err := s.Keys("subscription-")
	if err != nil {
		log.Printf("Error listing subscriptions: %v", err)
		return
	}

	now := time.Now()
	expired := 0
	expiring := 0

	for _, key := range keys {
		var sub model.UserSubscription
		found, err := s.GetJSON(key, &sub)
		if err != nil || !found {
			continue
		}
		if sub.Tier != model.TierTrial || sub.ExpiryDate == nil {
			continue
		}

		username := strings.TrimPrefix(key, "subscription-")
		switch {
		case now.After(*sub.ExpiryDate):
			expired++
			log.Printf("Trial for %s has expired (pending downgrade on next access)", username)
		case sub.ExpiryDate.Sub(now) <= 24*time.Hour:
			expiring++
			log.Printf("Trial for %s expires within a day", username)
		}
	}

	log.Printf("Trial sweep complete: %d expired, %d expiring soon", expired, expiring)
}
