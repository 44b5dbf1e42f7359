// Package features derives engineered features and diagnoses from profiles.
// Everything here is pure and safe for concurrent use.
package features

import "github.com/okian/churnbatch/internal/domain/model"

// Business thresholds.
const (
	HeavyUserListeningMinutes = 450.0
	HeavyUserMaxSkipRate      = 0.2
)

// Compute returns the engineered features for p. Missing numerics count as 0
// and a missing offline flag counts as false.
func Compute(p model.CustomerProfile) model.EngineeredFeatures {
	skipRate, _ := p.SkipRate()
	ads, _ := p.AdsPerWeek()
	songs, _ := p.SongsPerDay()
	listening, _ := p.ListeningTime()
	offline, _ := p.OfflineListening()

	return model.EngineeredFeatures{
		FrustrationIndex: skipRate * float64(ads+1),
		AdIntensity:      float64(ads) / (float64(songs)*7 + 1),
		SongsPerMinute:   float64(songs) / (listening + 1),
		IsHeavyUser:      listening > HeavyUserListeningMinutes && skipRate < HeavyUserMaxSkipRate,
		PremiumNoOffline: isPaying(p) && !offline,
	}
}

// isPaying reports a non-empty subscription other than Free.
func isPaying(p model.CustomerProfile) bool {
	return p.SubscriptionType() != "" && !p.IsFree()
}
