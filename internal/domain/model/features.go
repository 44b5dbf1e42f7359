package model

// Feature keys as exposed to scoring engines and storage.
const (
	FeatureFrustrationIndex = "frustration_index"
	FeatureAdIntensity      = "ad_intensity"
	FeatureSongsPerMinute   = "songs_per_minute"
	FeatureIsHeavyUser      = "is_heavy_user"
	FeaturePremiumNoOffline = "premium_no_offline"
)

// EngineeredFeatures are the values derived from a CustomerProfile.
type EngineeredFeatures struct {
	FrustrationIndex float64
	AdIntensity      float64
	SongsPerMinute   float64
	IsHeavyUser      bool
	PremiumNoOffline bool
}

// Map returns the five features keyed by their snake_case names.
func (f EngineeredFeatures) Map() map[string]any {
	return map[string]any{
		FeatureFrustrationIndex: f.FrustrationIndex,
		FeatureAdIntensity:      f.AdIntensity,
		FeatureSongsPerMinute:   f.SongsPerMinute,
		FeatureIsHeavyUser:      f.IsHeavyUser,
		FeaturePremiumNoOffline: f.PremiumNoOffline,
	}
}

// Diagnosis explains a prediction in business terms.
type Diagnosis struct {
	RiskFactor      string
	RetentionFactor string
	SuggestedAction string
}
