package features

import "github.com/okian/churnbatch/internal/domain/model"

// Diagnosis thresholds.
const (
	highAdsPerWeek      = 15
	highSkipRate        = 0.35
	lowListeningMinutes = 100.0
	lowAdsPerWeek       = 5
)

// Risk factors.
const (
	RiskHighAds          = "High ad exposure"
	RiskHighSkipRate     = "High skip rate"
	RiskLowEngagement    = "Low engagement"
	RiskPremiumNoOffline = "Premium underuse"
	RiskModerate         = "Moderate risk profile"
)

// Retention factors.
const (
	RetentionOffline   = "Offline listening"
	RetentionHeavyUser = "High engagement"
	RetentionPremium   = "Paid subscription"
	RetentionLowAds    = "Low ad exposure"
	RetentionRegular   = "Regular platform use"
)

// Diagnose explains a churn probability for p. A record below threshold
// always gets the moderate risk factor.
func Diagnose(p model.CustomerProfile, probability, threshold float64) model.Diagnosis {
	risk := riskFactor(p, probability >= threshold)
	return model.Diagnosis{
		RiskFactor:      risk,
		RetentionFactor: retentionFactor(p),
		SuggestedAction: suggestedAction(p, risk, probability, threshold),
	}
}

func riskFactor(p model.CustomerProfile, highRisk bool) string {
	if !highRisk {
		return RiskModerate
	}
	if ads, ok := p.AdsPerWeek(); ok && ads > highAdsPerWeek {
		return RiskHighAds
	}
	if sr, ok := p.SkipRate(); ok && sr > highSkipRate {
		return RiskHighSkipRate
	}
	if lt, ok := p.ListeningTime(); ok && lt < lowListeningMinutes {
		return RiskLowEngagement
	}
	if offline, _ := p.OfflineListening(); isPaying(p) && !offline {
		return RiskPremiumNoOffline
	}
	return RiskModerate
}

func retentionFactor(p model.CustomerProfile) string {
	if offline, ok := p.OfflineListening(); ok && offline {
		return RetentionOffline
	}
	lt, ltOK := p.ListeningTime()
	sr, srOK := p.SkipRate()
	if ltOK && srOK && lt > HeavyUserListeningMinutes && sr < HeavyUserMaxSkipRate {
		return RetentionHeavyUser
	}
	if isPaying(p) {
		return RetentionPremium
	}
	if ads, ok := p.AdsPerWeek(); ok && ads < lowAdsPerWeek {
		return RetentionLowAds
	}
	return RetentionRegular
}

func suggestedAction(p model.CustomerProfile, risk string, probability, threshold float64) string {
	if probability < threshold {
		return "Keep the current relationship with periodic communication."
	}

	switch risk {
	case RiskHighAds:
		if p.IsFree() {
			return "Offer a Premium trial to relieve audio interruptions."
		}
		return "Review ad frequency and consider an upgrade offer."
	case RiskHighSkipRate:
		return "Recalibrate personal recommendations and send a curated playlist."
	case RiskLowEngagement:
		return "Send push notifications with new releases and personal playlists."
	case RiskPremiumNoOffline:
		return "Teach the offline download feature with an email tutorial."
	}

	switch {
	case probability > 0.8:
		return "Prioritise urgent contact with a personal retention offer."
	case probability > 0.6:
		return "Schedule proactive contact with a value proposal."
	default:
		return "Monitor behaviour and send a satisfaction survey."
	}
}
