package sample

import "time"

// Defaults for a run.
const (
	DefaultRecords      = 10_000
	DefaultPrefix       = "user"
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 250 * time.Millisecond
)

// Header is the canonical column order of generated files.
var Header = []string{ //nolint:gochecknoglobals // read-only column set
	"user_id", "gender", "age", "country", "subscription_type",
	"listening_time", "songs_played_per_day", "skip_rate",
	"ads_listened_per_week", "device_type", "offline_listening",
}

// Value pools.
var ( //nolint:gochecknoglobals // read-only pools
	genders       = []string{"Male", "Female", "Other"}
	countries     = []string{"US", "DE", "FR", "BR", "IN", "JP", "GB", "CA", "AU", "PK"}
	subscriptions = []string{"Free", "Premium", "Family", "Student"}
	devices       = []string{"Mobile", "Desktop", "Web"}
)

// Column positions within Header.
const (
	colUserID = iota
	colGender
	colAge
	colCountry
	colSubscription
	colListeningTime
	colSongsPerDay
	colSkipRate
	colAdsPerWeek
	colDevice
	colOffline
)
