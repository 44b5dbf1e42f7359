package decoder

import "strings"

// Required columns, in canonical snake_case form.
const (
	ColUserID           = "user_id"
	ColGender           = "gender"
	ColAge              = "age"
	ColCountry          = "country"
	ColSubscriptionType = "subscription_type"
	ColListeningTime    = "listening_time"
	ColSongsPerDay      = "songs_played_per_day"
	ColSkipRate         = "skip_rate"
	ColAdsPerWeek       = "ads_listened_per_week"
	ColDeviceType       = "device_type"
	ColOfflineListening = "offline_listening"
)

// RequiredColumns lists every column a file must carry.
var RequiredColumns = []string{ //nolint:gochecknoglobals // read-only column set
	ColUserID, ColGender, ColAge, ColCountry, ColSubscriptionType,
	ColListeningTime, ColSongsPerDay, ColSkipRate, ColAdsPerWeek,
	ColDeviceType, ColOfflineListening,
}

// columns maps each required column to its position in a row.
type columns map[string]int

// normalizeHeader folds a header cell for matching: "Skip Rate",
// "skip-rate" and "SKIP_RATE" all become "skiprate".
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
}

// resolveColumns builds the column table from a header row. The first
// occurrence of a duplicated header wins.
func resolveColumns(header []string) (columns, error) {
	seen := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := seen[key]; !dup && key != "" {
			seen[key] = i
		}
	}

	cols := make(columns, len(RequiredColumns))
	var missing []string
	for _, name := range RequiredColumns {
		idx, ok := seen[normalizeHeader(name)]
		if !ok {
			missing = append(missing, name)
			continue
		}
		cols[name] = idx
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	return cols, nil
}

// isBlankRow reports whether every cell is empty after trimming.
func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
