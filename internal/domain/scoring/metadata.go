package scoring

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/churnbatch/internal/domain/model"
)

// Input names understood by the logistic engine. Engineered features use the
// model.Feature* keys.
const (
	InputAge           = "age"
	InputListeningTime = "listening_time"
	InputSongsPerDay   = "songs_played_per_day"
	InputSkipRate      = "skip_rate"
	InputAdsPerWeek    = "ads_listened_per_week"
	InputOffline       = "offline_listening"
	InputFreePlan      = "is_free"
)

// ModelMetadata describes a scoring model.
type ModelMetadata struct {
	Name         string             `koanf:"name"`
	Version      string             `koanf:"version"`
	Threshold    float64            `koanf:"threshold"`
	ChurnIndex   int                `koanf:"churn_index"`
	Intercept    float64            `koanf:"intercept"`
	Coefficients map[string]float64 `koanf:"coefficients"`
}

// DefaultModelMetadata returns the bundled churn model.
func DefaultModelMetadata() ModelMetadata {
	return ModelMetadata{
		Name:       "churn-logistic",
		Version:    "1.0.0",
		Threshold:  0.5,
		ChurnIndex: 1,
		Intercept:  -1.6,
		Coefficients: map[string]float64{
			InputAge:                      -0.01,
			InputListeningTime:            -0.003,
			InputSongsPerDay:              -0.01,
			InputSkipRate:                 2.4,
			InputAdsPerWeek:               0.04,
			InputOffline:                  -0.8,
			InputFreePlan:                 0.45,
			model.FeatureFrustrationIndex: 0.3,
			model.FeatureAdIntensity:      2.5,
			model.FeatureSongsPerMinute:   0.2,
			model.FeatureIsHeavyUser:      -1.1,
			model.FeaturePremiumNoOffline: 0.55,
		},
	}
}

// LoadModelMetadata reads model metadata from a YAML file. Keys missing from
// the file keep their default values; a coefficients map in the file replaces
// the default coefficients as a whole.
func LoadModelMetadata(path string) (ModelMetadata, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return ModelMetadata{}, fmt.Errorf("load model metadata %s: %w", path, err)
	}

	meta := DefaultModelMetadata()
	defaults := meta.Coefficients
	meta.Coefficients = nil
	if err := k.UnmarshalWithConf("", &meta, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return ModelMetadata{}, fmt.Errorf("decode model metadata: %w", err)
	}
	if len(meta.Coefficients) == 0 {
		meta.Coefficients = defaults
	}

	if err := meta.Validate(); err != nil {
		return ModelMetadata{}, err
	}
	return meta, nil
}

// Validate checks threshold and output index.
func (m ModelMetadata) Validate() error {
	if m.Threshold <= 0 || m.Threshold >= 1 {
		return fmt.Errorf("%w: threshold %g must be in (0,1)", ErrInvalidMetadata, m.Threshold)
	}
	if m.ChurnIndex < 0 {
		return fmt.Errorf("%w: churn_index %d is negative", ErrInvalidMetadata, m.ChurnIndex)
	}
	return nil
}
