// Package scoring turns customer profiles into churn predictions through a
// pluggable inference engine.
package scoring

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/churnbatch/internal/domain/model"
)

const defaultRandomSeed = 42

// Engine is an inference engine. Predict returns raw class probabilities:
// either a single churn probability or one value per class.
type Engine interface {
	Predict(ctx context.Context, p model.CustomerProfile, f model.EngineeredFeatures) ([]float64, error)
	IsLoaded() bool
}

// EngineOption configures a LogisticEngine.
type EngineOption func(*LogisticEngine)

// WithLatencyRange simulates inference latency uniformly in [min,max).
func WithLatencyRange(minLatency, maxLatency time.Duration) EngineOption {
	return func(e *LogisticEngine) {
		if minLatency > 0 && maxLatency > minLatency {
			e.minLatency = minLatency
			e.maxLatency = maxLatency
		}
	}
}

// LogisticEngine is the bundled engine: a logistic regression over raw
// profile inputs and engineered features. It emits a single churn
// probability.
type LogisticEngine struct {
	meta ModelMetadata

	minLatency time.Duration
	maxLatency time.Duration

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewLogisticEngine creates an engine from model metadata.
func NewLogisticEngine(meta ModelMetadata, opts ...EngineOption) *LogisticEngine {
	e := &LogisticEngine{
		meta: meta,
		rng:  rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // latency jitter only
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Metadata returns the model description.
func (e *LogisticEngine) Metadata() ModelMetadata {
	return e.meta
}

// IsLoaded reports whether the engine has coefficients to score with.
func (e *LogisticEngine) IsLoaded() bool {
	return len(e.meta.Coefficients) > 0
}

// Predict returns []float64{p} where p is the churn probability.
func (e *LogisticEngine) Predict(ctx context.Context, p model.CustomerProfile, f model.EngineeredFeatures) ([]float64, error) {
	if !e.IsLoaded() {
		return nil, ErrEngineUnavailable
	}

	if latency := e.latency(); latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	z := e.meta.Intercept
	for _, in := range inputs(p, f) {
		z += e.meta.Coefficients[in.name] * in.value
	}
	return []float64{1 / (1 + math.Exp(-z))}, nil
}

func (e *LogisticEngine) latency() time.Duration {
	if e.maxLatency <= e.minLatency {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.minLatency + time.Duration(e.rng.Int63n(int64(e.maxLatency-e.minLatency)))
}

type input struct {
	name  string
	value float64
}

// inputs flattens a profile and its features into named model inputs, in a
// fixed order so sums are reproducible.
func inputs(p model.CustomerProfile, f model.EngineeredFeatures) []input {
	listening, _ := p.ListeningTime()
	songs, _ := p.SongsPerDay()
	skip, _ := p.SkipRate()
	ads, _ := p.AdsPerWeek()
	offline, _ := p.OfflineListening()

	return []input{
		{InputAge, float64(p.Age())},
		{InputListeningTime, listening},
		{InputSongsPerDay, float64(songs)},
		{InputSkipRate, skip},
		{InputAdsPerWeek, float64(ads)},
		{InputOffline, boolToFloat(offline)},
		{InputFreePlan, boolToFloat(p.IsFree())},
		{model.FeatureFrustrationIndex, f.FrustrationIndex},
		{model.FeatureAdIntensity, f.AdIntensity},
		{model.FeatureSongsPerMinute, f.SongsPerMinute},
		{model.FeatureIsHeavyUser, boolToFloat(f.IsHeavyUser)},
		{model.FeaturePremiumNoOffline, boolToFloat(f.PremiumNoOffline)},
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
