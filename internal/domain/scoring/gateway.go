package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/okian/churnbatch/internal/domain/cache"
	"github.com/okian/churnbatch/internal/domain/model"
	"github.com/okian/churnbatch/pkg/logger"
	"github.com/okian/churnbatch/pkg/metrics"
)

// outputTolerance bounds how far class probabilities may sum from 1.
const outputTolerance = 1e-3

// Prediction is a validated engine result.
type Prediction struct {
	StayProbability  float64
	ChurnProbability float64
	Label            model.ChurnLabel
}

type request struct {
	ctx      context.Context
	profile  model.CustomerProfile
	features model.EngineeredFeatures
	reply    chan response
}

type response struct {
	out []float64
	err error
}

// Gateway scores profiles through an Engine on a fixed pool of goroutines,
// independent of whatever pool calls Score.
type Gateway struct {
	engine     Engine
	workers    int
	threshold  float64
	churnIndex int
	cache      cache.Cache[Prediction]
	log        logger.Logger

	requests  chan request
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewGateway starts a gateway in front of engine.
func NewGateway(engine Engine, opts ...Option) *Gateway {
	g := &Gateway{
		engine:     engine,
		workers:    defaultWorkers(),
		threshold:  DefaultThreshold,
		churnIndex: DefaultChurnIndex,
		log:        logger.Nop(),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.requests = make(chan request)
	for i := 0; i < g.workers; i++ {
		g.wg.Add(1)
		go g.work()
	}
	return g
}

// Threshold returns the churn decision threshold.
func (g *Gateway) Threshold() float64 {
	return g.threshold
}

// IsHealthy reports whether the engine is loaded.
func (g *Gateway) IsHealthy() bool {
	return g.engine != nil && g.engine.IsLoaded()
}

// ClearCache drops cached predictions, if caching is enabled.
func (g *Gateway) ClearCache() {
	if g.cache != nil {
		g.cache.Clear()
	}
}

// CacheSize returns the number of cached predictions.
func (g *Gateway) CacheSize() int64 {
	if g.cache == nil {
		return 0
	}
	return g.cache.Len()
}

// Score returns the prediction for profile p.
func (g *Gateway) Score(ctx context.Context, p model.CustomerProfile, f model.EngineeredFeatures) (Prediction, error) {
	select {
	case <-g.done:
		return Prediction{}, ErrGatewayClosed
	default:
	}

	key := p.UserID()
	if pred, ok := g.lookup(ctx, key); ok {
		return pred, nil
	}

	out, err := g.invoke(ctx, p, f)
	if err != nil {
		return Prediction{}, err
	}

	pred, err := g.interpret(out)
	if err != nil {
		metrics.RecordScoringError("malformed_output")
		return Prediction{}, err
	}
	metrics.RecordPrediction(string(pred.Label))

	g.store(ctx, key, pred)
	return pred, nil
}

// Close stops the worker pool. Pending Score calls return ErrGatewayClosed.
func (g *Gateway) Close() {
	g.closeOnce.Do(func() {
		close(g.done)
	})
	g.wg.Wait()
}

func (g *Gateway) work() {
	defer g.wg.Done()
	for {
		select {
		case <-g.done:
			return
		case req := <-g.requests:
			req.reply <- g.predict(req)
		}
	}
}

func (g *Gateway) predict(req request) response {
	if !g.IsHealthy() {
		metrics.RecordScoringError("engine_unavailable")
		return response{err: ErrEngineUnavailable}
	}

	start := time.Now()
	out, err := g.engine.Predict(req.ctx, req.profile, req.features)
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordScoringError("engine")
		return response{err: fmt.Errorf("engine predict: %w", err)}
	}
	return response{out: out}
}

func (g *Gateway) invoke(ctx context.Context, p model.CustomerProfile, f model.EngineeredFeatures) ([]float64, error) {
	req := request{ctx: ctx, profile: p, features: f, reply: make(chan response, 1)}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.done:
		return nil, ErrGatewayClosed
	case g.requests <- req:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-req.reply:
		return resp.out, resp.err
	}
}

// interpret validates raw engine output and applies the threshold.
func (g *Gateway) interpret(out []float64) (Prediction, error) {
	var stay, churn float64

	switch n := len(out); {
	case n == 0:
		return Prediction{}, fmt.Errorf("%w: empty output", ErrMalformedOutput)
	case n == 1:
		if !isProbability(out[0]) {
			return Prediction{}, fmt.Errorf("%w: %v is not a probability", ErrMalformedOutput, out[0])
		}
		churn = out[0]
		stay = 1 - churn
	default:
		var sum float64
		for _, v := range out {
			if !isProbability(v) {
				return Prediction{}, fmt.Errorf("%w: %v is not a probability", ErrMalformedOutput, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > outputTolerance {
			return Prediction{}, fmt.Errorf("%w: probabilities sum to %v", ErrMalformedOutput, sum)
		}
		if g.churnIndex >= n {
			return Prediction{}, fmt.Errorf("%w: churn index %d out of %d outputs", ErrMalformedOutput, g.churnIndex, n)
		}
		churn = out[g.churnIndex]
		stay = 1 - churn
		if n == 2 {
			stay = out[1-g.churnIndex]
		}
	}

	label := model.WillStay
	if churn >= g.threshold {
		label = model.WillChurn
	}
	return Prediction{StayProbability: stay, ChurnProbability: churn, Label: label}, nil
}

// lookup consults the cache. Failures count as misses.
func (g *Gateway) lookup(ctx context.Context, key string) (Prediction, bool) {
	if g.cache == nil || key == "" {
		return Prediction{}, false
	}

	pred, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrEmptyKey) {
			metrics.RecordCacheError("get")
			g.log.Debug(ctx, "prediction cache get failed", logger.String("user_id", key), logger.Error(err))
		}
		return Prediction{}, false
	}
	if !ok {
		metrics.RecordCacheMiss()
		return Prediction{}, false
	}
	metrics.RecordCacheHit()
	return pred, true
}

func (g *Gateway) store(ctx context.Context, key string, pred Prediction) {
	if g.cache == nil || key == "" {
		return
	}
	if err := g.cache.Put(ctx, key, pred); err != nil && !errors.Is(err, cache.ErrEmptyKey) {
		metrics.RecordCacheError("put")
		g.log.Debug(ctx, "prediction cache put failed", logger.String("user_id", key), logger.Error(err))
	}
}

func isProbability(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
