package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/churnbatch/internal/adapters/mq/queue"
	"github.com/okian/churnbatch/internal/adapters/repository"
	"github.com/okian/churnbatch/internal/domain/model"
	"github.com/okian/churnbatch/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

type stubScorer struct {
	delay   time.Duration
	active  atomic.Int64
	maxSeen atomic.Int64
	panics  bool
}

func (s *stubScorer) Score(ctx context.Context, p model.CustomerProfile, _ model.EngineeredFeatures) (scoring.Prediction, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		m := s.maxSeen.Load()
		if n <= m || s.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if s.panics {
		panic("engine exploded")
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if strings.HasPrefix(p.UserID(), "bad") {
		return scoring.Prediction{}, scoring.ErrMalformedOutput
	}
	return scoring.Prediction{StayProbability: 0.3, ChurnProbability: 0.7, Label: model.WillChurn}, nil
}

func (s *stubScorer) Threshold() float64 { return 0.5 }

type failingWriter struct{}

func (failingWriter) Write(context.Context, []model.ScoredRecord) (int, error) {
	return 0, errors.New("disk full")
}

// slowWriter holds each write open and records how many overlap.
type slowWriter struct {
	delay   time.Duration
	active  atomic.Int64
	maxSeen atomic.Int64
	writes  atomic.Int64
}

func (w *slowWriter) Write(_ context.Context, recs []model.ScoredRecord) (int, error) {
	n := w.active.Add(1)
	defer w.active.Add(-1)
	for {
		m := w.maxSeen.Load()
		if n <= m || w.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(w.delay)
	w.writes.Add(1)
	return len(recs), nil
}

func records(prefix string, n int) []model.Record {
	out := make([]model.Record, 0, n)
	for i := 0; i < n; i++ {
		p, err := model.NewCustomerProfile(model.ProfileInput{
			UserID:           fmt.Sprintf("%s-%d", prefix, i),
			Gender:           "F",
			Age:              30,
			Country:          "us",
			SubscriptionType: "Premium",
			SkipRate:         model.Ptr(0.1),
			AdsPerWeek:       model.Ptr(2),
		})
		if err != nil {
			panic(err)
		}
		out = append(out, model.Record{Line: i + 2, Profile: p})
	}
	return out
}

// submit enqueues a batch and returns a channel that receives its outcome.
func submit(ctx context.Context, q *queue.BatchQueue, recs []model.Record) <-chan model.BatchOutcome {
	done := make(chan model.BatchOutcome, 1)
	b := &model.Batch{
		JobID:       "job-1",
		Records:     recs,
		RequesterIP: "10.0.0.1",
		Ctx:         ctx,
		Done:        func(o model.BatchOutcome) { done <- o },
	}
	if err := q.Enqueue(context.Background(), b); err != nil {
		panic(err)
	}
	return done
}

func await(ch <-chan model.BatchOutcome) model.BatchOutcome {
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		panic("batch outcome not delivered")
	}
}

func TestPool(t *testing.T) {
	Convey("Given a running pool backed by a memory store", t, func() {
		q := queue.NewBatchQueue(queue.WithPermits(4))
		store := repository.NewMemoryStore()
		scorer := &stubScorer{}
		fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		pool := NewPool(q, scorer, repository.NewBulkWriter(store, repository.WithChunkSize(10)),
			WithWorkerCount(2),
			WithInferenceThreads(3),
			WithClock(func() time.Time { return fixed }),
		)
		ctx, cancel := context.WithCancel(context.Background())
		pool.Start(ctx)
		Reset(func() {
			cancel()
			pool.Stop()
		})

		Convey("When a clean batch is processed", func() {
			o := await(submit(context.Background(), q, records("ok", 25)))

			Convey("Then every record is persisted with batch metadata", func() {
				So(o.Err, ShouldBeNil)
				So(o.Size, ShouldEqual, 25)
				So(o.Persisted, ShouldEqual, 25)
				So(o.Failed(), ShouldEqual, 0)

				saved := store.Records()
				So(len(saved), ShouldEqual, 25)
				ids := map[string]bool{}
				for _, r := range saved {
					ids[r.ID] = true
					So(r.RequesterID, ShouldEqual, model.BatchRequesterID)
					So(r.RequesterIP, ShouldEqual, "10.0.0.1")
					So(r.CreatedAt, ShouldEqual, fixed)
					So(r.Label, ShouldEqual, model.WillChurn)
					So(r.Diagnosis.SuggestedAction, ShouldNotBeBlank)
				}
				So(len(ids), ShouldEqual, 25)
			})

			Convey("Then the permit is released", func() {
				So(q.InFlight(), ShouldEqual, 0)
			})
		})

		Convey("When some records fail scoring", func() {
			recs := append(records("ok", 8), records("bad", 2)...)
			o := await(submit(context.Background(), q, recs))

			Convey("Then the failures are dropped and reported", func() {
				So(o.Err, ShouldBeNil)
				So(o.Persisted, ShouldEqual, 8)
				So(len(o.Errors), ShouldEqual, 2)
				So(o.Errors[0].Message, ShouldContainSubstring, "bad-")
				So(o.Failed(), ShouldEqual, 2)
			})
		})

		Convey("When the batch context is already cancelled", func() {
			jobCtx, jobCancel := context.WithCancel(context.Background())
			jobCancel()
			o := await(submit(jobCtx, q, records("ok", 5)))

			Convey("Then nothing is persisted and the error is reported", func() {
				So(errors.Is(o.Err, context.Canceled), ShouldBeTrue)
				So(o.Persisted, ShouldEqual, 0)
				So(len(store.Records()), ShouldEqual, 0)
			})
		})

		Convey("When several batches run at once", func() {
			scorer.delay = 5 * time.Millisecond
			a := submit(context.Background(), q, records("a", 12))
			b := submit(context.Background(), q, records("b", 12))
			await(a)
			await(b)

			Convey("Then record fan-out stays within the inference bound", func() {
				So(scorer.maxSeen.Load(), ShouldBeLessThanOrEqualTo, 3)
				So(len(store.Records()), ShouldEqual, 24)
			})
		})
	})
}

func TestPoolPermits(t *testing.T) {
	Convey("Given two permits, four workers and a slow writer", t, func() {
		q := queue.NewBatchQueue(queue.WithPermits(2))
		w := &slowWriter{delay: 20 * time.Millisecond}
		pool := NewPool(q, &stubScorer{}, w, WithWorkerCount(4), WithInferenceThreads(8))
		pool.Start(context.Background())
		Reset(pool.Stop)

		Convey("When more batches are submitted than there are permits", func() {
			var outcomes []<-chan model.BatchOutcome
			for i := 0; i < 8; i++ {
				outcomes = append(outcomes, submit(context.Background(), q, records(fmt.Sprintf("p%d", i), 3)))
			}
			for _, ch := range outcomes {
				So(await(ch).Err, ShouldBeNil)
			}

			Convey("Then a permit is held until its batch is written", func() {
				So(w.writes.Load(), ShouldEqual, 8)
				So(w.maxSeen.Load(), ShouldBeLessThanOrEqualTo, 2)
				So(w.maxSeen.Load(), ShouldBeGreaterThan, 0)
				So(q.InFlight(), ShouldEqual, 0)
			})
		})
	})
}

func TestPoolFailures(t *testing.T) {
	Convey("Given a pool whose writer fails", t, func() {
		q := queue.NewBatchQueue(queue.WithPermits(1))
		pool := NewPool(q, &stubScorer{}, failingWriter{}, WithWorkerCount(1))
		pool.Start(context.Background())
		Reset(pool.Stop)

		o := await(submit(context.Background(), q, records("ok", 3)))

		Convey("Then the batch reports a fatal error and releases its permit", func() {
			So(o.Err, ShouldNotBeNil)
			So(o.Err.Error(), ShouldContainSubstring, "disk full")
			So(o.Failed(), ShouldEqual, 3)
			So(q.InFlight(), ShouldEqual, 0)
		})
	})

	Convey("Given a scorer that panics", t, func() {
		q := queue.NewBatchQueue(queue.WithPermits(1))
		pool := NewPool(q, &stubScorer{panics: true}, repository.NewBulkWriter(repository.NewMemoryStore()), WithWorkerCount(1))
		pool.Start(context.Background())
		Reset(pool.Stop)

		o := await(submit(context.Background(), q, records("ok", 2)))

		Convey("Then the records fail but the worker survives", func() {
			So(o.Persisted, ShouldEqual, 0)
			So(len(o.Errors), ShouldEqual, 2)
			So(o.Errors[0].Message, ShouldContainSubstring, "panicked")

			next := await(submit(context.Background(), q, records("ok", 1)))
			So(len(next.Errors), ShouldEqual, 1)
		})
	})

	Convey("Given a stopped pool with a queued batch", t, func() {
		q := queue.NewBatchQueue(queue.WithPermits(2))
		pool := NewPool(q, &stubScorer{}, repository.NewBulkWriter(repository.NewMemoryStore()))
		done := submit(context.Background(), q, records("ok", 2))

		So(pool.Shutdown(context.Background()), ShouldBeNil)

		Convey("Then the batch is failed rather than lost", func() {
			o := await(done)
			So(errors.Is(o.Err, ErrPoolStopped), ShouldBeTrue)
			So(q.InFlight(), ShouldEqual, 0)
		})
	})
}
