package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/churnbatch/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.BatchSize, convey.ShouldEqual, 5000)
			convey.So(cfg.MaxInFlightBatches, convey.ShouldEqual, 8)
			convey.So(cfg.BatchWorkers, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.ChunkSize, convey.ShouldEqual, 2000)
			convey.So(cfg.InsertThreads, convey.ShouldEqual, 16)
			convey.So(cfg.MaxRecords, convey.ShouldEqual, 100_000)
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreSQLite)
			convey.So(cfg.CacheEnabled, convey.ShouldBeTrue)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then derived values use the right units", func() {
			convey.So(cfg.MaxFileSize(), convey.ShouldEqual, int64(50<<20))
			convey.So(cfg.JobRetention(), convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.SweepInterval(), convey.ShouldEqual, time.Hour)
			convey.So(cfg.JobTimeout(), convey.ShouldEqual, time.Duration(0))

			cfg.ScoringLatencyMinMS, cfg.ScoringLatencyMaxMS = 10, 30
			lo, hi := cfg.ScoringLatency()
			convey.So(lo, convey.ShouldEqual, 10*time.Millisecond)
			convey.So(hi, convey.ShouldEqual, 30*time.Millisecond)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with invalid values", t, func() {
		cases := map[string]func(*config.Config){
			"addr must not be empty":            func(c *config.Config) { c.Addr = "" },
			"batch_size must be positive":       func(c *config.Config) { c.BatchSize = 0 },
			"max_in_flight_batches":             func(c *config.Config) { c.MaxInFlightBatches = -1 },
			"chunk_size must be positive":       func(c *config.Config) { c.ChunkSize = 0 },
			"max_records must be positive":      func(c *config.Config) { c.MaxRecords = 0 },
			"max_file_size_mb must be positive": func(c *config.Config) { c.MaxFileSizeMB = 0 },
			"job_timeout_seconds":               func(c *config.Config) { c.JobTimeoutSeconds = -5 },
			"churn_threshold":                   func(c *config.Config) { c.ChurnThreshold = 1.5 },
			"scoring_latency_max_ms":            func(c *config.Config) { c.ScoringLatencyMinMS, c.ScoringLatencyMaxMS = 50, 10 },
			"database_path is required":         func(c *config.Config) { c.DatabasePath = "" },
			"unknown store_driver":              func(c *config.Config) { c.StoreDriver = "postgres" },
		}

		for want, mutate := range cases {
			cfg := config.New()
			mutate(cfg)
			err := cfg.Validate()

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, want)
		}
	})

	convey.Convey("Given the memory store without a database path", t, func() {
		cfg := config.New()
		cfg.StoreDriver = config.StoreMemory
		cfg.DatabasePath = ""

		convey.Convey("Then it validates", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
