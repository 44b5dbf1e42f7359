package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/churnbatch/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.BatchSize, convey.ShouldEqual, 5000)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreSQLite)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CHURN_ADDR", ":8080")
			_ = os.Setenv("CHURN_BATCH_SIZE", "2500")
			_ = os.Setenv("CHURN_MAX_IN_FLIGHT_BATCHES", "4")
			_ = os.Setenv("CHURN_CACHE_ENABLED", "false")
			_ = os.Setenv("CHURN_STORE_DRIVER", "memory")
			_ = os.Setenv("CHURN_CHURN_THRESHOLD", "0.65")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.BatchSize, convey.ShouldEqual, 2500)
				convey.So(cfg.MaxInFlightBatches, convey.ShouldEqual, 4)
				convey.So(cfg.CacheEnabled, convey.ShouldBeFalse)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreMemory)
				convey.So(cfg.ChurnThreshold, convey.ShouldAlmostEqual, 0.65)
				convey.So(cfg.ChunkSize, convey.ShouldEqual, 2000)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
# pipeline sizing
addr: ":9090"
batch_size: 1000
max_records: 20000
job_timeout_seconds: 300
scoring_latency_min_ms: 5
scoring_latency_max_ms: 20
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CHURN_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.BatchSize, convey.ShouldEqual, 1000)
				convey.So(cfg.MaxRecords, convey.ShouldEqual, 20000)
				convey.So(cfg.JobTimeoutSeconds, convey.ShouldEqual, 300)
				convey.So(cfg.ScoringLatencyMinMS, convey.ShouldEqual, 5)
				convey.So(cfg.ScoringLatencyMaxMS, convey.ShouldEqual, 20)
			})
		})

		convey.Convey("When both YAML file and env vars are set", func() {
			yamlContent := `
addr: ":9090"
batch_size: 1000
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CHURN_CONFIG", tmpFile)
			_ = os.Setenv("CHURN_BATCH_SIZE", "750")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env vars win over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.BatchSize, convey.ShouldEqual, 750)
			})
		})
	})
}

func TestConfigLoaderEdgeCases(t *testing.T) {
	convey.Convey("Given config loader edge cases", t, func() {
		ctx := context.Background()

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("CHURN_CONFIG", "/nonexistent/churn.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the config file is not valid YAML", func() {
			tmpFile := createTempConfigFile("addr: [unclosed\n")
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CHURN_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a numeric env var is not a number", func() {
			_ = os.Setenv("CHURN_BATCH_SIZE", "lots")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should fail to unmarshal", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the YAML file empties the address", func() {
			tmpFile := createTempConfigFile("addr: \"\"\nbatch_size: 10\n")
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CHURN_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return validation error for empty addr", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the store driver is unknown", func() {
			_ = os.Setenv("CHURN_STORE_DRIVER", "postgres")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"CHURN_CONFIG",
		"CHURN_ADDR",
		"CHURN_BATCH_SIZE",
		"CHURN_MAX_IN_FLIGHT_BATCHES",
		"CHURN_CACHE_ENABLED",
		"CHURN_STORE_DRIVER",
		"CHURN_CHURN_THRESHOLD",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "churn-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
