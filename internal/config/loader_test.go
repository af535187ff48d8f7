package config_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"github.com/xbard-C42/resource-council/internal/config"
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
				convey.So(cfg.Addr, convey.ShouldEqual, ":9180")
				convey.So(cfg.CouncilQuorum, convey.ShouldEqual, 3)
				convey.So(cfg.ConfidenceThreshold, convey.ShouldEqual, 0.7)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("RC_ADDR", ":8081")
			_ = os.Setenv("RC_COUNCIL_QUORUM", "5")
			_ = os.Setenv("RC_CONFIDENCE_THRESHOLD", "0.8")
			_ = os.Setenv("RC_COUNCIL_DEADLINE", "10s")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8081")
				convey.So(cfg.CouncilQuorum, convey.ShouldEqual, 5)
				convey.So(cfg.ConfidenceThreshold, convey.ShouldEqual, 0.8)
				convey.So(cfg.CouncilDeadline, convey.ShouldEqual, 10*time.Second)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			yamlContent := `
addr: ":9291"
intake_queue_size: 128
concentration_limit: 0.25
synthesis_insight_weight: 0.6
`
			tmpFile := createTempConfigFile(t, yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("RC_CONFIG", tmpFile)
			defer func() { _ = os.Unsetenv("RC_CONFIG") }()

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9291")
				convey.So(cfg.IntakeQueueSize, convey.ShouldEqual, 128)
				convey.So(cfg.ConcentrationLimit, convey.ShouldEqual, 0.25)
				convey.So(cfg.SynthesisInsightWeight, convey.ShouldEqual, 0.6)
				convey.So(cfg.SynthesisProposalWeight(), convey.ShouldAlmostEqual, 0.4)
			})
		})

		convey.Convey("When env overrides file values", func() {
			yamlContent := "addr: \":9291\"\n"
			tmpFile := createTempConfigFile(t, yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("RC_CONFIG", tmpFile)
			_ = os.Setenv("RC_ADDR", ":7070")
			defer clearConfigEnvVars()
			defer func() { _ = os.Unsetenv("RC_CONFIG") }()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
			})
		})

		convey.Convey("When loading invalid values", func() {
			clearConfigEnvVars()
			_ = os.Setenv("RC_CONFIDENCE_THRESHOLD", "1.5")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects the config", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When a zero quorum is configured", func() {
			clearConfigEnvVars()
			_ = os.Setenv("RC_COUNCIL_QUORUM", "0")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects the config", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, key := range []string{
		"RC_ADDR",
		"RC_LOG_LEVEL",
		"RC_INTAKE_QUEUE_SIZE",
		"RC_CONFIDENCE_THRESHOLD",
		"RC_CONCENTRATION_LIMIT",
		"RC_COUNCIL_QUORUM",
		"RC_COUNCIL_DEADLINE",
		"RC_SYNTHESIS_INSIGHT_WEIGHT",
		"RC_MIN_WHISPER_TRUST",
		"RC_TRUST_TOKEN_TTL",
		"RC_HISTORY_LIMIT",
	} {
		_ = os.Unsetenv(key)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "rc-config-*.yaml")
	if err != nil {
		t.Fatalf("create temp config: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	_ = f.Close()
	return f.Name()
}
