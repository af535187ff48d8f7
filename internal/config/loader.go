package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if RC_CONFIG is set
//  3. env (prefix RC_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("RC_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: RC_ADDR, RC_COUNCIL_QUORUM, ...
	// Map env keys like RC_COUNCIL_QUORUM -> council_quorum (flat keys).
	envProvider := env.Provider("RC_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "rc_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.IntakeQueueSize <= 0:
		return fmt.Errorf("%w: intake_queue_size must be positive", ErrInvalidConfig)
	case c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1:
		return fmt.Errorf("%w: confidence_threshold must be in [0,1]", ErrInvalidConfig)
	case c.ConcentrationLimit <= 0 || c.ConcentrationLimit > 1:
		return fmt.Errorf("%w: concentration_limit must be in (0,1]", ErrInvalidConfig)
	case c.CouncilQuorum <= 0:
		return fmt.Errorf("%w: council_quorum must be positive", ErrInvalidConfig)
	case c.CouncilDeadline <= 0:
		return fmt.Errorf("%w: council_deadline must be positive", ErrInvalidConfig)
	case c.SynthesisInsightWeight < 0 || c.SynthesisInsightWeight > 1:
		return fmt.Errorf("%w: synthesis_insight_weight must be in [0,1]", ErrInvalidConfig)
	case c.MinWhisperTrust < 0 || c.MinWhisperTrust > 1:
		return fmt.Errorf("%w: min_whisper_trust must be in [0,1]", ErrInvalidConfig)
	case c.TrustTokenTTL <= 0:
		return fmt.Errorf("%w: trust_token_ttl must be positive", ErrInvalidConfig)
	case c.HistoryLimit <= 0:
		return fmt.Errorf("%w: history_limit must be positive", ErrInvalidConfig)
	}
	return nil
}
