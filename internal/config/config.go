// Package config defines engine configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with documented defaults.
// - Policy knobs (thresholds, quorum, blend weights) live here, not in code.
// - External errors are wrapped via this package's sentinel errors.
package config

import (
	"time"
)

// Config contains process configuration for the allocation engine.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9180".
	Addr string `koanf:"addr"`

	// IntakeQueueSize bounds the in-memory intake queue.
	IntakeQueueSize int `koanf:"intake_queue_size"`

	// ConfidenceThreshold is the minimum proposal confidence for direct
	// execution; below it a council is convened.
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`

	// ConcentrationLimit is the share of total proposed volume a single
	// donor-cause cell may carry before escalation triggers regardless of
	// confidence.
	ConcentrationLimit float64 `koanf:"concentration_limit"`

	// CouncilQuorum is the number of advisor insights required before
	// synthesis runs.
	CouncilQuorum int `koanf:"council_quorum"`

	// CouncilDeadline bounds how long a council session may stay open.
	// On expiry the original proposal executes un-synthesized.
	CouncilDeadline time.Duration `koanf:"council_deadline"`

	// SynthesisInsightWeight is the weight given to the mean of advisor
	// recommendations in the blend; the original proposal carries the
	// remaining 1 - weight.
	SynthesisInsightWeight float64 `koanf:"synthesis_insight_weight"`

	// MinWhisperTrust is the minimum trust-token confidence required for
	// point-to-point notifications.
	MinWhisperTrust float64 `koanf:"min_whisper_trust"`

	// TrustTokenTTL is the lifetime of a granted trust token.
	TrustTokenTTL time.Duration `koanf:"trust_token_ttl"`

	// HistoryLimit caps how many allocation events are retained for
	// dashboard snapshots.
	HistoryLimit int `koanf:"history_limit"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":9180",
		IntakeQueueSize:        4096,
		ConfidenceThreshold:    0.7,
		ConcentrationLimit:     0.3,
		CouncilQuorum:          3,
		CouncilDeadline:        30 * time.Second,
		SynthesisInsightWeight: 0.7,
		MinWhisperTrust:        0.4,
		TrustTokenTTL:          10 * time.Minute,
		HistoryLimit:           256,
	}
}

// SynthesisProposalWeight is always the complement of the insight weight.
func (c *Config) SynthesisProposalWeight() float64 {
	return 1 - c.SynthesisInsightWeight
}
