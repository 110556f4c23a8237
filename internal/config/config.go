// Package config defines service configuration and its loading.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/readcoach/internal/domain/session"
	"github.com/okian/readcoach/internal/domain/srs"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// DBPath is the sqlite file. Empty keeps all data in memory.
	DBPath string `koanf:"db_path"`

	OpenAIAPIKey          string        `koanf:"openai_api_key"`
	OpenAIBaseURL         string        `koanf:"openai_base_url"`
	ChatModel             string        `koanf:"chat_model"`
	TranscriptionModel    string        `koanf:"transcription_model"`
	TranscriptionLanguage string        `koanf:"transcription_language"`
	LLMMaxRetries         int           `koanf:"llm_max_retries"`
	LLMTimeout            time.Duration `koanf:"llm_timeout"`
	TranscriptionTimeout  time.Duration `koanf:"transcription_timeout"`
	MaxAudioBytes         int64         `koanf:"max_audio_bytes"`

	// QuestionCount is the default number of questions per session.
	QuestionCount int `koanf:"question_count"`
	// VocabularyMax caps words extracted from one passage.
	VocabularyMax int `koanf:"vocabulary_max"`
	// LookupConcurrency and LookupTimeout bound the definition lookups of
	// one extraction. The timeout must leave room in the HTTP write timeout.
	LookupConcurrency int           `koanf:"lookup_concurrency"`
	LookupTimeout     time.Duration `koanf:"lookup_timeout"`

	// ScoringWeights maps dimension names to weights; missing dimensions
	// keep a weight of 1.
	ScoringWeights map[string]float64 `koanf:"scoring_weights"`

	SRSAgainInterval  time.Duration `koanf:"srs_again_interval"`
	SRSBaseInterval   time.Duration `koanf:"srs_base_interval"`
	SRSMinInterval    time.Duration `koanf:"srs_min_interval"`
	SRSMaxInterval    time.Duration `koanf:"srs_max_interval"`
	SRSHardMultiplier float64       `koanf:"srs_hard_multiplier"`
	SRSGoodMultiplier float64       `koanf:"srs_good_multiplier"`
	SRSEasyMultiplier float64       `koanf:"srs_easy_multiplier"`

	// RecentWindow is the number of sessions in the recent trend mean.
	RecentWindow int `koanf:"recent_window"`
	// StableThreshold is the trend delta below which progress is stable.
	StableThreshold float64 `koanf:"stable_threshold"`
	// Timezone names the location for daily and weekly activity buckets.
	Timezone string `koanf:"timezone"`

	// ReminderInterval is the due-review check period; 0 disables it.
	ReminderInterval time.Duration `koanf:"reminder_interval"`

	// JWTSecret signs access tokens. When empty a random secret is
	// generated at startup and tokens do not survive restarts.
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`

	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`
	// MetricsLabels are constant labels added to every metric.
	MetricsLabels map[string]string `koanf:"metrics_labels"`
	// HTTPLatencyBuckets overrides the request duration histogram buckets.
	HTTPLatencyBuckets []float64 `koanf:"http_latency_buckets"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	p := srs.DefaultPolicy()
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		ShutdownTimeout:       10 * time.Second,
		ChatModel:             "gpt-4o-mini",
		TranscriptionModel:    "whisper-1",
		TranscriptionLanguage: "en",
		LLMMaxRetries:         3,
		LLMTimeout:            30 * time.Second,
		TranscriptionTimeout:  60 * time.Second,
		MaxAudioBytes:         25 << 20,
		QuestionCount:         5,
		VocabularyMax:         8,
		LookupConcurrency:     4,
		LookupTimeout:         60 * time.Second,
		ScoringWeights: map[string]float64{
			"accuracy":     1,
			"completeness": 1,
			"clarity":      1,
			"language":     1,
		},
		SRSAgainInterval:  p.AgainInterval,
		SRSBaseInterval:   p.BaseInterval,
		SRSMinInterval:    p.MinInterval,
		SRSMaxInterval:    p.MaxInterval,
		SRSHardMultiplier: p.HardMultiplier,
		SRSGoodMultiplier: p.GoodMultiplier,
		SRSEasyMultiplier: p.EasyMultiplier,
		RecentWindow:      5,
		StableThreshold:   2,
		Timezone:          "UTC",
		ReminderInterval:  time.Hour,
		TokenTTL:          24 * time.Hour,
		MetricsNamespace:  "readcoach",
		MetricsSubsystem:  "practice",
	}
}

// SRSPolicy returns the review policy described by the config.
func (c *Config) SRSPolicy() srs.Policy {
	return srs.Policy{
		AgainInterval:  c.SRSAgainInterval,
		BaseInterval:   c.SRSBaseInterval,
		MinInterval:    c.SRSMinInterval,
		MaxInterval:    c.SRSMaxInterval,
		HardMultiplier: c.SRSHardMultiplier,
		GoodMultiplier: c.SRSGoodMultiplier,
		EasyMultiplier: c.SRSEasyMultiplier,
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %w", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Validate checks values that no downstream constructor checks.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QuestionCount < 1 || c.QuestionCount > session.MaxQuestionCount:
		return fmt.Errorf("%w: question_count must be within 1..%d", ErrInvalidConfig, session.MaxQuestionCount)
	case c.VocabularyMax < 1:
		return fmt.Errorf("%w: vocabulary_max must be positive", ErrInvalidConfig)
	case c.LookupConcurrency < 1:
		return fmt.Errorf("%w: lookup_concurrency must be positive", ErrInvalidConfig)
	case c.LookupTimeout <= 0:
		return fmt.Errorf("%w: lookup_timeout must be positive", ErrInvalidConfig)
	case c.TranscriptionTimeout <= 0:
		return fmt.Errorf("%w: transcription_timeout must be positive", ErrInvalidConfig)
	case c.MaxAudioBytes <= 0:
		return fmt.Errorf("%w: max_audio_bytes must be positive", ErrInvalidConfig)
	case c.RecentWindow < 1:
		return fmt.Errorf("%w: recent_window must be positive", ErrInvalidConfig)
	case c.StableThreshold < 0:
		return fmt.Errorf("%w: stable_threshold must not be negative", ErrInvalidConfig)
	case c.ReminderInterval < 0:
		return fmt.Errorf("%w: reminder_interval must not be negative", ErrInvalidConfig)
	case c.TokenTTL <= 0:
		return fmt.Errorf("%w: token_ttl must be positive", ErrInvalidConfig)
	case c.JWTSecret != "" && len(c.JWTSecret) < 16:
		return fmt.Errorf("%w: jwt_secret must be at least 16 bytes", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if err := c.SRSPolicy().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
