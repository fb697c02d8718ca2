// Package config loads application configuration from environment variables
// and an optional YAML file, with defaults that let the server start against
// a local stack. Priority: environment > config file > defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds every recognized option for the orchestration core.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr" validate:"required"`
	Production bool   `mapstructure:"production"`

	LLM      LLMConfig      `mapstructure:"llm"`
	Reducer  ReducerConfig  `mapstructure:"reducer"`
	History  HistoryConfig  `mapstructure:"history"`
	Session  SessionConfig  `mapstructure:"session"`
	Guard    GuardConfig    `mapstructure:"guard"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	Upstream UpstreamConfig `mapstructure:"upstream"`

	// Disclaimers are the mandated sentences appended to replies that
	// discuss a condition or diagnosis. Empty means the built-in three.
	Disclaimers []string `mapstructure:"disclaimers"`
}

// LLMConfig configures the model backend and its failure handling.
type LLMConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model" validate:"required"`
	Temperature    float32       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gt=0"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" validate:"gt=0"`
}

// ReducerConfig bounds the reduced clinical context.
type ReducerConfig struct {
	// CeilingBytes is the maximum serialized size of a reduced context.
	CeilingBytes int `mapstructure:"ceiling_bytes" validate:"gte=1024"`
	// Priority lists categories from lowest to highest retention priority;
	// truncation drops records from the first entry onward.
	Priority []string `mapstructure:"priority" validate:"len=4,dive,oneof=encounters observations medications conditions"`
}

// HistoryConfig bounds the per-session conversation window.
type HistoryConfig struct {
	MaxTurns int `mapstructure:"max_turns" validate:"gte=2"`
	MaxChars int `mapstructure:"max_chars" validate:"gte=256"`
}

// SessionConfig controls session lifetime in the in-memory store.
type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

// GuardConfig configures the emergency guard. An empty Phrases slice keeps
// the built-in list.
type GuardConfig struct {
	Phrases []string `mapstructure:"phrases"`
}

// ToolsConfig bounds the tool-dispatch loop.
type ToolsConfig struct {
	MaxRounds     int           `mapstructure:"max_rounds" validate:"gte=1,lte=20"`
	InvokeTimeout time.Duration `mapstructure:"invoke_timeout" validate:"gt=0"`
}

// UpstreamConfig locates the external search APIs and the clinical-data
// collaborators. Credentials are shared basic-auth pairs, matching the
// upstream deployment.
type UpstreamConfig struct {
	ProviderSearchURL string `mapstructure:"provider_search_url" validate:"omitempty,url"`
	TrialSearchURL    string `mapstructure:"trial_search_url" validate:"omitempty,url"`
	FHIRUsername      string `mapstructure:"fhir_username"`
	FHIRPassword      string `mapstructure:"fhir_password"`
	PatientCSVPath    string `mapstructure:"patient_csv_path"`
}

// Load reads configuration. If path is non-empty it must point to a YAML
// file; otherwise only environment variables (prefix HEALTHCOMPANION_) and
// defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("healthcompanion")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.LLM.MaxBackoff < c.LLM.InitialBackoff {
		return fmt.Errorf("invalid configuration: llm.max_backoff below llm.initial_backoff")
	}
	return nil
}

// Default returns the built-in configuration, useful for tests.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults are statically known; Unmarshal cannot fail on them.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("production", false)

	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.request_timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.initial_backoff", 500*time.Millisecond)
	v.SetDefault("llm.max_backoff", 10*time.Second)

	v.SetDefault("reducer.ceiling_bytes", 200_000)
	v.SetDefault("reducer.priority", []string{"encounters", "observations", "medications", "conditions"})

	v.SetDefault("history.max_turns", 40)
	v.SetDefault("history.max_chars", 24_000)

	v.SetDefault("session.ttl", 2*time.Hour)

	v.SetDefault("tools.max_rounds", 5)
	v.SetDefault("tools.invoke_timeout", 30*time.Second)
}
