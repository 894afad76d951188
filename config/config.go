// Package config provides YAML configuration parsing for changelog-relay.
//
// Example configuration:
//
//	port: 8080
//	shared_secret_token: ${RELAY_TOKEN}
//
//	feed:
//	  bot_token: ${DISCORD_TOKEN}
//	  channel_id: "1234567890"
//
//	liveness:
//	  initial_interval: 30s
//	  steady_interval: 300s
//	  num_initial_beats: 5
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// minInterval is the minimum allowed heartbeat interval. This prevents
// accidental DoS of the feed service with overly aggressive polling.
const minInterval = 1 * time.Second

// Config is the root configuration structure for changelog-relay.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// SharedSecretToken authenticates callers of the read API.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	SharedSecretToken string `yaml:"shared_secret_token"`

	// Feed configures the upstream changelog feed.
	Feed FeedConfig `yaml:"feed"`

	// Store configures the durable changelog file.
	Store StoreConfig `yaml:"store"`

	// Liveness configures the process-health heartbeat scheduler.
	Liveness HeartbeatConfig `yaml:"liveness"`

	// FeedHeartbeat configures the feed-polling heartbeat scheduler.
	FeedHeartbeat HeartbeatConfig `yaml:"feed_heartbeat"`
}

// FeedConfig defines the upstream feed connection.
type FeedConfig struct {
	// BaseURL is the feed API root. Defaults to the public Discord API;
	// override it to point at a test server.
	BaseURL string `yaml:"base_url"`

	// BotToken is the bot credential used to read the channel.
	// Supports environment variable substitution.
	BotToken string `yaml:"bot_token"`

	// ChannelID is the channel to mirror.
	ChannelID string `yaml:"channel_id"`

	// PollBatchSize is how many recent messages each poll fetches.
	// Defaults to 50, capped at 100 by the feed API.
	PollBatchSize int `yaml:"poll_batch_size"`

	// Timeout is the per-request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`
}

// StoreConfig defines the durable changelog file.
type StoreConfig struct {
	// Path is the markdown file location. Defaults to "changelog.md".
	Path string `yaml:"path"`

	// MaxHistory bounds the retained entry history. Defaults to 500.
	MaxHistory int `yaml:"max_history"`
}

// HeartbeatConfig defines one graduated heartbeat scheduler.
//
// The scheduler starts in an initial phase where ticks are spaced
// InitialInterval apart; after NumInitialBeats ticks it transitions
// permanently to SteadyInterval spacing.
type HeartbeatConfig struct {
	// InitialInterval is the tick spacing during the initial phase.
	InitialInterval Duration `yaml:"initial_interval"`

	// SteadyInterval is the tick spacing after graduation.
	SteadyInterval Duration `yaml:"steady_interval"`

	// NumInitialBeats is how many ticks run at the initial spacing.
	NumInitialBeats int `yaml:"num_initial_beats"`

	// PollEvery runs the feed poll on every Nth tick. 0 or 1 means
	// every tick. Only meaningful for the feed heartbeat.
	PollEvery int `yaml:"poll_every"`

	// Offset delays the scheduler's first tick after start, so the two
	// schedulers never fire at the same wall-clock moment.
	Offset Duration `yaml:"offset"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		// submatches[2] is ":-..." (non-empty if default syntax was used)
		// submatches[3] is the actual default value (may be empty for ${VAR:-})
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the token, bot token, and feed
// base URL. Defaults are applied for everything except the shared secret,
// the bot token, and the channel ID, which are required.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Feed.BaseURL == "" {
		c.Feed.BaseURL = "https://discord.com/api/v10"
	}
	if c.Feed.PollBatchSize == 0 {
		c.Feed.PollBatchSize = 50
	}
	if c.Feed.Timeout == 0 {
		c.Feed.Timeout = Duration(10 * time.Second)
	}
	if c.Store.Path == "" {
		c.Store.Path = "changelog.md"
	}
	if c.Store.MaxHistory == 0 {
		c.Store.MaxHistory = 500
	}

	c.Liveness.applyDefaults(30*time.Second, 300*time.Second, 5, 0)
	c.FeedHeartbeat.applyDefaults(45*time.Second, 180*time.Second, 3, 15*time.Second)
	if c.FeedHeartbeat.PollEvery == 0 {
		c.FeedHeartbeat.PollEvery = 1
	}
}

func (h *HeartbeatConfig) applyDefaults(initial, steady time.Duration, beats int, offset time.Duration) {
	if h.InitialInterval == 0 {
		h.InitialInterval = Duration(initial)
	}
	if h.SteadyInterval == 0 {
		h.SteadyInterval = Duration(steady)
	}
	if h.NumInitialBeats == 0 {
		h.NumInitialBeats = beats
	}
	if h.Offset == 0 {
		h.Offset = Duration(offset)
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	expanded, err := expandEnvVars(c.SharedSecretToken)
	if err != nil {
		return fmt.Errorf("shared_secret_token: %w", err)
	}
	c.SharedSecretToken = expanded
	if c.SharedSecretToken == "" {
		return fmt.Errorf("shared_secret_token is required")
	}

	expanded, err = expandEnvVars(c.Feed.BotToken)
	if err != nil {
		return fmt.Errorf("feed: bot_token: %w", err)
	}
	c.Feed.BotToken = expanded
	if c.Feed.BotToken == "" {
		return fmt.Errorf("feed: bot_token is required")
	}

	if c.Feed.ChannelID == "" {
		return fmt.Errorf("feed: channel_id is required")
	}

	expanded, err = expandEnvVars(c.Feed.BaseURL)
	if err != nil {
		return fmt.Errorf("feed: base_url: %w", err)
	}
	c.Feed.BaseURL = expanded

	parsedURL, err := url.Parse(c.Feed.BaseURL)
	if err != nil {
		return fmt.Errorf("feed: invalid base_url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("feed: base_url scheme must be http or https, got %q", parsedURL.Scheme)
	}

	if c.Feed.PollBatchSize < 1 || c.Feed.PollBatchSize > 100 {
		return fmt.Errorf("feed: poll_batch_size must be between 1 and 100, got %d", c.Feed.PollBatchSize)
	}
	if c.Feed.Timeout.Duration() < time.Second {
		return fmt.Errorf("feed: timeout must be at least 1s, got %s", c.Feed.Timeout.Duration())
	}

	if c.Store.MaxHistory < 1 {
		return fmt.Errorf("store: max_history must be positive, got %d", c.Store.MaxHistory)
	}

	if err := c.Liveness.validate("liveness"); err != nil {
		return err
	}
	if err := c.FeedHeartbeat.validate("feed_heartbeat"); err != nil {
		return err
	}

	return nil
}

func (h *HeartbeatConfig) validate(context string) error {
	if h.InitialInterval.Duration() < minInterval {
		return fmt.Errorf("%s: initial_interval must be at least %s, got %s",
			context, minInterval, h.InitialInterval.Duration())
	}
	if h.SteadyInterval.Duration() < minInterval {
		return fmt.Errorf("%s: steady_interval must be at least %s, got %s",
			context, minInterval, h.SteadyInterval.Duration())
	}
	if h.NumInitialBeats < 1 {
		return fmt.Errorf("%s: num_initial_beats must be positive, got %d", context, h.NumInitialBeats)
	}
	if h.PollEvery < 0 {
		return fmt.Errorf("%s: poll_every cannot be negative, got %d", context, h.PollEvery)
	}
	if h.Offset.Duration() < 0 {
		return fmt.Errorf("%s: offset cannot be negative, got %s", context, h.Offset.Duration())
	}
	return nil
}
