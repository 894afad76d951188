package relay

import (
	"errors"
	"io"
	"log/slog"

	"github.com/Rulyen46/changelog-relay/internal/feed"
	"github.com/Rulyen46/changelog-relay/internal/health"
	"github.com/Rulyen46/changelog-relay/internal/metrics"
)

// relayConfig holds mutable state during Relay construction.
type relayConfig struct {
	logger    *slog.Logger
	out       io.Writer
	feed      feed.Client
	stats     health.StatsProvider
	collector metrics.Collector
}

// Option is a function that configures a [Relay] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithLogger], [WithOutput], [WithFeedClient],
// [WithStatsProvider], [WithCollector].
type Option func(*relayConfig) error

// WithLogger sets a custom [slog.Logger] for the Relay instance.
//
// This allows consumers to control where logs are written and in what
// format. If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *relayConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithOutput sets the writer that receives the framed heartbeat blocks.
//
// Heartbeat blocks are human-oriented and separate from structured logs.
// Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(cfg *relayConfig) error {
		if w == nil {
			return errors.New("output writer cannot be nil")
		}
		cfg.out = w
		return nil
	}
}

// WithFeedClient replaces the default feed client.
//
// Primarily useful in tests, where a fake client avoids talking to the
// real feed service. If not specified, a client is built from the feed
// section of the configuration.
func WithFeedClient(c feed.Client) Option {
	return func(cfg *relayConfig) error {
		if c == nil {
			return errors.New("feed client cannot be nil")
		}
		cfg.feed = c
		return nil
	}
}

// WithStatsProvider replaces the default process/host stats provider.
func WithStatsProvider(p health.StatsProvider) Option {
	return func(cfg *relayConfig) error {
		if p == nil {
			return errors.New("stats provider cannot be nil")
		}
		cfg.stats = p
		return nil
	}
}

// WithCollector replaces the default Prometheus metrics collector.
//
// When a custom collector is supplied the /metrics endpoint is not
// registered; the caller owns exposition.
func WithCollector(c metrics.Collector) Option {
	return func(cfg *relayConfig) error {
		if c == nil {
			return errors.New("collector cannot be nil")
		}
		cfg.collector = c
		return nil
	}
}
