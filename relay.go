package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Rulyen46/changelog-relay/config"
	"github.com/Rulyen46/changelog-relay/internal/feed"
	"github.com/Rulyen46/changelog-relay/internal/health"
	"github.com/Rulyen46/changelog-relay/internal/heartbeat"
	"github.com/Rulyen46/changelog-relay/internal/metrics"
	"github.com/Rulyen46/changelog-relay/internal/poller"
	"github.com/Rulyen46/changelog-relay/internal/server"
	"github.com/Rulyen46/changelog-relay/internal/store"
)

const (
	livenessName = "LIVENESS"
	feedName     = "CHANGELOG FEED"
)

// Relay is the main orchestrator for changelog mirroring and the read API.
//
// Relay coordinates the feed poller, the two heartbeat schedulers, the
// durable changelog store, and the HTTP server. It is created with [New]
// and started with [Relay.Start].
//
// The typical lifecycle is:
//
//	r, err := relay.New(cfg)
//	if err != nil {
//	    slog.Error("failed to create relay", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	r.Start(ctx) // blocks until context cancelled
//
// The caller controls the lifecycle via the context. Cancel the context to
// trigger graceful shutdown.
type Relay struct {
	cfg       *config.Config
	logger    *slog.Logger
	out       io.Writer
	feed      feed.Client
	stats     health.StatsProvider
	collector metrics.Collector

	// metricsHandler is non-nil only when the relay owns the default
	// Prometheus registry and should serve /metrics itself.
	metricsHandler http.Handler
}

// New creates a new [Relay] from a parsed configuration.
//
// The configuration must come from [config.Parse] or [config.Load] so that
// defaults and validation have been applied. Options override individual
// collaborators, which is mainly useful in tests.
func New(cfg *config.Config, opts ...Option) (*Relay, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	rc := &relayConfig{}
	for _, opt := range opts {
		if err := opt(rc); err != nil {
			return nil, err
		}
	}

	logger := rc.logger
	if logger == nil {
		logger = slog.Default()
	}
	out := rc.out
	if out == nil {
		out = os.Stdout
	}

	r := &Relay{
		cfg:       cfg,
		logger:    logger,
		out:       out,
		feed:      rc.feed,
		stats:     rc.stats,
		collector: rc.collector,
	}

	if r.collector == nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		r.collector = metrics.NewPrometheus(reg)
		r.metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	return r, nil
}

// Start runs the relay until the provided context is cancelled.
//
// During execution:
//
//   - The changelog store is rehydrated from the durable file
//   - One immediate poll backfills the store before steady operation
//   - The liveness and feed heartbeat schedulers run concurrently
//   - The HTTP read API serves on the configured port
//
// Returns nil on graceful shutdown. Returns an error if a collaborator or
// the HTTP server fails to start.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("changelog relay starting",
		"port", r.cfg.Port,
		"channel_id", r.cfg.Feed.ChannelID,
		"store_path", r.cfg.Store.Path,
	)

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	st := store.New(r.cfg.Store.Path, store.WithMaxHistory(r.cfg.Store.MaxHistory))
	loaded, skipped, err := st.Load()
	if err != nil {
		return fmt.Errorf("failed to load changelog store: %w", err)
	}
	r.logger.Info("changelog store loaded", "entries", loaded, "skipped", skipped)

	client := r.feed
	if client == nil {
		dc := feed.NewDiscordClient(
			r.cfg.Feed.BaseURL,
			r.cfg.Feed.BotToken,
			r.cfg.Feed.ChannelID,
			r.cfg.Feed.Timeout.Duration(),
		)
		defer dc.Close()
		client = dc
	}

	stats := r.stats
	if stats == nil {
		provider, err := health.NewGopsutilProvider()
		if err != nil {
			return fmt.Errorf("failed to initialize stats provider: %w", err)
		}
		stats = provider
	}

	probe := health.NewProbe(stats, client)
	holder := health.NewSnapshotHolder()
	p := poller.New(client, st, r.cfg.Feed.PollBatchSize, r.logger, r.collector)

	// backfill before the schedulers take over so the API never serves an
	// empty store when the feed already has history
	if added, err := p.Poll(ctx); err != nil {
		r.logger.Warn("startup backfill failed, continuing", "error", err)
	} else {
		r.logger.Info("startup backfill complete", "new_entries", len(added))
	}

	liveness := heartbeat.NewScheduler(heartbeat.Config{
		Name:            livenessName,
		InitialInterval: r.cfg.Liveness.InitialInterval.Duration(),
		SteadyInterval:  r.cfg.Liveness.SteadyInterval.Duration(),
		NumInitialBeats: r.cfg.Liveness.NumInitialBeats,
		Offset:          r.cfg.Liveness.Offset.Duration(),
	}, func(ctx context.Context, tick int) ([]string, error) {
		snap := probe.Sample(ctx)
		holder.Set(snap)
		return snapshotLines(snap), nil
	}, r.logger, r.collector, r.out)

	pollEvery := r.cfg.FeedHeartbeat.PollEvery
	feedHB := heartbeat.NewScheduler(heartbeat.Config{
		Name:            feedName,
		InitialInterval: r.cfg.FeedHeartbeat.InitialInterval.Duration(),
		SteadyInterval:  r.cfg.FeedHeartbeat.SteadyInterval.Duration(),
		NumInitialBeats: r.cfg.FeedHeartbeat.NumInitialBeats,
		Offset:          r.cfg.FeedHeartbeat.Offset.Duration(),
	}, func(ctx context.Context, tick int) ([]string, error) {
		snap := probe.Sample(ctx)
		holder.Set(snap)

		connection := fmt.Sprintf("Feed connection: %s", snap.ConnectionStatus)
		if !pollDue(tick, pollEvery) {
			return []string{connection, fmt.Sprintf("Poll skipped (runs every %d ticks)", pollEvery)}, nil
		}
		added, err := p.Poll(ctx)
		if err != nil {
			return nil, err
		}
		return append([]string{connection}, feedLines(st, added)...), nil
	}, r.logger, r.collector, r.out)

	liveness.Start(ctx)
	feedHB.Start(ctx)

	cleanup := func() {
		feedHB.Stop()
		liveness.Stop()
	}

	httpServer := server.NewServer(st, holder, r.cfg.SharedSecretToken, r.cfg.Port, r.metricsHandler, r.logger)
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	cleanup()
	r.logger.Info("changelog relay stopped")
	return nil
}

// pollDue reports whether the feed poll should run on this tick.
// every values below 2 mean every tick; the first tick always polls.
func pollDue(tick, every int) bool {
	if every < 2 {
		return true
	}
	return (tick-1)%every == 0
}

// snapshotLines renders one health snapshot as heartbeat block lines.
func snapshotLines(snap health.Snapshot) []string {
	connection := string(snap.ConnectionStatus)
	if snap.LatencyMs != nil {
		connection = fmt.Sprintf("%s (latency %.1f ms)", connection, *snap.LatencyMs)
	}
	return []string{
		fmt.Sprintf("Uptime: %s", (time.Duration(snap.UptimeSeconds * float64(time.Second))).Round(time.Second)),
		fmt.Sprintf("Memory: %.1f MB | CPU: %.1f%% | Threads: %d", snap.MemoryMB, snap.CPUPercent, snap.Threads),
		fmt.Sprintf("System: CPU %.1f%% | Memory %.1f%%", snap.SystemCPUPercent, snap.SystemMemoryPercent),
		fmt.Sprintf("Feed connection: %s", connection),
	}
}

// feedLines renders one poll's outcome as heartbeat block lines.
func feedLines(st *store.ChangelogStore, added []store.Entry) []string {
	lines := make([]string, 0, 2)
	if len(added) == 0 {
		lines = append(lines, "No new changelog entries")
	} else {
		lines = append(lines, fmt.Sprintf("New entries: %d (latest %s by %s)",
			len(added), added[len(added)-1].MessageID, added[len(added)-1].Author))
	}
	lines = append(lines, fmt.Sprintf("Entries tracked: %d", st.Len()))
	return lines
}
