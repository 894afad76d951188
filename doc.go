// Package relay mirrors a changelog feed channel into a durable markdown
// file and serves it over a token-authenticated HTTP read API.
//
// The relay polls the most recent messages of a single feed channel,
// deduplicates them by message ID, appends new entries to an ordered
// in-memory history, and persists the history to a human-readable
// changelog.md after every ingest. Two graduated heartbeat schedulers run
// concurrently: a liveness heartbeat that samples process and feed health,
// and a feed heartbeat that drives the polling. Both start on a short
// cadence and relax permanently to a steady interval after a configured
// number of beats.
//
// # Quick Start
//
// Load a configuration and run the relay with graceful shutdown:
//
//	cfg, _ := config.Load("relay.yaml")
//	r, _ := relay.New(cfg)
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	r.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// Configuration comes from a YAML file parsed by the config package;
// collaborators can be overridden with functional options, which is mainly
// useful in tests:
//
//	r, err := relay.New(cfg,
//	    relay.WithLogger(logger),
//	    relay.WithFeedClient(fakeClient),
//	)
//
// # Architecture
//
// The relay consists of several internal packages (under internal/):
//
//   - internal/feed: HTTP client for the upstream feed service
//   - internal/store: changelog history with markdown file persistence
//   - internal/poller: dedup-aware ingest of new feed messages
//   - internal/heartbeat: two-phase graduated tick scheduler
//   - internal/health: process, host, and connectivity snapshots
//   - internal/server: token-authenticated HTTP read API
//   - internal/metrics: Prometheus counters behind a small interface
//
// The internal packages are not part of the public API and may change
// without notice.
package relay
