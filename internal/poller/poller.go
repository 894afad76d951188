package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Rulyen46/changelog-relay/internal/feed"
	"github.com/Rulyen46/changelog-relay/internal/metrics"
	"github.com/Rulyen46/changelog-relay/internal/store"
)

// Poller mirrors new feed messages into the changelog store.
//
// Poller is stateless between calls; deduplication state lives in the
// store's seen-ID set, so running two polls over identical remote content
// yields zero new entries the second time.
type Poller struct {
	client    feed.Client
	store     *store.ChangelogStore
	batchSize int
	logger    *slog.Logger
	metrics   metrics.Collector
}

// New creates a [Poller].
//
// batchSize bounds how many recent messages each poll fetches, keeping
// polling cost constant regardless of channel history length. metrics may
// be nil, in which case a no-op collector is used.
func New(client feed.Client, st *store.ChangelogStore, batchSize int, logger *slog.Logger, collector metrics.Collector) *Poller {
	if collector == nil {
		collector = metrics.NewNop()
	}
	return &Poller{
		client:    client,
		store:     st,
		batchSize: batchSize,
		logger:    logger,
		metrics:   collector,
	}
}

// Poll fetches the most recent feed messages and appends the unseen ones
// to the store, oldest first. It returns the newly added entries in append
// order; an empty result with a nil error means nothing new was found.
//
// A fetch failure is returned as an error and means zero new entries this
// tick; the condition is transient and the next tick retries. Individual
// malformed messages are skipped with a warning and never abort the batch.
func (p *Poller) Poll(ctx context.Context) ([]store.Entry, error) {
	messages, err := p.client.RecentMessages(ctx, p.batchSize)
	if err != nil {
		p.metrics.FetchFailed()
		return nil, fmt.Errorf("poll feed: %w", err)
	}

	// the feed returns newest first; append in original feed order
	added := make([]store.Entry, 0)
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]

		if p.store.Seen(msg.ID) {
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			p.logger.Warn("skipping feed message with empty content", "message_id", msg.ID)
			continue
		}
		if msg.CreatedAt.IsZero() {
			p.logger.Warn("skipping feed message with unparseable timestamp",
				"message_id", msg.ID, "author", msg.Author)
			continue
		}

		entry := store.NewEntry(msg.ID, msg.Author, msg.Content, msg.CreatedAt)
		switch err := p.store.Append(entry); {
		case errors.Is(err, store.ErrDuplicate):
			// raced with an earlier ingest of the same ID; nothing to do
			continue
		case err != nil:
			// the entry is in memory but not on disk; a restart may lose it
			p.metrics.PersistFailed()
			p.logger.Error("changelog persistence failed, in-memory store remains authoritative",
				"message_id", entry.MessageID, "error", err)
		}
		added = append(added, entry)
	}

	if len(added) > 0 {
		p.metrics.EntriesIngested(len(added))
		p.logger.Info("ingested new changelog entries",
			"count", len(added),
			"latest_id", added[len(added)-1].MessageID,
		)
	}
	return added, nil
}
