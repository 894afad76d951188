package feed

import (
	"context"
	"time"
)

// Message is one raw message from the remote feed, before normalization.
type Message struct {
	// ID is the platform-assigned message identifier. IDs are snowflakes:
	// numerically increasing with creation time.
	ID string

	// Author is the display name of the message's author.
	Author string

	// Content is the raw message text.
	Content string

	// CreatedAt is the message creation time as reported by the platform.
	CreatedAt time.Time
}

// Client is the remote feed collaborator consumed by the poller and the
// health probe. Implementations either return data or an error; connection
// lifecycle and authentication are the implementation's concern.
type Client interface {
	// RecentMessages fetches up to limit of the channel's most recent
	// messages, newest first.
	RecentMessages(ctx context.Context, limit int) ([]Message, error)

	// Ping measures round-trip latency to the remote service.
	Ping(ctx context.Context) (time.Duration, error)
}
