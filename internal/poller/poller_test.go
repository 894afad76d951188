package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rulyen46/changelog-relay/internal/feed"
	"github.com/Rulyen46/changelog-relay/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClient serves canned messages, newest first, like the real feed.
type fakeClient struct {
	messages []feed.Message
	err      error
	calls    int
}

func (f *fakeClient) RecentMessages(_ context.Context, limit int) ([]feed.Message, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.messages) > limit {
		return f.messages[:limit], nil
	}
	return f.messages, nil
}

func (f *fakeClient) Ping(context.Context) (time.Duration, error) {
	return time.Millisecond, nil
}

func newTestPoller(t *testing.T, client feed.Client) (*Poller, *store.ChangelogStore) {
	t.Helper()
	st := store.New(filepath.Join(t.TempDir(), "changelog.md"))
	return New(client, st, 50, testLogger(), nil), st
}

func TestPollIngestsInFeedOrder(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{messages: []feed.Message{
		{ID: "B", Author: "bob", Content: "newer entry", CreatedAt: base.Add(time.Hour)},
		{ID: "A", Author: "alice", Content: "older entry", CreatedAt: base},
	}}
	p, st := newTestPoller(t, client)

	added, err := p.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, added, 2)

	// oldest new entry first, deterministic append order
	assert.Equal(t, "A", added[0].MessageID)
	assert.Equal(t, "B", added[1].MessageID)

	latest, ok := st.Latest()
	require.True(t, ok)
	assert.Equal(t, "B", latest.MessageID)
}

func TestPollIsIdempotent(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{messages: []feed.Message{
		{ID: "B", Author: "bob", Content: "newer entry", CreatedAt: base.Add(time.Hour)},
		{ID: "A", Author: "alice", Content: "older entry", CreatedAt: base},
	}}
	p, st := newTestPoller(t, client)

	first, err := p.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)

	// the remote returns the same two messages again
	second, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second, "re-polling identical remote content must be a no-op")
	assert.Equal(t, 2, st.Len())

	latest, _ := st.Latest()
	assert.Equal(t, "B", latest.MessageID)
}

func TestPollFetchFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("connection reset")}
	p, st := newTestPoller(t, client)

	added, err := p.Poll(context.Background())
	assert.Error(t, err)
	assert.Empty(t, added)
	assert.Equal(t, 0, st.Len(), "a failed fetch must not touch the store")
}

func TestPollRecoversAfterTransientFailure(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{err: errors.New("rate limited")}
	p, st := newTestPoller(t, client)

	_, err := p.Poll(context.Background())
	require.Error(t, err)

	// condition clears before the next tick
	client.err = nil
	client.messages = []feed.Message{
		{ID: "A", Author: "alice", Content: "patch", CreatedAt: base},
	}

	added, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Len(t, added, 1)
	assert.Equal(t, 1, st.Len())
}

func TestPollSkipsMalformedMessages(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{messages: []feed.Message{
		{ID: "3", Author: "carol", Content: "valid entry", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "2", Author: "bob", Content: "no timestamp"}, // zero CreatedAt
		{ID: "1", Author: "alice", Content: "   ", CreatedAt: base},
	}}
	p, st := newTestPoller(t, client)

	added, err := p.Poll(context.Background())
	require.NoError(t, err, "malformed messages must not abort the batch")
	require.Len(t, added, 1)
	assert.Equal(t, "3", added[0].MessageID)
	assert.Equal(t, 1, st.Len())
}

func TestPollRespectsBatchSize(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	messages := make([]feed.Message, 10)
	for i := range messages {
		messages[i] = feed.Message{
			ID:        string(rune('a' + i)),
			Author:    "dev",
			Content:   "entry",
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		}
	}
	st := store.New(filepath.Join(t.TempDir(), "changelog.md"))
	client := &fakeClient{messages: messages}
	p := New(client, st, 3, testLogger(), nil)

	added, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Len(t, added, 3)
}
