package store

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// ErrDuplicate is returned by [ChangelogStore.Append] when the entry's
// message ID has already been ingested. Duplicate appends are no-ops.
var ErrDuplicate = errors.New("entry already ingested")

const (
	defaultMaxHistory = 500

	fileHeader = "# Changelog\n\n"
)

// entryPattern matches one persisted entry block in the changelog file.
// Groups: 1=message ID, 2=author, 3=date, 4=body (up to the "---" rule).
var entryPattern = regexp.MustCompile(
	`## Entry (\S+)\n\*\*Author:\*\* (.*)\n\*\*Date:\*\* (.*)\n\n([\s\S]*?)\n\n---\n`)

// ChangelogStore holds the mirrored changelog entries.
//
// The store keeps an ordered history (oldest first, bounded by the history
// limit), the latest entry, and the full set of message IDs ever ingested.
// Trimming old entries from history never removes their IDs from the seen
// set, so deduplication always covers the polling window.
//
// All methods are safe for concurrent use. The intended write model is a
// single writer (the feed poller) with any number of concurrent readers
// (the HTTP handlers).
type ChangelogStore struct {
	path       string
	maxHistory int

	// seen is lock-free so the poller can filter already-ingested IDs
	// without contending with readers of the history.
	seen *xsync.MapOf[string, struct{}]

	mu      sync.RWMutex
	entries []Entry
	latest  *Entry

	// fileMu serializes render+write so a slower writer can never replace
	// the file with a stale snapshot.
	fileMu sync.Mutex
}

// StoreOption configures a [ChangelogStore] during construction.
type StoreOption func(*ChangelogStore)

// WithMaxHistory bounds the in-memory (and on-file) history length.
// Values below 1 fall back to the default of 500.
func WithMaxHistory(n int) StoreOption {
	return func(s *ChangelogStore) {
		if n > 0 {
			s.maxHistory = n
		}
	}
}

// New creates an empty [ChangelogStore] backed by the markdown file at path.
//
// The store starts empty; call [ChangelogStore.Load] to rehydrate state from
// an existing file.
func New(path string, opts ...StoreOption) *ChangelogStore {
	s := &ChangelogStore{
		path:       path,
		maxHistory: defaultMaxHistory,
		seen:       xsync.NewMapOf[string, struct{}](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the durable file path backing this store.
func (s *ChangelogStore) Path() string {
	return s.path
}

// Seen reports whether the given message ID has ever been ingested.
func (s *ChangelogStore) Seen(messageID string) bool {
	_, ok := s.seen.Load(messageID)
	return ok
}

// Len returns the number of entries currently held in history.
func (s *ChangelogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Latest returns the newest entry by feed order, or false if the store has
// never observed an entry. Safe to call concurrently with Append.
func (s *ChangelogStore) Latest() (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Entry{}, false
	}
	return *s.latest, true
}

// Entries returns a copy of the current history, oldest first.
func (s *ChangelogStore) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// EntriesAfter returns all entries whose message ID is strictly newer than
// the given reference ID, oldest first. Message IDs are compared numerically
// when both parse as integers (feed IDs are snowflakes), otherwise as strings.
func (s *ChangelogStore) EntriesAfter(messageID string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0)
	for _, e := range s.entries {
		if idAfter(e.MessageID, messageID) {
			out = append(out, e)
		}
	}
	return out
}

// idAfter reports whether id sorts strictly after ref.
func idAfter(id, ref string) bool {
	a, errA := strconv.ParseUint(id, 10, 64)
	b, errB := strconv.ParseUint(ref, 10, 64)
	if errA == nil && errB == nil {
		return a > b
	}
	return id > ref
}

// Append ingests a new entry and persists the store to the durable file.
//
// Returns [ErrDuplicate] (a no-op) if the entry's message ID was already
// ingested. On success the entry joins the history, the latest pointer is
// updated unless the entry is older than the current latest, and the file
// is rewritten atomically.
//
// A non-nil error that is not ErrDuplicate means the durable write failed;
// the in-memory state has still been updated and remains authoritative for
// the life of the process, but the entry is at risk across a restart.
func (s *ChangelogStore) Append(e Entry) error {
	if _, loaded := s.seen.LoadOrStore(e.MessageID, struct{}{}); loaded {
		return ErrDuplicate
	}

	s.mu.Lock()
	s.entries = append(s.entries, e)
	if len(s.entries) > s.maxHistory {
		s.entries = s.entries[len(s.entries)-s.maxHistory:]
	}
	if s.latest == nil || !e.Timestamp.Before(s.latest.Timestamp) {
		latest := e
		s.latest = &latest
	}
	s.mu.Unlock()

	if err := s.save(); err != nil {
		return fmt.Errorf("persist changelog: %w", err)
	}
	return nil
}

// Load rehydrates the store from the durable file.
//
// A missing file is not an error; the store simply starts empty. Entries
// that fail to parse are skipped and counted in the second return value.
// Returns the number of entries loaded.
func (s *ChangelogStore) Load() (loaded, skipped int, err error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("read changelog file: %w", err)
	}

	matches := entryPattern.FindAllStringSubmatch(string(data), -1)
	entries := make([]Entry, 0, len(matches))
	for _, m := range matches {
		ts, perr := time.Parse(time.RFC3339, strings.TrimSpace(m[3]))
		if perr != nil {
			skipped++
			continue
		}
		entries = append(entries, NewEntry(m[1], m[2], m[4], ts))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(entries) > s.maxHistory {
		entries = entries[len(entries)-s.maxHistory:]
	}
	s.entries = entries
	s.latest = nil
	for i := range entries {
		e := entries[i]
		s.seen.Store(e.MessageID, struct{}{})
		if s.latest == nil || !e.Timestamp.Before(s.latest.Timestamp) {
			s.latest = &entries[i]
		}
	}
	return len(entries), skipped, nil
}

// save renders the full store and replaces the durable file atomically.
func (s *ChangelogStore) save() error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	s.mu.RLock()
	content := render(s.entries)
	s.mu.RUnlock()

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		// best effort cleanup; the original file is untouched
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// render produces the markdown file representation: a header followed by
// one block per entry, oldest first, so new entries append at the bottom
// and the file stays human-diffable.
func render(entries []Entry) string {
	var b strings.Builder
	b.WriteString(fileHeader)
	for _, e := range entries {
		b.WriteString("## Entry ")
		b.WriteString(e.MessageID)
		b.WriteString("\n**Author:** ")
		b.WriteString(e.Author)
		b.WriteString("\n**Date:** ")
		b.WriteString(e.Timestamp.UTC().Format(time.RFC3339))
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(e.RawContent))
		b.WriteString("\n\n---\n\n")
	}
	return b.String()
}
