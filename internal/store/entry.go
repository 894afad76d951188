package store

import (
	"strings"
	"time"
)

// Entry is a single normalized changelog record mirrored from the remote feed.
//
// Entry is immutable once stored. MessageID is the remote feed's opaque
// message identifier and serves as the deduplication key; it is globally
// unique within the store.
type Entry struct {
	// MessageID is the unique identifier assigned by the remote feed.
	MessageID string `json:"message_id"`

	// RawContent is the original, unformatted message text.
	RawContent string `json:"raw_content"`

	// FormattedContent is the markup-safe rendering of RawContent.
	FormattedContent string `json:"formatted_content"`

	// Author is the display name of the message's author.
	Author string `json:"author"`

	// Timestamp is the original creation time, normalized to UTC.
	Timestamp time.Time `json:"timestamp"`
}

// NewEntry builds an [Entry] from raw feed message fields.
//
// The timestamp is normalized to UTC and FormattedContent is derived from
// the raw content with [FormatContent]. Both the poller and [ChangelogStore.Load]
// construct entries through this function so that an entry rehydrated from
// disk is identical to the one originally appended.
func NewEntry(messageID, author, rawContent string, timestamp time.Time) Entry {
	ts := timestamp.UTC()
	return Entry{
		MessageID:        messageID,
		RawContent:       rawContent,
		FormattedContent: FormatContent(rawContent, author, ts),
		Author:           author,
		Timestamp:        ts,
	}
}

// FormatContent renders raw feed content as a markup-safe changelog block.
//
// The transform removes code fences (they break downstream markdown
// rendering), normalizes line endings, and frames the content with a date
// heading and author subheading:
//
//	# August 31, 2026
//	## Author Name
//
//	<content>
//
//	---
func FormatContent(raw, author string, timestamp time.Time) string {
	content := strings.ReplaceAll(raw, "```", "")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimSpace(content)

	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(timestamp.UTC().Format("January 2, 2006"))
	b.WriteString("\n## ")
	b.WriteString(author)
	b.WriteString("\n\n")
	b.WriteString(content)
	b.WriteString("\n\n---")
	return b.String()
}
