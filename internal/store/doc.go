// Package store provides the durable changelog cache for the relay.
//
// This package is internal to changelog-relay and holds the mirrored feed
// entries: an ordered in-memory history, the latest entry, and the set of
// message IDs that have ever been ingested (used for deduplication). Every
// successful append is persisted synchronously to a human-readable markdown
// file so the cache survives restarts and can be inspected by operators.
//
// The main components are:
//
//   - [Entry]: A single normalized changelog record
//   - [ChangelogStore]: Thread-safe store with markdown-file persistence
//   - [ErrDuplicate]: Sentinel returned when an entry was already ingested
//
// The store is the only mutable state shared between the polling loop and
// the read API. Reads are safe to call concurrently with appends; the file
// is replaced atomically (write-temp-then-rename) so a reader on restart
// never observes a partially written file.
package store
