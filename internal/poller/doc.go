// Package poller refreshes the changelog cache from the remote feed.
//
// This package is internal to changelog-relay. On each scheduler tick the
// poller fetches the channel's most recent messages, filters out entries
// the store has already ingested, normalizes the remainder into changelog
// entries, and appends them in feed order. A poll with no new remote
// messages is a no-op on the store.
//
// Failure handling follows the tick contract: a fetch failure is returned
// to the scheduler (logged, retried next tick), a malformed message is
// skipped individually, and a durable-write failure is logged at error
// severity while the in-memory store stays authoritative.
package poller
