// Package feed provides access to the remote append-only message feed.
//
// This package is internal to changelog-relay and wraps the chat platform's
// REST API behind a small interface the poller consumes. The relay does not
// manage the platform's gateway connection, event model, or reconnection;
// it only fetches the most recent messages of one channel over plain HTTP
// and measures connectivity latency.
//
// The main components are:
//
//   - [Message]: One raw feed message as returned by the remote API
//   - [Client]: The interface the poller and health probe consume
//   - [DiscordClient]: HTTP implementation against the Discord REST API
package feed
