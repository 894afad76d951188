// Package server provides the relay's HTTP read surface.
//
// This package is internal to changelog-relay and exposes:
//
//   - GET /health: public liveness summary (no secrets)
//   - GET /health/detail: most recent health snapshot (authenticated)
//   - GET /feed/latest: newest changelog entry (authenticated)
//   - GET /feed/entries: history queries with ?after=<id> and ?all=true (authenticated)
//   - GET /feed/markdown: the durable changelog file itself (authenticated)
//   - GET /metrics: Prometheus exposition (public)
//
// Authenticated routes require the shared-secret token in the X-Relay-Token
// header, compared in constant time. A rejected request is a normal outcome,
// not an internal error: the response carries no store contents and the
// presented token is never logged (a masked form appears in the request log).
//
// An empty store is likewise a normal state: /feed/latest answers 200 with a
// found:false envelope rather than an error.
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
