// Package heartbeat drives the relay's periodic work on a graduated cadence.
//
// This package is internal to changelog-relay. A [Scheduler] fires ticks
// frequently during startup (the INITIAL phase, to catch early failures
// while the host platform is deciding whether the process is alive) and
// transitions once, irreversibly, to a longer STEADY cadence for the rest
// of the process lifetime.
//
// Each tick runs its work inside a recovery boundary: an error or panic is
// logged with a correlation ID and the next tick fires on schedule. The
// phase and tick counter are explicit state consulted before every wait,
// not branching buried in the loop.
//
// Two schedulers typically run concurrently (process liveness and feed
// health); a start offset on the second keeps their ticks from firing at
// the same wall-clock moment so log blocks never interleave.
package heartbeat
