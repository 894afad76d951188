// Package health produces structured snapshots of process and feed health.
//
// This package is internal to changelog-relay. The probe is pure
// measurement: sampling never mutates external state (beyond its own
// sequence counter) and never fails: a stats provider error zeroes the
// affected fields and a connectivity failure is represented as a degraded
// status with no latency value, so a tick is never aborted by the probe.
package health

import (
	"context"
	"sync/atomic"
	"time"
)

// Status describes connectivity to the remote feed service.
type Status string

const (
	// StatusConnected indicates the remote service answered the ping.
	StatusConnected Status = "connected"

	// StatusDegraded indicates the ping failed; the service may be down
	// or unreachable. Transient by design, re-evaluated every sample.
	StatusDegraded Status = "degraded"
)

// Snapshot is one point-in-time health measurement.
//
// Snapshots are ephemeral: recomputed each tick, held only in the latest-
// snapshot holder for the detail endpoint, never persisted. The struct is
// formatting-free; log rendering happens elsewhere.
type Snapshot struct {
	// Sequence is a monotonic counter across the probe's lifetime.
	Sequence int64 `json:"sequence_number"`

	// Timestamp is when the sample was taken (UTC).
	Timestamp time.Time `json:"timestamp"`

	// UptimeSeconds is time elapsed since the probe was created.
	UptimeSeconds float64 `json:"uptime_seconds"`

	// MemoryMB is the process resident set size in megabytes.
	MemoryMB float64 `json:"memory_usage_mb"`

	// CPUPercent is the process CPU utilization.
	CPUPercent float64 `json:"cpu_percent"`

	// Threads is the process thread count.
	Threads int `json:"thread_count"`

	// SystemCPUPercent is host-wide CPU utilization.
	SystemCPUPercent float64 `json:"system_cpu_percent"`

	// SystemMemoryPercent is host-wide memory utilization.
	SystemMemoryPercent float64 `json:"system_memory_percent"`

	// ConnectionStatus reports reachability of the remote feed service.
	ConnectionStatus Status `json:"connection_status"`

	// LatencyMs is the feed round-trip time; nil when degraded.
	LatencyMs *float64 `json:"latency_ms,omitempty"`
}

// ProcessStats holds per-process measurements from the stats provider.
type ProcessStats struct {
	MemoryMB   float64
	CPUPercent float64
	Threads    int
}

// SystemStats holds host-wide measurements from the stats provider.
type SystemStats struct {
	CPUPercent    float64
	MemoryPercent float64
}

// StatsProvider is the process/host metrics collaborator.
type StatsProvider interface {
	Process(ctx context.Context) (ProcessStats, error)
	System(ctx context.Context) (SystemStats, error)
}

// Pinger measures round-trip latency to the remote feed service.
// [feed.Client] satisfies this.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// Probe samples process, host, and feed-connectivity health.
type Probe struct {
	stats   StatsProvider
	pinger  Pinger
	started time.Time
	seq     atomic.Int64
}

// NewProbe creates a [Probe]. Uptime is measured from this call.
func NewProbe(stats StatsProvider, pinger Pinger) *Probe {
	return &Probe{
		stats:   stats,
		pinger:  pinger,
		started: time.Now(),
	}
}

// Sample takes one health measurement. It never returns an error: provider
// failures leave the corresponding fields zeroed and a ping failure yields
// ConnectionStatus degraded with no latency.
func (p *Probe) Sample(ctx context.Context) Snapshot {
	snap := Snapshot{
		Sequence:         p.seq.Add(1),
		Timestamp:        time.Now().UTC(),
		UptimeSeconds:    time.Since(p.started).Seconds(),
		ConnectionStatus: StatusDegraded,
	}

	if proc, err := p.stats.Process(ctx); err == nil {
		snap.MemoryMB = proc.MemoryMB
		snap.CPUPercent = proc.CPUPercent
		snap.Threads = proc.Threads
	}
	if sys, err := p.stats.System(ctx); err == nil {
		snap.SystemCPUPercent = sys.CPUPercent
		snap.SystemMemoryPercent = sys.MemoryPercent
	}

	if latency, err := p.pinger.Ping(ctx); err == nil {
		snap.ConnectionStatus = StatusConnected
		ms := float64(latency.Microseconds()) / 1000.0
		snap.LatencyMs = &ms
	}

	return snap
}

// SnapshotHolder retains the most recent [Snapshot] for the detail
// endpoint. Set and Latest are safe for concurrent use; readers never
// observe a partially written snapshot.
type SnapshotHolder struct {
	current atomic.Pointer[Snapshot]
}

// NewSnapshotHolder creates an empty holder.
func NewSnapshotHolder() *SnapshotHolder {
	return &SnapshotHolder{}
}

// Set replaces the held snapshot.
func (h *SnapshotHolder) Set(snap Snapshot) {
	h.current.Store(&snap)
}

// Latest returns the most recent snapshot, or false if none was ever set.
func (h *SnapshotHolder) Latest() (Snapshot, bool) {
	p := h.current.Load()
	if p == nil {
		return Snapshot{}, false
	}
	return *p, true
}
