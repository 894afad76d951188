package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct {
	procErr error
	sysErr  error
}

func (f *fakeStats) Process(context.Context) (ProcessStats, error) {
	if f.procErr != nil {
		return ProcessStats{}, f.procErr
	}
	return ProcessStats{MemoryMB: 42.5, CPUPercent: 3.2, Threads: 12}, nil
}

func (f *fakeStats) System(context.Context) (SystemStats, error) {
	if f.sysErr != nil {
		return SystemStats{}, f.sysErr
	}
	return SystemStats{CPUPercent: 25.0, MemoryPercent: 60.0}, nil
}

type fakePinger struct {
	latency time.Duration
	err     error
}

func (f *fakePinger) Ping(context.Context) (time.Duration, error) {
	return f.latency, f.err
}

func TestSampleHealthy(t *testing.T) {
	probe := NewProbe(&fakeStats{}, &fakePinger{latency: 30 * time.Millisecond})

	snap := probe.Sample(context.Background())

	assert.Equal(t, int64(1), snap.Sequence)
	assert.Equal(t, 42.5, snap.MemoryMB)
	assert.Equal(t, 3.2, snap.CPUPercent)
	assert.Equal(t, 12, snap.Threads)
	assert.Equal(t, 25.0, snap.SystemCPUPercent)
	assert.Equal(t, 60.0, snap.SystemMemoryPercent)
	assert.Equal(t, StatusConnected, snap.ConnectionStatus)
	require.NotNil(t, snap.LatencyMs)
	assert.InDelta(t, 30.0, *snap.LatencyMs, 0.01)
	assert.False(t, snap.Timestamp.IsZero())
}

func TestSampleDegradedOnPingFailure(t *testing.T) {
	probe := NewProbe(&fakeStats{}, &fakePinger{err: errors.New("unreachable")})

	snap := probe.Sample(context.Background())

	assert.Equal(t, StatusDegraded, snap.ConnectionStatus)
	assert.Nil(t, snap.LatencyMs, "latency must be absent when degraded")
	// stats still sampled; a ping failure never aborts the snapshot
	assert.Equal(t, 12, snap.Threads)
}

func TestSampleToleratesStatsFailure(t *testing.T) {
	probe := NewProbe(&fakeStats{procErr: errors.New("no procfs"), sysErr: errors.New("no procfs")},
		&fakePinger{latency: time.Millisecond})

	snap := probe.Sample(context.Background())

	assert.Zero(t, snap.MemoryMB)
	assert.Zero(t, snap.Threads)
	assert.Equal(t, StatusConnected, snap.ConnectionStatus)
}

func TestSequenceIsMonotonic(t *testing.T) {
	probe := NewProbe(&fakeStats{}, &fakePinger{})

	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap := probe.Sample(context.Background())
			mu.Lock()
			seen[snap.Sequence] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 10, "concurrent samples must get distinct sequence numbers")
}

func TestSnapshotHolder(t *testing.T) {
	holder := NewSnapshotHolder()

	_, ok := holder.Latest()
	assert.False(t, ok)

	holder.Set(Snapshot{Sequence: 7})
	snap, ok := holder.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(7), snap.Sequence)

	holder.Set(Snapshot{Sequence: 8})
	snap, _ = holder.Latest()
	assert.Equal(t, int64(8), snap.Sequence)
}

func TestGopsutilProvider(t *testing.T) {
	provider, err := NewGopsutilProvider()
	require.NoError(t, err)

	proc, err := provider.Process(context.Background())
	require.NoError(t, err)
	assert.Greater(t, proc.MemoryMB, 0.0)
	assert.Greater(t, proc.Threads, 0)

	sys, err := provider.System(context.Background())
	require.NoError(t, err)
	assert.Greater(t, sys.MemoryPercent, 0.0)
}
