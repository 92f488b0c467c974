package poller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rileyhilliard/node-monitor/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackingPoller records concurrency and lets tests shape per-node latency.
type trackingPoller struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
	delay    func(node string) time.Duration
}

func (p *trackingPoller) Poll(ctx context.Context, node string, timeout time.Duration) telemetry.NodeResult {
	p.calls.Add(1)
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		m := p.maxSeen.Load()
		if n <= m || p.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d time.Duration
	if p.delay != nil {
		d = p.delay(node)
	}
	select {
	case <-time.After(d):
		return telemetry.OK(node, []telemetry.GPUSample{{Index: 0}}, nil, d)
	case <-ctx.Done():
		return telemetry.Failed(node, telemetry.FailureTimeout, "no response", timeout)
	}
}

func nodeNames(n int) []string {
	nodes := make([]string, n)
	for i := range nodes {
		nodes[i] = fmt.Sprintf("gpu-%02d", i)
	}
	return nodes
}

func TestScheduler_BoundsInFlight(t *testing.T) {
	p := &trackingPoller{delay: func(string) time.Duration { return 20 * time.Millisecond }}
	s := NewScheduler(p, Options{MaxParallel: 3, Timeout: time.Second})
	defer s.Close()

	snap := s.PollAll(context.Background(), nodeNames(12))

	assert.Len(t, snap.Results, 12)
	assert.LessOrEqual(t, p.maxSeen.Load(), int32(3))
	assert.Equal(t, int32(12), p.calls.Load())
}

func TestScheduler_PreservesInputOrder(t *testing.T) {
	nodes := nodeNames(6)
	// Earlier nodes finish last.
	p := &trackingPoller{delay: func(node string) time.Duration {
		for i, n := range nodes {
			if n == node {
				return time.Duration(len(nodes)-i) * 10 * time.Millisecond
			}
		}
		return 0
	}}
	s := NewScheduler(p, Options{MaxParallel: 6, Timeout: time.Second})
	defer s.Close()

	snap := s.PollAll(context.Background(), nodes)

	require.Len(t, snap.Results, len(nodes))
	for i, r := range snap.Results {
		assert.Equal(t, nodes[i], r.Node)
	}
}

func TestScheduler_HungNodesOnlyHoldTheirSlot(t *testing.T) {
	hung := map[string]bool{"gpu-00": true, "gpu-03": true, "gpu-05": true}
	p := &trackingPoller{delay: func(node string) time.Duration {
		if hung[node] {
			return time.Hour
		}
		return 5 * time.Millisecond
	}}
	timeout := 200 * time.Millisecond
	s := NewScheduler(p, Options{MaxParallel: 8, Timeout: timeout})
	defer s.Close()

	start := time.Now()
	snap := s.PollAll(context.Background(), nodeNames(8))
	elapsed := time.Since(start)

	// All hung nodes time out together, not one after another.
	assert.Less(t, elapsed, 2*timeout)
	assert.Equal(t, 5, snap.OnlineCount())
	assert.Equal(t, 3, snap.FailedCount())
	for _, r := range snap.Results {
		if hung[r.Node] {
			assert.Equal(t, telemetry.FailureTimeout, r.Failure.Kind)
		} else {
			assert.True(t, r.IsOK(), r.Node)
		}
	}
}

func TestScheduler_CancelledTickReportsEveryNode(t *testing.T) {
	p := &trackingPoller{delay: func(string) time.Duration { return time.Hour }}
	s := NewScheduler(p, Options{MaxParallel: 2, Timeout: time.Hour})
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	snap := s.PollAll(ctx, nodeNames(6))

	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, snap.Results, 6)
	cancelled := 0
	for i, r := range snap.Results {
		assert.Equal(t, fmt.Sprintf("gpu-%02d", i), r.Node)
		require.False(t, r.IsOK())
		assert.Equal(t, telemetry.FailureTimeout, r.Failure.Kind)
		if r.Failure.Detail == cancelledDetail {
			cancelled++
		}
	}
	// Nodes that never reached a worker are always marked cancelled.
	assert.GreaterOrEqual(t, cancelled, 4)
}

func TestScheduler_ReusesWorkersAcrossTicks(t *testing.T) {
	p := &trackingPoller{}
	var seen sync.Map
	s := NewScheduler(p, Options{
		MaxParallel: 2,
		OnResult:    func(r telemetry.NodeResult) { seen.Store(r.Node, true) },
	})
	defer s.Close()

	for tick := 0; tick < 5; tick++ {
		snap := s.PollAll(context.Background(), nodeNames(4))
		assert.Equal(t, 4, snap.OnlineCount())
	}

	assert.Equal(t, int32(20), p.calls.Load())
	for _, n := range nodeNames(4) {
		_, ok := seen.Load(n)
		assert.True(t, ok, n)
	}
}

func TestScheduler_Defaults(t *testing.T) {
	s := NewScheduler(&trackingPoller{}, Options{})
	defer s.Close()

	assert.Equal(t, DefaultMaxParallel, s.Options().MaxParallel)
	assert.Equal(t, DefaultTimeout, s.Options().Timeout)
}

func TestScheduler_EmptyNodeList(t *testing.T) {
	s := NewScheduler(&trackingPoller{}, Options{MaxParallel: 1})
	defer s.Close()

	snap := s.PollAll(context.Background(), nil)
	assert.Empty(t, snap.Results)
	assert.False(t, snap.CapturedAt.IsZero())
}

func TestScheduler_PollAfterClose(t *testing.T) {
	p := &trackingPoller{}
	s := NewScheduler(p, Options{MaxParallel: 2})
	s.Close()
	s.Close()

	snap := s.PollAll(context.Background(), nodeNames(3))
	require.Len(t, snap.Results, 3)
	for _, r := range snap.Results {
		assert.Equal(t, cancelledDetail, r.Failure.Detail)
	}
	assert.Equal(t, int32(0), p.calls.Load())
}

func TestScheduler_SnapshotTiming(t *testing.T) {
	p := &trackingPoller{delay: func(string) time.Duration { return 30 * time.Millisecond }}
	s := NewScheduler(p, Options{MaxParallel: 4})
	defer s.Close()

	before := time.Now()
	snap := s.PollAll(context.Background(), nodeNames(4))

	assert.False(t, snap.CapturedAt.Before(before))
	assert.GreaterOrEqual(t, snap.Duration, 30*time.Millisecond)
}
