package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rileyhilliard/node-monitor/internal/telemetry"
)

// DefaultMaxParallel bounds concurrent polls when Options.MaxParallel is unset.
const DefaultMaxParallel = 8

// DefaultTimeout is the per-node deadline when Options.Timeout is unset.
const DefaultTimeout = 10 * time.Second

// Poller polls one node. *NodePoller implements it.
type Poller interface {
	Poll(ctx context.Context, node string, timeout time.Duration) telemetry.NodeResult
}

// Options configures a Scheduler.
type Options struct {
	// MaxParallel is the number of worker goroutines, and so the most polls in flight.
	MaxParallel int

	// Timeout is applied to each node separately.
	Timeout time.Duration

	// OnResult, if set, is called from the worker as each node finishes.
	OnResult func(telemetry.NodeResult)
}

// Scheduler runs the polls of a tick on a fixed pool of workers.
// The workers are started once by NewScheduler and reused for every tick
// until Close.
type Scheduler struct {
	poller Poller
	opts   Options

	jobs      chan job
	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// job is one node of one tick. The worker writes exactly results[index].
type job struct {
	ctx     context.Context
	index   int
	node    string
	results []telemetry.NodeResult
	done    *sync.WaitGroup
}

// NewScheduler starts opts.MaxParallel workers polling through p.
func NewScheduler(p Poller, opts Options) *Scheduler {
	if opts.MaxParallel < 1 {
		opts.MaxParallel = DefaultMaxParallel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	s := &Scheduler{
		poller: p,
		opts:   opts,
		jobs:   make(chan job),
		quit:   make(chan struct{}),
	}

	s.wg.Add(opts.MaxParallel)
	for i := 0; i < opts.MaxParallel; i++ {
		go s.worker()
	}
	return s
}

// Options returns the effective options after defaults.
func (s *Scheduler) Options() Options {
	return s.opts
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		case j := <-s.jobs:
			var r telemetry.NodeResult
			if j.ctx.Err() != nil {
				r = telemetry.Failed(j.node, telemetry.FailureTimeout, cancelledDetail, 0)
			} else {
				r = s.poller.Poll(j.ctx, j.node, s.opts.Timeout)
			}
			j.results[j.index] = r
			if s.opts.OnResult != nil {
				s.opts.OnResult(r)
			}
			j.done.Done()
		}
	}
}

// PollAll polls every node and returns once all of them have a result.
// Results are in the order of nodes, regardless of completion order.
//
// If ctx is cancelled, nodes not yet handed to a worker are reported as
// Timeout with detail "cancelled" and in-flight polls are aborted through
// their contexts. PollAll after Close reports every node that way.
func (s *Scheduler) PollAll(ctx context.Context, nodes []string) telemetry.Snapshot {
	start := time.Now()
	results := make([]telemetry.NodeResult, len(nodes))

	var done sync.WaitGroup
	for i, node := range nodes {
		done.Add(1)
		select {
		case s.jobs <- job{ctx: ctx, index: i, node: node, results: results, done: &done}:
		case <-ctx.Done():
			results[i] = telemetry.Failed(node, telemetry.FailureTimeout, cancelledDetail, 0)
			done.Done()
		case <-s.quit:
			results[i] = telemetry.Failed(node, telemetry.FailureTimeout, cancelledDetail, 0)
			done.Done()
		}
	}
	done.Wait()

	return telemetry.Snapshot{
		CapturedAt: start,
		Duration:   time.Since(start),
		Results:    results,
	}
}

// Close stops the workers after their current polls finish. It is safe to call more than once.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	s.wg.Wait()
}
