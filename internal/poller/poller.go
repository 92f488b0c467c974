// Package poller queries GPU telemetry from cluster nodes.
//
// NodePoller turns one remote invocation into a telemetry.NodeResult,
// classifying every way a poll can go wrong. Scheduler fans a tick out over a
// fixed set of worker goroutines and assembles the results into a Snapshot.
package poller

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/node-monitor/internal/errors"
	"github.com/rileyhilliard/node-monitor/internal/exec"
	"github.com/rileyhilliard/node-monitor/internal/telemetry"
	"github.com/rileyhilliard/node-monitor/pkg/sshutil"
)

// ExecResult is the captured outcome of a remote command.
type ExecResult = sshutil.ExecResult

// Executor runs one command on a node. *sshutil.Pool is the production implementation.
type Executor interface {
	Execute(ctx context.Context, node, command string) (ExecResult, error)
}

// cancelledDetail marks nodes abandoned because the whole tick was cancelled.
const cancelledDetail = "cancelled"

// NodePoller polls a single node. It keeps no state between calls apart from
// whether the process query is included.
type NodePoller struct {
	exec      Executor
	processes atomic.Bool
}

// NewNodePoller creates a poller over executor.
func NewNodePoller(executor Executor, withProcesses bool) *NodePoller {
	p := &NodePoller{exec: executor}
	p.processes.Store(withProcesses)
	return p
}

// SetProcesses switches the process query on or off for subsequent polls.
func (p *NodePoller) SetProcesses(enabled bool) {
	p.processes.Store(enabled)
}

// Processes reports whether polls include the process query.
func (p *NodePoller) Processes() bool {
	return p.processes.Load()
}

// Poll runs the batched query on node once, with no retries, and classifies
// the outcome. It always returns a result, even when ctx is already done.
//
// Anything that comes back after the deadline is discarded and reported as a
// Timeout, so a node can't sneak stale data into a tick by racing the timer.
func (p *NodePoller) Poll(ctx context.Context, node string, timeout time.Duration) telemetry.NodeResult {
	start := time.Now()
	withProcs := p.processes.Load()

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := p.exec.Execute(pollCtx, node, telemetry.BuildCommand(withProcs))
	took := time.Since(start)

	if pollCtx.Err() != nil {
		if ctx.Err() != nil {
			return telemetry.Failed(node, telemetry.FailureTimeout, cancelledDetail, took)
		}
		return telemetry.Failed(node, telemetry.FailureTimeout, fmt.Sprintf("no response within %s", timeout), took)
	}

	if err != nil {
		return telemetry.Failed(node, classify(err), errorDetail(err), took)
	}

	if res.ExitCode != 0 {
		detail := firstLine(res.Stderr)
		if nf, ok := exec.NotFoundDetail(res.Stderr, res.ExitCode); ok {
			detail = nf
		}
		if detail == "" {
			detail = fmt.Sprintf("remote command exited with status %d", res.ExitCode)
		}
		return telemetry.Failed(node, telemetry.FailureCommand, detail, took)
	}

	sections := telemetry.SplitSections(res.Stdout)
	if withProcs && len(sections) < 2 {
		return telemetry.Failed(node, telemetry.FailureCommand, "process query output is missing its section marker", took)
	}

	gpus, err := telemetry.ParseGPUs(sections[0])
	if err != nil {
		return telemetry.Failed(node, telemetry.FailureParse, "gpu query: "+err.Error(), took)
	}

	var procs []telemetry.ProcessSample
	if withProcs {
		procs, err = telemetry.ParseProcesses(sections[1])
		if err != nil {
			return telemetry.Failed(node, telemetry.FailureParse, "process query: "+err.Error(), took)
		}
	}

	return telemetry.OK(node, gpus, procs, took)
}

// classify maps a transport error to a failure kind. Anything that stopped us
// from reaching the node is a connection failure; the rest is the command's fault.
func classify(err error) telemetry.FailureKind {
	var dialErr *sshutil.DialError
	if stderrors.As(err, &dialErr) || errors.IsCode(err, errors.ErrSSH) {
		return telemetry.FailureConnection
	}
	return telemetry.FailureCommand
}

func errorDetail(err error) string {
	var nmErr *errors.Error
	if stderrors.As(err, &nmErr) {
		return nmErr.Summary()
	}
	return firstLine(err.Error())
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
