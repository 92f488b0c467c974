// Package discovery finds the nodes to monitor, either from Slurm or from a
// user-supplied hostlist.
package discovery

import (
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/rileyhilliard/node-monitor/internal/errors"
	nmexec "github.com/rileyhilliard/node-monitor/internal/exec"
	"github.com/rileyhilliard/node-monitor/internal/logger"
)

// DefaultTimeout bounds the sinfo call.
const DefaultTimeout = 10 * time.Second

const noNodesHint = "Use --nodes to list nodes manually, e.g. --nodes gpu-[01-04]"

// Runner runs a local command and captures its output. A non-zero exit is
// reported through exitCode, not err. exec.Capture is the default.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, exitCode int, err error)

// Slurm discovers nodes with sinfo.
type Slurm struct {
	Run     Runner
	Timeout time.Duration
	Log     logger.Logger
}

// NewSlurm returns a Slurm discoverer that runs sinfo locally.
func NewSlurm(log logger.Logger) *Slurm {
	if log == nil {
		log = logger.Noop()
	}
	return &Slurm{Run: nmexec.Capture, Timeout: DefaultTimeout, Log: log}
}

// Discover runs `sinfo -h -o %n` and returns the unique node names, sorted.
// Every failure is a DISCOVERY error: sinfo missing, timing out, exiting
// non-zero, or listing no nodes.
func (s *Slurm) Discover(ctx context.Context) ([]string, error) {
	run := s.Run
	if run == nil {
		run = nmexec.Capture
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := s.Log
	if log == nil {
		log = logger.Noop()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Info("detecting Slurm nodes with sinfo")
	stdout, stderr, exitCode, err := run(ctx, "sinfo", "-h", "-o", "%n")
	switch {
	case err != nil && stderrors.Is(err, exec.ErrNotFound):
		return nil, errors.WrapWithCode(err, errors.ErrDiscovery,
			"Slurm is not installed or sinfo is not in PATH",
			noNodesHint)
	case err != nil && stderrors.Is(err, context.DeadlineExceeded):
		return nil, errors.WrapWithCode(err, errors.ErrDiscovery,
			fmt.Sprintf("sinfo timed out after %s", timeout),
			noNodesHint)
	case err != nil:
		return nil, errors.WrapWithCode(err, errors.ErrDiscovery,
			"Couldn't run sinfo",
			noNodesHint)
	case exitCode != 0:
		msg := fmt.Sprintf("sinfo failed with exit status %d", exitCode)
		if detail := strings.TrimSpace(string(stderr)); detail != "" {
			msg = "sinfo failed: " + detail
		}
		return nil, errors.New(errors.ErrDiscovery, msg, noNodesHint)
	}

	nodes := ParseSinfo(string(stdout))
	if len(nodes) == 0 {
		return nil, errors.New(errors.ErrDiscovery, "sinfo returned no nodes", noNodesHint)
	}
	log.Info("found %d Slurm nodes", len(nodes))
	return nodes, nil
}

// ParseSinfo reads one node name per line, dropping blanks and duplicates.
// sinfo lists a node once per partition, so duplicates are normal.
func ParseSinfo(out string) []string {
	seen := make(map[string]bool)
	var nodes []string
	for _, line := range strings.Split(out, "\n") {
		n := strings.TrimSpace(line)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}
