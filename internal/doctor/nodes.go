package doctor

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/rileyhilliard/node-monitor/internal/errors"
	"github.com/rileyhilliard/node-monitor/internal/telemetry"
)

// Discoverer lists cluster nodes. *discovery.Slurm implements it.
type Discoverer interface {
	Discover(ctx context.Context) ([]string, error)
}

// Poller polls a single node. *poller.NodePoller implements it.
type Poller interface {
	Poll(ctx context.Context, node string, timeout time.Duration) telemetry.NodeResult
}

// SlurmCheck runs discovery. A failure only matters when no nodes are
// configured, since the dashboard then has nothing to show.
type SlurmCheck struct {
	Discover Discoverer
	Required bool

	// Found holds the discovered nodes after Run.
	Found []string
}

func (c *SlurmCheck) Name() string     { return "slurm" }
func (c *SlurmCheck) Category() string { return CategorySlurm }

func (c *SlurmCheck) Run() CheckResult {
	nodes, err := c.Discover.Discover(context.Background())
	if err != nil {
		status := StatusWarn
		if c.Required {
			status = StatusFail
		}
		suggestion := ""
		var e *errors.Error
		if stderrors.As(err, &e) {
			suggestion = e.Suggestion
		}
		return CheckResult{
			Name:       c.Name(),
			Status:     status,
			Message:    summarize(err),
			Suggestion: suggestion,
		}
	}

	c.Found = nodes
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("sinfo lists %d node%s", len(nodes), pluralize(len(nodes))),
	}
}

func (c *SlurmCheck) Fix() error {
	return nil
}

// NodeCheck polls one node the same way the dashboard does.
type NodeCheck struct {
	Node    string
	Poller  Poller
	Timeout time.Duration
}

func (c *NodeCheck) Name() string     { return "node:" + c.Node }
func (c *NodeCheck) Category() string { return CategoryNodes }

func (c *NodeCheck) Run() CheckResult {
	r := c.Poller.Poll(context.Background(), c.Node, c.Timeout)
	took := r.Duration.Round(time.Millisecond)

	if !r.IsOK() {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("%s: %s: %s", c.Node, r.Failure.Kind, r.Failure.Detail),
			Suggestion: failureSuggestion(c.Node, r.Failure.Kind),
		}
	}

	if len(r.GPUs) == 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("%s: reachable, but no GPUs detected (%s)", c.Node, took),
			Suggestion: "Check nvidia-smi -L on the node lists its GPUs",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%s: %d GPU%s (%s)", c.Node, len(r.GPUs), pluralize(len(r.GPUs)), took),
	}
}

func (c *NodeCheck) Fix() error {
	return nil
}

func failureSuggestion(node string, kind telemetry.FailureKind) string {
	switch kind {
	case telemetry.FailureConnection:
		return fmt.Sprintf("Check that 'ssh %s' works without a password prompt", node)
	case telemetry.FailureTimeout:
		return "Check the node is up, or raise --timeout"
	case telemetry.FailureCommand:
		return "Check nvidia-smi is installed and working on the node"
	case telemetry.FailureParse:
		return "nvidia-smi printed something unexpected; check the driver on the node"
	}
	return ""
}

// NewNodeChecks creates one check per node.
func NewNodeChecks(nodes []string, p Poller, timeout time.Duration) []Check {
	checks := make([]Check, len(nodes))
	for i, n := range nodes {
		checks[i] = &NodeCheck{Node: n, Poller: p, Timeout: timeout}
	}
	return checks
}
