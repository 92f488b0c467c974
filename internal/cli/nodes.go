package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rileyhilliard/node-monitor/internal/config"
	"github.com/rileyhilliard/node-monitor/internal/discovery"
	"github.com/rileyhilliard/node-monitor/internal/errors"
	"github.com/rileyhilliard/node-monitor/internal/ui"
	"github.com/rileyhilliard/node-monitor/pkg/sshutil"
)

// discoverer finds nodes when none are configured. *discovery.Slurm
// implements it.
type discoverer interface {
	Discover(ctx context.Context) ([]string, error)
}

// nodeResolver turns the configured node list, or discovery, into the
// ordered set of nodes to monitor.
type nodeResolver struct {
	discover discoverer
	// pick runs the interactive picker; nil disables --pick.
	pick func(title string, choices []ui.NodeChoice) ([]string, error)
	// sshHosts lists ~/.ssh/config hosts for the picker when discovery fails.
	sshHosts func() ([]sshutil.SSHHostEntry, error)

	out     io.Writer
	animate bool
}

// resolve returns the nodes to monitor. Configured nodes win over
// discovery; with none configured, Slurm is asked. Both paths may go
// through the picker when interactive is set.
func (r *nodeResolver) resolve(ctx context.Context, cfg *config.Config, interactive bool) ([]string, error) {
	if spec := cfg.NodeSpec(); spec != "" {
		nodes, err := discovery.ParseNodeList(spec)
		if err != nil {
			return nil, err
		}
		if len(nodes) == 0 {
			return nil, noNodesError()
		}
		if !interactive {
			return nodes, nil
		}
		return r.pickFrom("Select nodes to monitor", choicesFromNames(nodes, true))
	}

	spin := ui.NewSpinner("Detecting Slurm nodes")
	spin.SetOutput(func(s string) { fmt.Fprint(r.out, s) })
	spin.SetAnimated(r.animate)
	spin.Start()

	nodes, err := r.discover.Discover(ctx)
	if err != nil {
		spin.Fail("Slurm discovery failed")
		if !interactive {
			return nil, err
		}
		choices, sshErr := r.sshChoices()
		if sshErr != nil || len(choices) == 0 {
			return nil, err
		}
		return r.pickFrom("Slurm unavailable; select hosts from ~/.ssh/config", choices)
	}
	spin.Success(fmt.Sprintf("Found %d Slurm nodes", len(nodes)))

	if !interactive {
		return nodes, nil
	}
	return r.pickFrom("Select Slurm nodes to monitor", choicesFromNames(nodes, false))
}

func (r *nodeResolver) pickFrom(title string, choices []ui.NodeChoice) ([]string, error) {
	pick := r.pick
	if pick == nil {
		pick = ui.PickNodes
	}
	nodes, err := pick(title, choices)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, noNodesError()
	}
	return nodes, nil
}

func (r *nodeResolver) sshChoices() ([]ui.NodeChoice, error) {
	list := r.sshHosts
	if list == nil {
		list = sshutil.ParseSSHConfig
	}
	hosts, err := list()
	if err != nil {
		return nil, err
	}
	choices := make([]ui.NodeChoice, len(hosts))
	for i, h := range hosts {
		choices[i] = ui.NodeChoice{Name: h.Alias, Description: h.Description()}
	}
	return choices, nil
}

func choicesFromNames(nodes []string, selected bool) []ui.NodeChoice {
	choices := make([]ui.NodeChoice, len(nodes))
	for i, n := range nodes {
		choices[i] = ui.NodeChoice{Name: n, Selected: selected}
	}
	return choices
}

func noNodesError() error {
	return errors.New(errors.ErrConfig,
		"No nodes to monitor",
		"Use --nodes to list nodes, e.g. --nodes gpu-[01-04]")
}
