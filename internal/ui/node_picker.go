package ui

import (
	stderrors "errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/node-monitor/internal/errors"
)

// NodeChoice is one node offered by the picker.
type NodeChoice struct {
	Name        string
	Description string // e.g. the ssh_config HostName; may be empty
	Selected    bool
}

// nodeOptions builds the picker options, pre-selecting flagged choices.
func nodeOptions(choices []NodeChoice) []huh.Option[string] {
	options := make([]huh.Option[string], len(choices))
	for i, c := range choices {
		label := c.Name
		if c.Description != "" && c.Description != c.Name {
			label += " - " + c.Description
		}
		options[i] = huh.NewOption(label, c.Name).Selected(c.Selected)
	}
	return options
}

// requireOne rejects an empty selection.
func requireOne(selected []string) error {
	if len(selected) == 0 {
		return fmt.Errorf("select at least one node")
	}
	return nil
}

// PickNodes asks the user which nodes to monitor. A single choice is
// returned without prompting.
func PickNodes(title string, choices []NodeChoice) ([]string, error) {
	if len(choices) == 0 {
		return nil, errors.New(errors.ErrConfig,
			"No nodes to pick from",
			"Use --nodes to list nodes manually, or add Host entries to ~/.ssh/config.")
	}
	if len(choices) == 1 {
		return []string{choices[0].Name}, nil
	}

	var selected []string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title(title).
				Description("space to toggle, enter to confirm").
				Options(nodeOptions(choices)...).
				Validate(requireOne).
				Value(&selected),
		),
	)

	if err := form.Run(); err != nil {
		if stderrors.Is(err, huh.ErrUserAborted) {
			return nil, errors.New(errors.ErrConfig,
				"Node selection cancelled",
				"Run again, or use --nodes to skip the picker.")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't get your selection",
			"Try again or use --nodes to list nodes directly.")
	}
	return selected, nil
}
