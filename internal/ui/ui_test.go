package ui

import (
	"bytes"
	"os"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rileyhilliard/node-monitor/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

func TestMessages(t *testing.T) {
	var buf bytes.Buffer

	Success(&buf, "Monitoring %d nodes", 3)
	Warn(&buf, "--processes forces compact mode")
	Info(&buf, "Mode", "compact")

	assert.Equal(t,
		"✓ Monitoring 3 nodes\n"+
			"⚠ --processes forces compact mode\n"+
			"› Mode: compact\n",
		buf.String())
}

func TestNodeOptions(t *testing.T) {
	options := nodeOptions([]NodeChoice{
		{Name: "gpu-01", Selected: true},
		{Name: "dgx", Description: "ops@10.0.0.5:2200"},
		{Name: "same", Description: "same"},
	})

	require.Len(t, options, 3)
	assert.Equal(t, "gpu-01", options[0].Key)
	assert.Equal(t, "gpu-01", options[0].Value)
	assert.Equal(t, "dgx - ops@10.0.0.5:2200", options[1].Key)
	assert.Equal(t, "dgx", options[1].Value)
	assert.Equal(t, "same", options[2].Key)
}

func TestRequireOne(t *testing.T) {
	assert.Error(t, requireOne(nil))
	assert.NoError(t, requireOne([]string{"gpu-01"}))
}

func TestPickNodes_NoPrompt(t *testing.T) {
	t.Run("no choices", func(t *testing.T) {
		_, err := PickNodes("Select nodes", nil)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
	})

	t.Run("single choice", func(t *testing.T) {
		got, err := PickNodes("Select nodes", []NodeChoice{{Name: "gpu-01"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"gpu-01"}, got)
	})
}
