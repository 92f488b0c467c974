package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveNodes(t *testing.T) {
	tests := []struct {
		name         string
		initialYAML  string
		nodes        []string
		wantContains []string
		wantMissing  []string
	}{
		{
			name: "adds nodes and keeps other keys",
			initialYAML: `# cluster settings
interval: 5s
workers: 4
`,
			nodes:        []string{"gpu-01", "gpu-02"},
			wantContains: []string{"# cluster settings", "interval: 5s", "workers: 4", "nodes:", "- gpu-01", "- gpu-02"},
		},
		{
			name: "replaces existing nodes",
			initialYAML: `nodes:
  - old-1
  - old-2
compact: true
`,
			nodes:        []string{"new-1"},
			wantContains: []string{"- new-1", "compact: true"},
			wantMissing:  []string{"old-1", "old-2"},
		},
		{
			name:         "empty file",
			initialYAML:  "",
			nodes:        []string{"a"},
			wantContains: []string{"nodes:", "- a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.initialYAML)

			require.NoError(t, SaveNodes(path, tt.nodes))

			content, err := os.ReadFile(path)
			require.NoError(t, err)
			for _, want := range tt.wantContains {
				assert.Contains(t, string(content), want)
			}
			for _, missing := range tt.wantMissing {
				assert.NotContains(t, string(content), missing)
			}

			cfg, err := Load(path, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.nodes, cfg.Nodes)
		})
	}
}

func TestSaveNodes_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")

	require.NoError(t, SaveNodes(path, []string{"gpu-[01-04]"}))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"gpu-[01-04]"}, cfg.Nodes)
}

func TestSaveNodes_RejectsNonMapping(t *testing.T) {
	path := writeConfig(t, "- just\n- a list\n")
	assert.Error(t, SaveNodes(path, []string{"a"}))
}
