package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMemory(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{bytes: 0, want: "0M"},
		{bytes: 512 * mib, want: "512M"},
		{bytes: gib, want: "1G"},
		{bytes: 15 * gib, want: "15G"},
		{bytes: 81559 * mib, want: "79.6G"},
		{bytes: 1536 * mib, want: "1.5G"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatMemory(tt.bytes))
	}
}

func TestFormatGPUList(t *testing.T) {
	assert.Equal(t, "0,1,3", FormatGPUList([]int{3, 0, 1}))
	assert.Equal(t, "", FormatGPUList(nil))
}

func TestLevels(t *testing.T) {
	assert.Equal(t, LevelLow, MemoryLevel(49.9))
	assert.Equal(t, LevelModerate, MemoryLevel(50))
	assert.Equal(t, LevelHigh, MemoryLevel(75))
	assert.Equal(t, LevelCritical, MemoryLevel(90))

	assert.Equal(t, "low", LevelLow.String())
	assert.Equal(t, "critical", LevelCritical.String())
}
