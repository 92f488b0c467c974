package layout

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	mib = 1024 * 1024
	gib = 1024 * mib
)

// Level is the severity band of a metric, used to pick colors.
type Level int

const (
	LevelLow Level = iota
	LevelModerate
	LevelHigh
	LevelCritical
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelModerate:
		return "moderate"
	case LevelHigh:
		return "high"
	default:
		return "critical"
	}
}

// UtilizationLevel bands GPU utilization: <30 low, <60 moderate, <85 high.
func UtilizationLevel(percent float64) Level {
	switch {
	case percent < 30:
		return LevelLow
	case percent < 60:
		return LevelModerate
	case percent < 85:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// MemoryLevel bands memory usage: <50 low, <75 moderate, <90 high.
func MemoryLevel(percent float64) Level {
	switch {
	case percent < 50:
		return LevelLow
	case percent < 75:
		return LevelModerate
	case percent < 90:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// FormatMemory renders bytes as GiB with one decimal ("79.6G", "15G"),
// or as whole MiB below 1 GiB ("512M").
func FormatMemory(bytes int64) string {
	if bytes < gib {
		return fmt.Sprintf("%dM", bytes/mib)
	}
	s := strconv.FormatFloat(float64(bytes)/gib, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0") + "G"
}

// FormatGPUList renders GPU indices as "0,1,3".
func FormatGPUList(indices []int) string {
	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, idx := range sorted {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ",")
}
