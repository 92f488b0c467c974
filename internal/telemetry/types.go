package telemetry

import (
	"time"
)

// GPUSample is one GPU as reported by a single query of a node.
type GPUSample struct {
	Index              int   `yaml:"index"`
	UtilizationPercent int   `yaml:"utilization_percent"`
	MemoryUsedBytes    int64 `yaml:"memory_used_bytes"`
	MemoryTotalBytes   int64 `yaml:"memory_total_bytes"`
}

// MemoryFraction returns used/total clamped to [0, 1].
// The second return value is false when total is zero and the fraction is undefined.
func (g GPUSample) MemoryFraction() (float64, bool) {
	return Fraction(g.MemoryUsedBytes, g.MemoryTotalBytes)
}

// ProcessSample aggregates the GPU memory held by one user on a node.
type ProcessSample struct {
	User        string `yaml:"user"`
	GPUIndices  []int  `yaml:"gpu_indices"`
	MemoryBytes int64  `yaml:"memory_bytes"`
}

// FailureKind classifies why a node could not be polled.
type FailureKind int

const (
	FailureTimeout FailureKind = iota
	FailureConnection
	FailureCommand
	FailureParse
)

// String returns the label shown in degraded panels.
func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "Timeout"
	case FailureConnection:
		return "ConnectionError"
	case FailureCommand:
		return "CommandError"
	case FailureParse:
		return "ParseError"
	default:
		return "Unknown"
	}
}

// MarshalYAML emits the label rather than the enum value.
func (k FailureKind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// Failure explains a failed poll.
type Failure struct {
	Kind   FailureKind `yaml:"kind"`
	Detail string      `yaml:"detail"`
}

// NodeResult is the outcome of polling one node once.
// Build it with OK or Failed; Failure is nil exactly when the poll succeeded.
type NodeResult struct {
	Node      string          `yaml:"node"`
	GPUs      []GPUSample     `yaml:"gpus,omitempty"`
	Processes []ProcessSample `yaml:"processes,omitempty"`
	Failure   *Failure        `yaml:"failure,omitempty"`
	Duration  time.Duration   `yaml:"duration"`
}

// OK builds a successful result.
func OK(node string, gpus []GPUSample, procs []ProcessSample, took time.Duration) NodeResult {
	return NodeResult{
		Node:      node,
		GPUs:      gpus,
		Processes: procs,
		Duration:  took,
	}
}

// Failed builds a failed result. It never carries samples.
func Failed(node string, kind FailureKind, detail string, took time.Duration) NodeResult {
	return NodeResult{
		Node:     node,
		Failure:  &Failure{Kind: kind, Detail: detail},
		Duration: took,
	}
}

// IsOK reports whether the poll succeeded.
func (r NodeResult) IsOK() bool {
	return r.Failure == nil
}

// AverageUtilization is the mean utilization across the node's GPUs, or 0 with none.
func (r NodeResult) AverageUtilization() float64 {
	if len(r.GPUs) == 0 {
		return 0
	}
	var sum int
	for _, g := range r.GPUs {
		sum += g.UtilizationPercent
	}
	return float64(sum) / float64(len(r.GPUs))
}

// MemoryTotals sums used and total memory across the node's GPUs.
func (r NodeResult) MemoryTotals() (used, total int64) {
	for _, g := range r.GPUs {
		used += g.MemoryUsedBytes
		total += g.MemoryTotalBytes
	}
	return used, total
}

// Snapshot is the complete, immutable state of one tick.
// Results are in the configured node order and cover every configured node.
type Snapshot struct {
	CapturedAt time.Time     `yaml:"captured_at"`
	Duration   time.Duration `yaml:"duration"`
	Results    []NodeResult  `yaml:"results"`
}

// Lookup returns the result for a node.
func (s Snapshot) Lookup(node string) (NodeResult, bool) {
	for _, r := range s.Results {
		if r.Node == node {
			return r, true
		}
	}
	return NodeResult{}, false
}

// OnlineCount is the number of nodes polled successfully.
func (s Snapshot) OnlineCount() int {
	n := 0
	for _, r := range s.Results {
		if r.IsOK() {
			n++
		}
	}
	return n
}

// FailedCount is the number of nodes that failed this tick.
func (s Snapshot) FailedCount() int {
	return len(s.Results) - s.OnlineCount()
}

// TotalGPUs counts GPUs across online nodes.
func (s Snapshot) TotalGPUs() int {
	n := 0
	for _, r := range s.Results {
		n += len(r.GPUs)
	}
	return n
}

// AverageUtilization is the mean over every GPU in the cluster, not the mean of node means.
func (s Snapshot) AverageUtilization() float64 {
	var sum, count int
	for _, r := range s.Results {
		for _, g := range r.GPUs {
			sum += g.UtilizationPercent
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return float64(sum) / float64(count)
}

// MemoryTotals sums memory across every online node.
func (s Snapshot) MemoryTotals() (used, total int64) {
	for _, r := range s.Results {
		u, t := r.MemoryTotals()
		used += u
		total += t
	}
	return used, total
}

// Fraction returns used/total clamped to [0, 1], or (0, false) when total is not positive.
func Fraction(used, total int64) (float64, bool) {
	if total <= 0 {
		return 0, false
	}
	f := float64(used) / float64(total)
	if f < 0 {
		return 0, true
	}
	if f > 1 {
		return 1, true
	}
	return f, true
}
