// Package telemetry holds the GPU data model for node-monitor and the parsers
// that turn nvidia-smi output into it.
//
// Parsers are strict. nvidia-smi prints [N/A] or [Not Supported] for
// utilization and used memory on some devices (MIG slices, older boards);
// those read as 0 in both queries. Any other row that breaks an invariant (utilization in 0..100,
// non-negative memory, used <= total, unique GPU index) fails the whole parse
// with a *ParseError instead of being clamped or skipped, so a bad node shows
// up as a ParseError in the dashboard rather than as plausible-looking data.
package telemetry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const mib = 1024 * 1024

// ParseError reports a malformed row in query output.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// ParseGPUs parses the output of GPUQuery.
// Expected rows: "0, 45, 2048, 81920" (index, util %, used MiB, total MiB).
// Index and total must always be numbers. Empty output is a node with zero
// GPUs.
func ParseGPUs(output string) ([]GPUSample, error) {
	gpus := make([]GPUSample, 0)
	seen := make(map[int]bool)

	for i, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lineNo := i + 1

		fields := splitFields(line)
		if len(fields) != 4 {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("expected 4 fields, got %d", len(fields))}
		}

		nums := make([]int64, 4)
		for j, f := range fields {
			if (j == 1 || j == 2) && unavailable(f) {
				continue
			}
			n, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("failed to parse field %d '%s'", j+1, f)}
			}
			if n < 0 {
				return nil, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("negative value %d", n)}
			}
			nums[j] = n
		}

		idx, util, used, total := int(nums[0]), nums[1], nums[2], nums[3]
		if util > 100 {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("utilization %d%% out of range", util)}
		}
		if used > total {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("memory used %d MiB exceeds total %d MiB", used, total)}
		}
		if seen[idx] {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("duplicate GPU index %d", idx)}
		}
		seen[idx] = true

		gpus = append(gpus, GPUSample{
			Index:              idx,
			UtilizationPercent: int(util),
			MemoryUsedBytes:    used * mib,
			MemoryTotalBytes:   total * mib,
		})
	}

	sort.Slice(gpus, func(a, b int) bool { return gpus[a].Index < gpus[b].Index })
	return gpus, nil
}

// ParseProcesses parses the output of ProcessQuery and groups rows by user.
// Expected rows: "0, alice, 7680" (gpu index, user, used MiB). Unavailable
// memory counts as zero; the process still marks its GPU.
// Results are ordered by descending memory, then user name.
func ParseProcesses(output string) ([]ProcessSample, error) {
	byUser := make(map[string]*ProcessSample)
	gpuSets := make(map[string]map[int]bool)

	for i, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lineNo := i + 1

		fields := splitFields(line)
		if len(fields) != 3 {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("expected 3 fields, got %d", len(fields))}
		}

		idx, err := strconv.Atoi(fields[0])
		if err != nil || idx < 0 {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("invalid GPU index '%s'", fields[0])}
		}

		user := fields[1]
		if user == "" {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: "empty user"}
		}

		var memMiB int64
		if !unavailable(fields[2]) {
			memMiB, err = strconv.ParseInt(fields[2], 10, 64)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("failed to parse memory '%s'", fields[2])}
			}
			if memMiB < 0 {
				return nil, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("negative memory %d", memMiB)}
			}
		}

		p, ok := byUser[user]
		if !ok {
			p = &ProcessSample{User: user}
			byUser[user] = p
			gpuSets[user] = make(map[int]bool)
		}
		p.MemoryBytes += memMiB * mib
		gpuSets[user][idx] = true
	}

	procs := make([]ProcessSample, 0, len(byUser))
	for user, p := range byUser {
		for idx := range gpuSets[user] {
			p.GPUIndices = append(p.GPUIndices, idx)
		}
		sort.Ints(p.GPUIndices)
		procs = append(procs, *p)
	}

	sort.Slice(procs, func(a, b int) bool {
		if procs[a].MemoryBytes != procs[b].MemoryBytes {
			return procs[a].MemoryBytes > procs[b].MemoryBytes
		}
		return procs[a].User < procs[b].User
	})
	return procs, nil
}

// unavailable reports whether nvidia-smi left a value out.
func unavailable(field string) bool {
	return field == "[N/A]" || field == "[Not Supported]"
}

func splitFields(line string) []string {
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}
