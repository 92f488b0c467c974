package telemetry

import (
	"strings"
)

// SectionMarker separates the outputs of a batched query.
const SectionMarker = "---"

// GPUQuery lists every GPU with memory in MiB.
const GPUQuery = "nvidia-smi --query-gpu=index,utilization.gpu,memory.used,memory.total --format=csv,noheader,nounits"

// ProcessQuery prints one "gpu_index, user, used_mib" row per compute process.
// Compute apps are reported by GPU uuid, so the uuid->index map is fetched first
// and each pid is resolved to its owner with ps. Processes that exit between the
// two calls are reported as "unknown".
const ProcessQuery = `map=$(nvidia-smi --query-gpu=index,uuid --format=csv,noheader,nounits); ` +
	`nvidia-smi --query-compute-apps=gpu_uuid,pid,used_memory --format=csv,noheader,nounits | ` +
	`while IFS=', ' read -r uuid pid mem; do ` +
	`[ -n "$uuid" ] || continue; ` +
	`idx=$(printf '%s\n' "$map" | awk -F', ' -v u="$uuid" '$2==u{print $1}'); ` +
	`[ -n "$idx" ] || continue; ` +
	`user=$(ps -o user= -p "$pid" 2>/dev/null | tr -d ' '); ` +
	`[ -n "$user" ] || user=unknown; ` +
	`echo "$idx, $user, $mem"; ` +
	`done`

// BuildCommand returns the single remote command for one poll.
// With processes the GPU and process sections are separated by SectionMarker,
// and a failing GPU query aborts before the marker is printed.
func BuildCommand(withProcesses bool) string {
	if !withProcesses {
		return GPUQuery
	}
	return GPUQuery + " || exit $?; echo '" + SectionMarker + "'; " + ProcessQuery
}

// SplitSections splits batched output on SectionMarker lines.
// Output without a marker is returned as a single section.
func SplitSections(output string) []string {
	var sections []string
	var cur strings.Builder

	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == SectionMarker {
			sections = append(sections, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	return append(sections, cur.String())
}
