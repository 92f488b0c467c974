// Package doctor diagnoses why nodes might not show up on the dashboard:
// the config file, local SSH credentials, Slurm, and each node's SSH and
// nvidia-smi.
package doctor

import (
	"fmt"
	"sync"
)

// Check categories, in report order.
const (
	CategoryConfig = "CONFIG"
	CategorySSH    = "SSH"
	CategorySlurm  = "SLURM"
	CategoryNodes  = "NODES"
)

// CategoryOrder is the order categories are reported in.
var CategoryOrder = []string{CategoryConfig, CategorySSH, CategorySlurm, CategoryNodes}

// CheckStatus represents the result status of a check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

// String returns a human-readable status string.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalYAML emits the status name.
func (s CheckStatus) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// CheckResult contains the outcome of running a check.
type CheckResult struct {
	Name       string      `yaml:"name"`
	Status     CheckStatus `yaml:"status"`
	Message    string      `yaml:"message"`
	Suggestion string      `yaml:"suggestion,omitempty"`
	Fixable    bool        `yaml:"fixable,omitempty"` // Whether --fix can address this
}

// Check defines the interface for diagnostic checks.
type Check interface {
	// Name returns the check's identifier.
	Name() string

	// Category returns one of the Category constants.
	Category() string

	// Run executes the check and returns the result.
	Run() CheckResult

	// Fix attempts to automatically fix the issue (if supported).
	// Returns nil if fix was successful or not applicable.
	Fix() error
}

// Category is one section of a report.
type Category struct {
	Name    string        `yaml:"name"`
	Results []CheckResult `yaml:"results"`
}

// RunAll executes all checks in order and returns the results.
func RunAll(checks []Check) []CheckResult {
	results := make([]CheckResult, len(checks))
	for i, check := range checks {
		results[i] = check.Run()
	}
	return results
}

// RunAllParallel executes all checks at once. Results keep the order of checks.
func RunAllParallel(checks []Check) []CheckResult {
	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup

	for i, check := range checks {
		wg.Add(1)
		go func(idx int, c Check) {
			defer wg.Done()
			results[idx] = c.Run()
		}(i, check)
	}

	wg.Wait()
	return results
}

// Group sorts results into categories following CategoryOrder. Categories
// without checks are left out; unknown categories come last.
func Group(checks []Check, results []CheckResult) []Category {
	byName := make(map[string]*Category)
	var extra []string
	for i, check := range checks {
		cat := check.Category()
		c, ok := byName[cat]
		if !ok {
			c = &Category{Name: cat}
			byName[cat] = c
			if !isKnownCategory(cat) {
				extra = append(extra, cat)
			}
		}
		c.Results = append(c.Results, results[i])
	}

	var out []Category
	for _, name := range append(append([]string(nil), CategoryOrder...), extra...) {
		if c, ok := byName[name]; ok {
			out = append(out, *c)
		}
	}
	return out
}

func isKnownCategory(name string) bool {
	for _, c := range CategoryOrder {
		if c == name {
			return true
		}
	}
	return false
}

// CountByStatus counts results by status.
func CountByStatus(results []CheckResult) map[CheckStatus]int {
	counts := make(map[CheckStatus]int)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}

// HasFailures returns true if any result has a fail status.
func HasFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.Status == StatusFail {
			return true
		}
	}
	return false
}

// HasIssues returns true if any result has a fail or warn status.
func HasIssues(results []CheckResult) bool {
	for _, r := range results {
		if r.Status == StatusFail || r.Status == StatusWarn {
			return true
		}
	}
	return false
}

// FixableCount returns the number of issues that can be fixed automatically.
func FixableCount(results []CheckResult) int {
	count := 0
	for _, r := range results {
		if r.Fixable && (r.Status == StatusFail || r.Status == StatusWarn) {
			count++
		}
	}
	return count
}

// Summary returns a summary string of the check results.
func Summary(results []CheckResult) string {
	counts := CountByStatus(results)
	warn := counts[StatusWarn]
	fail := counts[StatusFail]

	if fail == 0 && warn == 0 {
		return "Everything looks good"
	}

	total := warn + fail
	return fmt.Sprintf("%d issue%s found", total, pluralize(total))
}

// FixAll runs Fix on every fixable failing check and re-runs the ones that
// fixed successfully. results is updated in place.
func FixAll(checks []Check, results []CheckResult) []CheckResult {
	for i, result := range results {
		if result.Fixable && (result.Status == StatusFail || result.Status == StatusWarn) {
			if err := checks[i].Fix(); err == nil {
				results[i] = checks[i].Run()
			}
		}
	}
	return results
}

func pluralize(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
