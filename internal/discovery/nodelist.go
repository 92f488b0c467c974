package discovery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rileyhilliard/node-monitor/internal/errors"
)

// maxExpansion caps how many names a single node list may expand to.
const maxExpansion = 4096

// fragment is one piece of a host pattern: a literal or a bracketed range.
// A range keeps each number's printed form so zero padding survives.
type fragment struct {
	literal string
	numbers []string
}

// ParseNodeList expands a comma-separated node list with Slurm-style ranges:
//
//	gpu-[1-3,7]      gpu-1 gpu-2 gpu-3 gpu-7
//	a[01-02],b       a01 a02 b
//	r[1-2]n[1-2]     r1n1 r1n2 r2n1 r2n2
//
// Whitespace around entries is trimmed, empty entries are skipped and
// duplicates keep their first position.
func ParseNodeList(s string) ([]string, error) {
	patterns, err := splitPatterns(s)
	if err != nil {
		return nil, invalidList(s, err)
	}

	seen := make(map[string]bool)
	nodes := make([]string, 0, len(patterns))
	for _, p := range patterns {
		expanded, err := expandPattern(p)
		if err != nil {
			return nil, invalidList(s, err)
		}
		for _, n := range expanded {
			if seen[n] {
				continue
			}
			if len(nodes) >= maxExpansion {
				return nil, invalidList(s, fmt.Errorf("expands to more than %d nodes", maxExpansion))
			}
			seen[n] = true
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

func invalidList(s string, err error) error {
	return errors.WrapWithCode(err, errors.ErrConfig,
		fmt.Sprintf("Invalid node list %q", s),
		"Use comma-separated names or ranges like gpu-[01-04],gpu-07")
}

// splitPatterns splits on commas outside brackets.
func splitPatterns(s string) ([]string, error) {
	var (
		patterns []string
		inside   bool
		start    int
	)
	for i, c := range s {
		switch c {
		case '[':
			if inside {
				return nil, fmt.Errorf("nested brackets")
			}
			inside = true
		case ']':
			if !inside {
				return nil, fmt.Errorf("unmatched ']'")
			}
			inside = false
		case ',':
			if !inside {
				patterns = appendTrimmed(patterns, s[start:i])
				start = i + 1
			}
		}
	}
	if inside {
		return nil, fmt.Errorf("missing ']'")
	}
	return appendTrimmed(patterns, s[start:]), nil
}

func appendTrimmed(patterns []string, p string) []string {
	if p = strings.TrimSpace(p); p != "" {
		patterns = append(patterns, p)
	}
	return patterns
}

func expandPattern(p string) ([]string, error) {
	frags, err := parseFragments(p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}

	names := []string{""}
	for _, f := range frags {
		if f.numbers == nil {
			for i := range names {
				names[i] += f.literal
			}
			continue
		}
		if len(names)*len(f.numbers) > maxExpansion {
			return nil, fmt.Errorf("%s: expands to more than %d nodes", p, maxExpansion)
		}
		next := make([]string, 0, len(names)*len(f.numbers))
		for _, n := range names {
			for _, num := range f.numbers {
				next = append(next, n+num)
			}
		}
		names = next
	}
	return names, nil
}

func parseFragments(p string) ([]fragment, error) {
	var frags []fragment
	for len(p) > 0 {
		open := strings.IndexByte(p, '[')
		if open < 0 {
			frags = append(frags, fragment{literal: p})
			break
		}
		if open > 0 {
			frags = append(frags, fragment{literal: p[:open]})
		}
		end := strings.IndexByte(p[open:], ']')
		if end < 0 {
			return nil, fmt.Errorf("missing ']'")
		}
		nums, err := parseRange(p[open+1 : open+end])
		if err != nil {
			return nil, err
		}
		frags = append(frags, fragment{numbers: nums})
		p = p[open+end+1:]
	}
	for _, f := range frags {
		if strings.ContainsAny(f.literal, "*? \t") {
			return nil, fmt.Errorf("unexpected character in %q", f.literal)
		}
	}
	return frags, nil
}

// parseRange parses the inside of a bracket: "1-3,7" or "01-10".
func parseRange(body string) ([]string, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("empty range")
	}
	var out []string
	for _, elt := range strings.Split(body, ",") {
		elt = strings.TrimSpace(elt)
		lo, hi, isRange := strings.Cut(elt, "-")
		if !isDigits(lo) || (isRange && !isDigits(hi)) {
			return nil, fmt.Errorf("bad range element %q", elt)
		}
		if !isRange {
			out = append(out, lo)
			continue
		}

		a, err := strconv.Atoi(lo)
		if err != nil {
			return nil, err
		}
		b, err := strconv.Atoi(hi)
		if err != nil {
			return nil, err
		}
		if a > b {
			return nil, fmt.Errorf("bad range %q: start is after end", elt)
		}
		if b-a >= maxExpansion {
			return nil, fmt.Errorf("range %q expands to more than %d nodes", elt, maxExpansion)
		}
		width := 0
		if len(lo) > 1 && lo[0] == '0' {
			width = len(lo)
		}
		for n := a; n <= b; n++ {
			out = append(out, fmt.Sprintf("%0*d", width, n))
		}
	}
	return out, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
