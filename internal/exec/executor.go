// Package exec runs local commands and interprets shell failures.
package exec

import (
	"fmt"
	"regexp"
)

// ExitCommandNotFound is the shell's exit status for a missing command.
const ExitCommandNotFound = 127

// commandNotFoundPatterns detect "command not found" messages from various
// shells. They only apply with exit code 127.
var commandNotFoundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bash: (\S+): command not found`),
	regexp.MustCompile(`(?i)zsh: command not found: (\S+)`),
	regexp.MustCompile(`(?i)sh: \d+: (\S+): not found`),
	regexp.MustCompile(`(?i)-bash: (\S+): No such file or directory`),
	regexp.MustCompile(`(?i)(\S+): not found`),
	regexp.MustCompile(`(?i)(\S+): command not found`),
}

// IsCommandNotFound checks if the error output indicates a missing command.
// Returns the command name (if extractable) and whether it's a command-not-found error.
func IsCommandNotFound(stderr string, exitCode int) (string, bool) {
	if exitCode != ExitCommandNotFound {
		return "", false
	}

	for _, pattern := range commandNotFoundPatterns {
		if matches := pattern.FindStringSubmatch(stderr); len(matches) > 1 {
			return matches[1], true
		}
	}

	return "", true
}

// NotFoundDetail turns a command-not-found failure into a short message
// naming the missing tool. It reports false for any other failure.
func NotFoundDetail(stderr string, exitCode int) (string, bool) {
	name, ok := IsCommandNotFound(stderr, exitCode)
	if !ok {
		return "", false
	}
	if name == "" {
		return "command not found on node", true
	}
	return fmt.Sprintf("%s: command not found on node", name), true
}
