package doctor

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	nmexec "github.com/rileyhilliard/node-monitor/internal/exec"
)

// keyNames are the default identity files the SSH transport tries.
var keyNames = []string{"id_ed25519", "id_rsa", "id_ecdsa"}

// sshDir returns home/.ssh, falling back to the user's home directory.
func sshDir(home string) (string, error) {
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(home, ".ssh"), nil
}

// SSHKeyCheck verifies an SSH key exists.
type SSHKeyCheck struct {
	Home string // empty means the user's home directory
}

func (c *SSHKeyCheck) Name() string     { return "ssh_key" }
func (c *SSHKeyCheck) Category() string { return CategorySSH }

func (c *SSHKeyCheck) Run() CheckResult {
	dir, err := sshDir(c.Home)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Cannot determine home directory",
			Suggestion: "Check HOME environment variable",
		}
	}

	for _, name := range keyNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return CheckResult{
				Name:    c.Name(),
				Status:  StatusPass,
				Message: fmt.Sprintf("SSH key found: ~/.ssh/%s", name),
			}
		}
	}

	// The agent may still hold a key, so this alone doesn't block polling.
	return CheckResult{
		Name:       c.Name(),
		Status:     StatusWarn,
		Message:    "No default SSH key file found",
		Suggestion: "Generate a key with: ssh-keygen -t ed25519, or load one into ssh-agent",
	}
}

func (c *SSHKeyCheck) Fix() error {
	return nil
}

// SSHAgentCheck verifies the SSH agent is running and holds keys.
type SSHAgentCheck struct{}

func (c *SSHAgentCheck) Name() string     { return "ssh_agent" }
func (c *SSHAgentCheck) Category() string { return CategorySSH }

func (c *SSHAgentCheck) Run() CheckResult {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent not running",
			Suggestion: "Key files are still tried. To use the agent: eval $(ssh-agent) && ssh-add",
		}
	}

	conn, err := net.DialTimeout("unix", socket, 2*time.Second)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent socket not accessible",
			Suggestion: "Fix: eval $(ssh-agent) && ssh-add",
		}
	}
	conn.Close() //nolint:errcheck // Best-effort close, error not actionable

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stdout, _, exitCode, err := nmexec.Capture(ctx, "ssh-add", "-l")
	switch {
	case err != nil:
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "SSH agent running",
		}
	case exitCode == 1:
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent running but no keys loaded",
			Suggestion: "Add a key with: ssh-add",
		}
	case exitCode != 0:
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Cannot query SSH agent",
			Suggestion: "Check SSH agent: ssh-add -l",
		}
	}

	keyCount := 0
	for _, line := range strings.Split(strings.TrimSpace(string(stdout)), "\n") {
		if strings.TrimSpace(line) != "" {
			keyCount++
		}
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("SSH agent running with %d key%s loaded", keyCount, pluralize(keyCount)),
	}
}

func (c *SSHAgentCheck) Fix() error {
	return nil
}

// SSHKeyPermissionsCheck verifies private keys aren't readable by others,
// which makes them unusable.
type SSHKeyPermissionsCheck struct {
	Home string
}

func (c *SSHKeyPermissionsCheck) Name() string     { return "ssh_key_permissions" }
func (c *SSHKeyPermissionsCheck) Category() string { return CategorySSH }

func (c *SSHKeyPermissionsCheck) Run() CheckResult {
	dir, err := sshDir(c.Home)
	if err != nil {
		return CheckResult{Name: c.Name(), Status: StatusPass, Message: "Skipped: no home directory"}
	}

	var badPerms []string
	var foundKey bool
	for _, name := range keyNames {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		foundKey = true
		if info.Mode().Perm()&0o077 != 0 {
			badPerms = append(badPerms, name)
		}
	}

	if !foundKey {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "No private keys to check",
		}
	}

	if len(badPerms) > 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Insecure permissions on: %s", strings.Join(badPerms, ", ")),
			Suggestion: "Fix: chmod 600 ~/.ssh/<keyfile>",
			Fixable:    true,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "SSH key permissions OK",
	}
}

func (c *SSHKeyPermissionsCheck) Fix() error {
	dir, err := sshDir(c.Home)
	if err != nil {
		return err
	}

	for _, name := range keyNames {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Mode().Perm()&0o077 != 0 {
			if err := os.Chmod(path, 0o600); err != nil {
				return fmt.Errorf("failed to fix permissions on %s: %w", path, err)
			}
		}
	}
	return nil
}

// NewSSHChecks creates all SSH-related checks.
func NewSSHChecks() []Check {
	return []Check{
		&SSHKeyCheck{},
		&SSHAgentCheck{},
		&SSHKeyPermissionsCheck{},
	}
}
