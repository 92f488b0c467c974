package sshutil

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kevinburke/ssh_config"
)

// settings holds the connection parameters resolved for one node.
type settings struct {
	hostname      string
	port          string
	user          string
	identityFile  string
	encryptedKeys []string // keys found on disk that need a passphrase
}

func (s *settings) address() string {
	return net.JoinHostPort(s.hostname, s.port)
}

// matchWarningOnce keeps the Match-block warning to one line per process.
var matchWarningOnce sync.Once

// WarningHandler receives non-fatal configuration warnings.
// The dashboard points it at the logger so warnings don't land on the alternate screen.
var WarningHandler func(message string)

func emitWarning(message string) {
	if WarningHandler != nil {
		WarningHandler(message)
		return
	}
	fmt.Fprintf(os.Stderr, "Warning: %s\n", message)
}

// DefaultConfigPath is ~/.ssh/config.
func DefaultConfigPath() string {
	return filepath.Join(homeDir(), ".ssh", "config")
}

// resolveSettings parses node as [user@]host[:port] and fills in HostName,
// Port, User and IdentityFile from the ssh config at configPath. Explicit
// user and port in the node string win over the config file.
func resolveSettings(node, configPath string) *settings {
	s := &settings{
		port: "22",
		user: currentUser(),
	}

	host := node
	explicitUser, explicitPort := false, false
	if at := strings.Index(host, "@"); at != -1 {
		s.user = host[:at]
		host = host[at+1:]
		explicitUser = true
	}
	if colon := strings.LastIndex(host, ":"); colon != -1 && isDigits(host[colon+1:]) {
		s.port = host[colon+1:]
		host = host[:colon]
		explicitPort = true
	}
	s.hostname = host

	content, matchLine, err := preprocessSSHConfig(configPath)
	if err != nil {
		return s
	}
	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return s
	}

	found := false
	if v, _ := cfg.Get(host, "HostName"); v != "" {
		s.hostname = v
		found = true
	}
	if v, _ := cfg.Get(host, "Port"); v != "" {
		if !explicitPort {
			s.port = v
		}
		found = true
	}
	if v, _ := cfg.Get(host, "User"); v != "" {
		if !explicitUser {
			s.user = v
		}
		found = true
	}
	if v, _ := cfg.Get(host, "IdentityFile"); v != "" {
		s.identityFile = expandPath(v)
		found = true
	}

	// The node may be defined after a Match block we had to cut off.
	if matchLine > 0 && !found {
		matchWarningOnce.Do(func() {
			emitWarning(fmt.Sprintf(
				"node '%s' not found in ssh config; entries after the Match block at line %d are ignored",
				host, matchLine))
		})
	}
	return s
}

// preprocessSSHConfig returns the config content up to the first Match
// directive, which kevinburke/ssh_config can't parse, and the 1-based line
// number of that directive (0 if there is none).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "match ") {
			return []byte(strings.Join(lines[:i], "\n")), i + 1, nil
		}
	}
	return content, 0, nil
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

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
