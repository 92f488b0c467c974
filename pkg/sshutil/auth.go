package sshutil

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rileyhilliard/node-monitor/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// StrictHostKeyChecking controls host key verification.
// When true (default), host keys are verified against ~/.ssh/known_hosts
// and unknown hosts are rejected. Nothing is ever prompted for.
var StrictHostKeyChecking = true

// buildClientConfig collects non-interactive auth methods (agent, then key
// files) and the host key callback. Keys that need a passphrase are skipped
// and recorded in s.encryptedKeys for the error message.
func buildClientConfig(s *settings) (*ssh.ClientConfig, error) {
	var methods []ssh.AuthMethod

	tryKey := func(path string) {
		m, err := keyFileAuth(path)
		if err != nil {
			var encErr *EncryptedKeyError
			if stderrors.As(err, &encErr) {
				s.encryptedKeys = append(s.encryptedKeys, path)
			}
			return
		}
		methods = append(methods, m)
	}

	if a := agentAuth(); a != nil {
		methods = append(methods, a)
	}
	if s.identityFile != "" {
		tryKey(s.identityFile)
	}
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		path := filepath.Join(homeDir(), ".ssh", name)
		if path != s.identityFile {
			tryKey(path)
		}
	}

	if len(methods) == 0 {
		if len(s.encryptedKeys) > 0 {
			return nil, errors.New(errors.ErrSSH,
				fmt.Sprintf("Only encrypted SSH keys found: %s", strings.Join(s.encryptedKeys, ", ")),
				"Load them into the agent first: ssh-add "+strings.Join(s.encryptedKeys, " "))
		}
		return nil, errors.New(errors.ErrSSH,
			"No SSH auth methods available",
			"Check your keys are loaded: ssh-add -l")
	}

	var hostKeys ssh.HostKeyCallback
	if StrictHostKeyChecking {
		cb, err := hostKeyCallback(filepath.Join(homeDir(), ".ssh", "known_hosts"))
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrSSH,
				"Couldn't load known_hosts",
				"Fix ~/.ssh/known_hosts or set ssh.strict_host_key_checking: false")
		}
		hostKeys = cb
	} else {
		hostKeys = ssh.InsecureIgnoreHostKey() //nolint:gosec // disabled explicitly in config
	}

	return &ssh.ClientConfig{
		User:            s.user,
		Auth:            methods,
		HostKeyCallback: hostKeys,
	}, nil
}

// The agent connection is shared by every dial in the process.
var (
	agentConn   net.Conn
	agentClient agent.ExtendedAgent
	agentOnce   sync.Once
)

// agentAuth returns agent-backed auth, or nil when there is no agent or it holds no keys.
// An empty agent placed ahead of key files makes servers drop the connection early.
func agentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})
	if agentClient == nil {
		return nil
	}

	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}
	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent closes the shared agent connection, if any.
func CloseAgent() {
	if agentConn != nil {
		_ = agentConn.Close()
	}
}

func keyFileAuth(path string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || bytes.Contains(key, []byte("ENCRYPTED")) {
			return nil, &EncryptedKeyError{Path: path}
		}
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

// EncryptedKeyError is returned for a key that needs a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// HostKeyError reports a known_hosts rejection for a node. Want is empty
// when the host is simply unknown.
type HostKeyError struct {
	Hostname     string
	ReceivedType string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyError) Error() string {
	if len(e.Want) == 0 {
		return fmt.Sprintf("host key for %s is not in known_hosts", e.Hostname)
	}
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// hostKeyCallback wraps knownhosts so rejections carry a typed error.
// A missing known_hosts file is created empty.
func hostKeyCallback(path string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create .ssh directory: %w", err)
		}
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := cb(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if stderrors.As(err, &keyErr) {
			return &HostKeyError{Hostname: hostname, ReceivedType: key.Type(), Want: keyErr.Want}
		}
		return err
	}, nil
}
