package sshutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rileyhilliard/node-monitor/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Client is an SSH connection to one node.
type Client struct {
	conn    *ssh.Client
	Node    string // node name as configured
	Address string // resolved host:port
}

// DialError describes a connection that never got as far as running a command.
// Stage is "dial" for TCP failures and "handshake" for key exchange and auth.
type DialError struct {
	Node    string
	Address string
	Stage   string
	Err     error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Address, e.Err)
}

func (e *DialError) Unwrap() error {
	return e.Err
}

// Dial connects to node using ~/.ssh/config. See DialWithConfig.
func Dial(ctx context.Context, node string, timeout time.Duration) (*Client, error) {
	return DialWithConfig(ctx, node, timeout, DefaultConfigPath())
}

// DialWithConfig connects to node and completes the SSH handshake, resolving
// connection settings from the ssh config at configPath. node may be an alias,
// a hostname, user@host or host:port.
//
// The dial and handshake together are bounded by timeout and by ctx. Returned
// errors are *errors.Error with code ErrSSH; connection failures wrap a
// *DialError.
func DialWithConfig(ctx context.Context, node string, timeout time.Duration, configPath string) (*Client, error) {
	s := resolveSettings(node, configPath)

	cfg, err := buildClientConfig(s)
	if err != nil {
		return nil, err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	address := s.address()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(&DialError{Node: node, Address: address, Stage: "dial", Err: err},
			errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s'", node),
			suggestionForDialError(err))
	}

	// ssh.NewClientConn takes no context, so the deadline goes on the socket
	// and cancellation closes it.
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, cfg)
	if err != nil {
		_ = conn.Close()
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return nil, errors.WrapWithCode(&DialError{Node: node, Address: address, Stage: "handshake", Err: err},
			errors.ErrSSH,
			fmt.Sprintf("SSH handshake with '%s' failed", node),
			suggestionForHandshakeError(err, s.encryptedKeys))
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		conn:    ssh.NewClient(sshConn, chans, reqs),
		Node:    node,
		Address: address,
	}, nil
}

// Alive sends a keepalive request and reports whether the server answered
// before ctx ended.
func (c *Client) Alive(ctx context.Context) bool {
	if c == nil || c.conn == nil {
		return false
	}

	reply := make(chan error, 1)
	go func() {
		_, _, err := c.conn.SendRequest("keepalive@openssh.com", true, nil)
		reply <- err
	}()

	select {
	case err := <-reply:
		return err == nil
	case <-ctx.Done():
		return false
	}
}

// Close closes the connection. Any command still running on it returns.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func suggestionForDialError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "Is sshd running on the node? Try: ssh <node>"
	case strings.Contains(msg, "no such host"):
		return "The node name doesn't resolve. Check --nodes or your ssh config."
	case strings.Contains(msg, "no route to host"), strings.Contains(msg, "network is unreachable"):
		return "The node is not routable from here. Check your network connection."
	case strings.Contains(msg, "timeout"), stderrors.Is(err, context.DeadlineExceeded):
		return "Connection timed out. The node might be down or firewalled."
	default:
		return "Make sure the node is reachable: ping <node>"
	}
}

func suggestionForHandshakeError(err error, encryptedKeys []string) string {
	var hkErr *HostKeyError
	if stderrors.As(err, &hkErr) {
		if len(hkErr.Want) == 0 {
			return "Connect once with ssh <node> to record its host key"
		}
		return "The node's host key changed. Remove the old entry with: ssh-keygen -R <node>"
	}

	msg := err.Error()
	if strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "no supported methods") {
		if len(encryptedKeys) > 0 {
			return "Your keys are encrypted. Add them to the agent: ssh-add " + strings.Join(encryptedKeys, " ")
		}
		return "Auth failed. Check your keys are loaded: ssh-add -l"
	}
	return "Something went wrong during SSH setup. Try: ssh <node>"
}
