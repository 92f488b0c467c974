package sshutil

import (
	"context"
	"time"
)

// Conn is a connection that can run commands on a node.
// Both *Client and the mocks in sshutil/testing satisfy it.
type Conn interface {
	// ExecContext runs cmd and returns stdout, stderr and exit code.
	// It returns ctx.Err() if ctx ends before the command does.
	ExecContext(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error)

	// Alive reports whether the connection still answers, bounded by ctx.
	Alive(ctx context.Context) bool

	// Close closes the connection.
	Close() error
}

// DialFunc opens a Conn to node.
type DialFunc func(ctx context.Context, node string, timeout time.Duration) (Conn, error)

// DialConn is the DialFunc for real SSH connections.
func DialConn(ctx context.Context, node string, timeout time.Duration) (Conn, error) {
	c, err := Dial(ctx, node, timeout)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ExecResult is the captured outcome of one remote command.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}
