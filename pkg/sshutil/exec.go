package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"

	"github.com/rileyhilliard/node-monitor/internal/errors"
	"golang.org/x/crypto/ssh"
)

// ExecContext runs cmd in a new session and returns its output and exit code.
// Exit code is -1 if the command couldn't be run or didn't report a status.
// A non-zero exit code with nil error means the command ran and failed.
//
// ctx bounds the whole call, opening the session included. If ctx ends
// before the server confirms the session, the connection is closed. If it
// ends while the command runs, the remote process is sent SIGKILL and the
// session is closed. Either way ctx.Err() is returned and any output
// produced after that point is discarded.
func (c *Client) ExecContext(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, -1, err
	}

	session, err := c.openSession(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, -1, ctx.Err()
		}
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't open a session on '%s'", c.Node),
			"The connection may have dropped; it is re-dialed on the next poll.")
	}

	var outBuf, errBuf bytes.Buffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return nil, nil, -1, ctx.Err()
	case err = <-done:
	}
	defer session.Close()

	if err != nil {
		var exitErr *ssh.ExitError
		if stderrors.As(err, &exitErr) {
			return outBuf.Bytes(), errBuf.Bytes(), exitErr.ExitStatus(), nil
		}
		var missing *ssh.ExitMissingError
		if stderrors.As(err, &missing) {
			return outBuf.Bytes(), errBuf.Bytes(), -1, errors.WrapWithCode(err, errors.ErrExec,
				"Remote command ended without an exit status", "")
		}
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Lost connection to '%s' while running the query", c.Node), "")
	}

	return outBuf.Bytes(), errBuf.Bytes(), 0, nil
}

type openResult struct {
	session *ssh.Session
	err     error
}

// openSession opens a session, giving up when ctx ends. NewSession has no
// context and blocks until the server answers the channel open, so a node
// that never answers gets its connection closed, which unblocks it.
func (c *Client) openSession(ctx context.Context) (*ssh.Session, error) {
	opened := make(chan openResult, 1)
	go func() {
		s, err := c.conn.NewSession()
		opened <- openResult{session: s, err: err}
	}()

	select {
	case r := <-opened:
		return r.session, r.err
	case <-ctx.Done():
		_ = c.conn.Close()
		return nil, ctx.Err()
	}
}
