// Package testing provides in-memory stand-ins for SSH connections so the
// poller, scheduler and pool can be tested without a cluster.
package testing

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/node-monitor/pkg/sshutil"
)

// ErrClosed is returned by a MockClient used after Close.
var ErrClosed = errors.New("connection closed")

// CommandResponse defines a canned response for a command pattern.
// Delay is waited out before responding; a context that ends first wins.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
	Delay    time.Duration
}

// MockClient simulates one SSH connection to a node.
type MockClient struct {
	mu        sync.Mutex
	node      string
	closed    bool
	dead      bool
	commands  map[string]CommandResponse // pattern -> response
	fallback  *CommandResponse
	execCount atomic.Int32
}

var _ sshutil.Conn = (*MockClient)(nil)

// NewMockClient creates a mock connection with no canned responses.
// Commands without a response fail with exit code 127.
func NewMockClient(node string) *MockClient {
	return &MockClient{
		node:     node,
		commands: make(map[string]CommandResponse),
	}
}

// SetCommandResponse registers a response for an exact command or a regex pattern.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[pattern] = resp
}

// SetDefaultResponse sets the response for any command without a specific match.
func (m *MockClient) SetDefaultResponse(resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &resp
}

// Kill makes the connection fail its next liveness check, as a dropped TCP session would.
func (m *MockClient) Kill() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dead = true
}

// ExecContext returns the canned response for cmd, honoring Delay and ctx.
func (m *MockClient) ExecContext(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	m.execCount.Add(1)

	resp, err := m.lookup(cmd)
	if err != nil {
		return nil, nil, -1, err
	}

	if resp.Delay > 0 {
		timer := time.NewTimer(resp.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, nil, -1, ctx.Err()
		case <-timer.C:
		}
	} else if ctx.Err() != nil {
		return nil, nil, -1, ctx.Err()
	}

	return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
}

func (m *MockClient) lookup(cmd string) (CommandResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return CommandResponse{}, ErrClosed
	}
	if resp, ok := m.commands[cmd]; ok {
		return resp, nil
	}
	for pattern, resp := range m.commands {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return resp, nil
		}
	}
	if m.fallback != nil {
		return *m.fallback, nil
	}
	return CommandResponse{
		Stderr:   []byte(fmt.Sprintf("mock: no response for %q", cmd)),
		ExitCode: 127,
	}, nil
}

// Alive reports false once the client is closed or killed.
func (m *MockClient) Alive(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && !m.dead && ctx.Err() == nil
}

// Close marks the connection closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (m *MockClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// ExecCount returns how many commands were run on this connection.
func (m *MockClient) ExecCount() int {
	return int(m.execCount.Load())
}

// Node returns the node this mock stands in for.
func (m *MockClient) Node() string {
	return m.node
}

// MockDialer hands out MockClients per node and counts dials.
// Each dial produces a fresh client configured by the node's setup function,
// so a re-dial after a dropped connection behaves like a new session.
type MockDialer struct {
	mu      sync.Mutex
	setups  map[string]func(*MockClient)
	errs    map[string]error
	delays  map[string]time.Duration
	clients map[string][]*MockClient
	dials   map[string]int
}

// NewMockDialer creates a dialer that knows no nodes.
// Unknown nodes fail to dial with a *sshutil.DialError.
func NewMockDialer() *MockDialer {
	return &MockDialer{
		setups:  make(map[string]func(*MockClient)),
		errs:    make(map[string]error),
		delays:  make(map[string]time.Duration),
		clients: make(map[string][]*MockClient),
		dials:   make(map[string]int),
	}
}

// Handle registers node with a setup function applied to every client dialed for it.
func (d *MockDialer) Handle(node string, setup func(*MockClient)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setups[node] = setup
}

// Respond registers node so that every command returns resp.
func (d *MockDialer) Respond(node string, resp CommandResponse) {
	d.Handle(node, func(c *MockClient) { c.SetDefaultResponse(resp) })
}

// FailDial makes dialing node return err.
func (d *MockDialer) FailDial(node string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs[node] = err
}

// DelayDial makes dialing node take delay, or until the context ends.
func (d *MockDialer) DelayDial(node string, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delays[node] = delay
}

// Dial satisfies sshutil.DialFunc.
func (d *MockDialer) Dial(ctx context.Context, node string, _ time.Duration) (sshutil.Conn, error) {
	d.mu.Lock()
	d.dials[node]++
	setup, known := d.setups[node]
	err := d.errs[node]
	delay := d.delays[node]
	d.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, &sshutil.DialError{Node: node, Address: node + ":22", Stage: "dial", Err: ctx.Err()}
		case <-timer.C:
		}
	}

	if err != nil {
		return nil, err
	}
	if !known {
		return nil, &sshutil.DialError{Node: node, Address: node + ":22", Stage: "dial", Err: errors.New("no such host")}
	}

	c := NewMockClient(node)
	if setup != nil {
		setup(c)
	}

	d.mu.Lock()
	d.clients[node] = append(d.clients[node], c)
	d.mu.Unlock()
	return c, nil
}

// DialCount returns how many times node was dialed.
func (d *MockDialer) DialCount(node string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[node]
}

// Clients returns every client dialed for node, oldest first.
func (d *MockDialer) Clients(node string) []*MockClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*MockClient(nil), d.clients[node]...)
}
