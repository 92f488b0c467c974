package sshutil

import (
	"context"
	"sync"
	"time"
)

// Pool caches one SSH connection per node between refresh ticks so each
// poll doesn't pay for a new handshake. A connection that fails a liveness
// check or a command is dropped and re-dialed on the next use.
//
// Pool is safe for concurrent use by the scheduler's workers. Dials happen
// outside the lock, so one slow node never blocks the others.
type Pool struct {
	mu          sync.Mutex
	connections map[string]*poolEntry
	dial        DialFunc
	dialTimeout time.Duration
}

type poolEntry struct {
	conn     Conn
	lastUsed time.Time
}

// NewPool creates a connection pool. A nil dial uses DialConn.
// dialTimeout caps each dial in addition to the caller's context; 0 means
// only the context applies.
func NewPool(dial DialFunc, dialTimeout time.Duration) *Pool {
	if dial == nil {
		dial = DialConn
	}
	return &Pool{
		connections: make(map[string]*poolEntry),
		dial:        dial,
		dialTimeout: dialTimeout,
	}
}

// Get returns the cached connection for node if it is still alive, or dials a new one.
func (p *Pool) Get(ctx context.Context, node string) (Conn, error) {
	p.mu.Lock()
	entry, exists := p.connections[node]
	p.mu.Unlock()

	if exists {
		if entry.conn.Alive(ctx) {
			p.touch(node)
			return entry.conn, nil
		}
		p.remove(node)
	}

	conn, err := p.dial(ctx, node, p.dialTimeout)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if old, ok := p.connections[node]; ok {
		_ = old.conn.Close()
	}
	p.connections[node] = &poolEntry{conn: conn, lastUsed: time.Now()}
	p.mu.Unlock()

	return conn, nil
}

// Execute runs cmd on node over a pooled connection.
// Any error drops the connection, including a context timeout: a session
// killed mid-command can leave the transport in an unknown state.
func (p *Pool) Execute(ctx context.Context, node, cmd string) (ExecResult, error) {
	conn, err := p.Get(ctx, node)
	if err != nil {
		return ExecResult{}, err
	}

	stdout, stderr, code, err := conn.ExecContext(ctx, cmd)
	if err != nil {
		p.remove(node)
		return ExecResult{}, err
	}

	return ExecResult{Stdout: string(stdout), Stderr: string(stderr), ExitCode: code}, nil
}

// Close closes every pooled connection.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for node, entry := range p.connections {
		_ = entry.conn.Close()
		delete(p.connections, node)
	}
}

// CloseOne closes and forgets the connection for node.
func (p *Pool) CloseOne(node string) {
	p.remove(node)
}

// Size returns the number of cached connections.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.connections)
}

func (p *Pool) touch(node string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.connections[node]; ok {
		e.lastUsed = time.Now()
	}
}

func (p *Pool) remove(node string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.connections[node]; ok {
		_ = entry.conn.Close()
		delete(p.connections, node)
	}
}
