package sshutil_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/node-monitor/pkg/sshutil"
	sshtest "github.com/rileyhilliard/node-monitor/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_ReusesConnection(t *testing.T) {
	d := sshtest.NewMockDialer()
	d.Respond("gpu-01", sshtest.CommandResponse{Stdout: []byte("0, 10, 1, 2\n")})

	p := sshutil.NewPool(d.Dial, time.Second)
	defer p.Close()

	for i := 0; i < 3; i++ {
		res, err := p.Execute(context.Background(), "gpu-01", "nvidia-smi")
		require.NoError(t, err)
		assert.Equal(t, "0, 10, 1, 2\n", res.Stdout)
		assert.Equal(t, 0, res.ExitCode)
	}

	assert.Equal(t, 1, d.DialCount("gpu-01"))
	assert.Equal(t, 1, p.Size())
}

func TestPool_NonZeroExitKeepsConnection(t *testing.T) {
	d := sshtest.NewMockDialer()
	d.Respond("gpu-01", sshtest.CommandResponse{Stderr: []byte("NVIDIA-SMI has failed"), ExitCode: 9})

	p := sshutil.NewPool(d.Dial, time.Second)
	defer p.Close()

	res, err := p.Execute(context.Background(), "gpu-01", "nvidia-smi")
	require.NoError(t, err)
	assert.Equal(t, 9, res.ExitCode)
	assert.Equal(t, "NVIDIA-SMI has failed", res.Stderr)
	assert.Equal(t, 1, p.Size())
}

func TestPool_RedialsDeadConnection(t *testing.T) {
	d := sshtest.NewMockDialer()
	d.Respond("gpu-01", sshtest.CommandResponse{Stdout: []byte("ok")})

	p := sshutil.NewPool(d.Dial, time.Second)
	defer p.Close()

	_, err := p.Execute(context.Background(), "gpu-01", "x")
	require.NoError(t, err)

	first := d.Clients("gpu-01")[0]
	first.Kill()

	_, err = p.Execute(context.Background(), "gpu-01", "x")
	require.NoError(t, err)

	assert.Equal(t, 2, d.DialCount("gpu-01"))
	assert.True(t, first.IsClosed())
}

func TestPool_ErrorDropsConnection(t *testing.T) {
	d := sshtest.NewMockDialer()
	d.Respond("gpu-01", sshtest.CommandResponse{Delay: time.Hour})

	p := sshutil.NewPool(d.Dial, time.Second)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Execute(ctx, "gpu-01", "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, p.Size())
	assert.True(t, d.Clients("gpu-01")[0].IsClosed())
}

func TestPool_DialFailure(t *testing.T) {
	d := sshtest.NewMockDialer()
	d.FailDial("gpu-02", &sshutil.DialError{Node: "gpu-02", Address: "gpu-02:22", Stage: "dial", Err: errors.New("connection refused")})

	p := sshutil.NewPool(d.Dial, time.Second)
	defer p.Close()

	_, err := p.Execute(context.Background(), "gpu-02", "x")
	var dialErr *sshutil.DialError
	require.ErrorAs(t, err, &dialErr)
	assert.Equal(t, 0, p.Size())

	// Each attempt dials again; failures are not cached.
	_, _ = p.Execute(context.Background(), "gpu-02", "x")
	assert.Equal(t, 2, d.DialCount("gpu-02"))
}

func TestPool_ConcurrentNodes(t *testing.T) {
	d := sshtest.NewMockDialer()
	nodes := []string{"a", "b", "c", "d"}
	for _, n := range nodes {
		d.Respond(n, sshtest.CommandResponse{Stdout: []byte(n)})
	}

	p := sshutil.NewPool(d.Dial, time.Second)

	var wg sync.WaitGroup
	for _, n := range nodes {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			res, err := p.Execute(context.Background(), n, "x")
			assert.NoError(t, err)
			assert.Equal(t, n, res.Stdout)
		}(n)
	}
	wg.Wait()

	assert.Equal(t, 4, p.Size())
	p.Close()
	assert.Equal(t, 0, p.Size())
	for _, n := range nodes {
		assert.True(t, d.Clients(n)[0].IsClosed())
	}
}

func TestPool_CloseOne(t *testing.T) {
	d := sshtest.NewMockDialer()
	d.Respond("a", sshtest.CommandResponse{})
	d.Respond("b", sshtest.CommandResponse{})

	p := sshutil.NewPool(d.Dial, time.Second)
	defer p.Close()

	_, err := p.Get(context.Background(), "a")
	require.NoError(t, err)
	_, err = p.Get(context.Background(), "b")
	require.NoError(t, err)

	p.CloseOne("a")
	assert.Equal(t, 1, p.Size())
	assert.True(t, d.Clients("a")[0].IsClosed())
	assert.False(t, d.Clients("b")[0].IsClosed())
}
