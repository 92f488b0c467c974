package testing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rileyhilliard/node-monitor/pkg/sshutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_ExactAndPatternResponses(t *testing.T) {
	m := NewMockClient("gpu-01")
	m.SetCommandResponse("nvidia-smi --list-gpus", CommandResponse{Stdout: []byte("GPU 0\n")})
	m.SetCommandResponse(`^nvidia-smi --query-gpu=.*`, CommandResponse{Stdout: []byte("0, 1, 2, 3\n")})

	stdout, _, code, err := m.ExecContext(context.Background(), "nvidia-smi --list-gpus")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "GPU 0\n", string(stdout))

	stdout, _, _, err = m.ExecContext(context.Background(), "nvidia-smi --query-gpu=index --format=csv")
	require.NoError(t, err)
	assert.Equal(t, "0, 1, 2, 3\n", string(stdout))

	assert.Equal(t, 2, m.ExecCount())
}

func TestMockClient_UnknownCommand(t *testing.T) {
	m := NewMockClient("gpu-01")

	_, stderr, code, err := m.ExecContext(context.Background(), "uptime")
	require.NoError(t, err)
	assert.Equal(t, 127, code)
	assert.Contains(t, string(stderr), "no response")
}

func TestMockClient_DefaultResponse(t *testing.T) {
	m := NewMockClient("gpu-01")
	m.SetDefaultResponse(CommandResponse{Stderr: []byte("nvidia-smi: not found"), ExitCode: 127})

	_, stderr, code, err := m.ExecContext(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, 127, code)
	assert.Equal(t, "nvidia-smi: not found", string(stderr))
}

func TestMockClient_CustomError(t *testing.T) {
	m := NewMockClient("gpu-01")
	m.SetDefaultResponse(CommandResponse{Error: errors.New("session reset")})

	_, _, _, err := m.ExecContext(context.Background(), "x")
	assert.EqualError(t, err, "session reset")
}

func TestMockClient_DelayHonorsContext(t *testing.T) {
	m := NewMockClient("gpu-01")
	m.SetDefaultResponse(CommandResponse{Delay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, code, err := m.ExecContext(ctx, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, -1, code)
	assert.Less(t, time.Since(start), time.Second)
}

func TestMockClient_CloseAndKill(t *testing.T) {
	m := NewMockClient("gpu-01")
	assert.True(t, m.Alive(context.Background()))

	m.Kill()
	assert.False(t, m.Alive(context.Background()))
	assert.False(t, m.IsClosed())

	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())

	_, _, _, err := m.ExecContext(context.Background(), "x")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMockDialer(t *testing.T) {
	d := NewMockDialer()
	d.Respond("gpu-01", CommandResponse{Stdout: []byte("ok")})
	d.FailDial("gpu-02", errors.New("connection refused"))

	conn, err := d.Dial(context.Background(), "gpu-01", time.Second)
	require.NoError(t, err)
	stdout, _, _, err := conn.ExecContext(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(stdout))

	_, err = d.Dial(context.Background(), "gpu-02", time.Second)
	assert.EqualError(t, err, "connection refused")

	_, err = d.Dial(context.Background(), "gpu-99", time.Second)
	var dialErr *sshutil.DialError
	assert.ErrorAs(t, err, &dialErr)

	assert.Equal(t, 1, d.DialCount("gpu-01"))
	assert.Len(t, d.Clients("gpu-01"), 1)
	assert.Empty(t, d.Clients("gpu-02"))
}

func TestMockDialer_DelayHonorsContext(t *testing.T) {
	d := NewMockDialer()
	d.Respond("slow", CommandResponse{})
	d.DelayDial("slow", time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.Dial(ctx, "slow", 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
