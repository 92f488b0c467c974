package exec

import (
	"bytes"
	"context"
	stderrors "errors"
	"os/exec"

	"github.com/rileyhilliard/node-monitor/internal/errors"
)

// Capture runs name with args locally, without a shell, and captures all
// output. A non-zero exit is reported through exitCode with a nil error;
// err is only set when the command could not run or ctx ended first.
func Capture(ctx context.Context, name string, args ...string) (stdout, stderr []byte, exitCode int, err error) {
	var outBuf, errBuf bytes.Buffer
	command := exec.CommandContext(ctx, name, args...)
	command.Stdout = &outBuf
	command.Stderr = &errBuf

	runErr := command.Run()
	stdout, stderr = outBuf.Bytes(), errBuf.Bytes()
	if runErr == nil {
		return stdout, stderr, 0, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return stdout, stderr, -1, errors.WrapWithCode(ctxErr, errors.ErrExec,
			"'"+name+"' didn't finish in time",
			"")
	}

	var exitErr *exec.ExitError
	if stderrors.As(runErr, &exitErr) {
		return stdout, stderr, exitErr.ExitCode(), nil
	}

	if stderrors.Is(runErr, exec.ErrNotFound) {
		return stdout, stderr, -1, errors.WrapWithCode(runErr, errors.ErrExec,
			"'"+name+"' isn't installed or isn't on your PATH",
			"")
	}

	return stdout, stderr, -1, errors.WrapWithCode(runErr, errors.ErrExec,
		"Couldn't run '"+name+"'",
		"Make sure the command exists and is executable.")
}
