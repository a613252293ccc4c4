package lockengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/waitlock/waitlock/internal/lockfs"
	"github.com/waitlock/waitlock/internal/procprobe"
)

// ExecGraceTimeout is how long ExecWithLock waits after forwarding a
// termination request to the child before escalating to SIGKILL.
const ExecGraceTimeout = 5 * time.Second

// ExecInput describes one exec-with-lock invocation.
type ExecInput struct {
	Acquire AcquireInput
	Argv    []string
}

// ExecResult is what the caller's process should exit with.
type ExecResult struct {
	ExitCode int
	Kind     Kind
}

// ExecWithLock acquires a slot, runs argv while holding it, forwards
// signals, and translates the child's outcome into an exit code. The
// slot is always released, via defer, regardless of how the child exits.
//
// ctx cancellation is used both to interrupt the acquire wait (mapped to
// ErrCancelled) and, once the child is running, to request termination:
// the first Done forwards SIGTERM to the child; if the child hasn't
// exited after ExecGraceTimeout, SIGKILL is sent.
func ExecWithLock(ctx context.Context, fsys lockfs.FS, prober procprobe.Prober, in ExecInput) (ExecResult, error) {
	holder, err := Acquire(fsys, prober, ctx.Done(), in.Acquire)
	if err != nil {
		return ExecResult{Kind: KindOf(err)}, err
	}

	defer func() { _ = holder.Release() }()

	if len(in.Argv) == 0 {
		return ExecResult{Kind: KindUsage}, fmt.Errorf("%w: no command given", ErrDescriptorInvalid)
	}

	cmd := exec.Command(in.Argv[0], in.Argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	if in.Acquire.MaxHolders > 1 {
		cmd.Env = append(cmd.Env, "WAITLOCK_SLOT="+strconv.FormatUint(uint64(holder.Slot()), 10))
	}

	if startErr := cmd.Start(); startErr != nil {
		if errors.Is(startErr, exec.ErrNotFound) || os.IsNotExist(startErr) {
			return ExecResult{ExitCode: 127, Kind: KindNotFound}, startErr
		}

		return ExecResult{ExitCode: 126, Kind: KindExecFailed}, startErr
	}

	if in.Acquire.Logger != nil {
		in.Acquire.Logger.Info("exec-start", "descriptor", in.Acquire.Descriptor, "argv", in.Argv)
	}

	waitDone := make(chan error, 1)

	go func() { waitDone <- cmd.Wait() }()

	result := waitForChild(ctx, cmd, waitDone)

	if in.Acquire.Logger != nil {
		in.Acquire.Logger.Info("exec-end", "descriptor", in.Acquire.Descriptor, "exit_code", result.ExitCode)
	}

	return result, nil
}

// waitForChild blocks until the child exits, forwarding the context's
// cancellation to the child as SIGTERM-then-SIGKILL.
func waitForChild(ctx context.Context, cmd *exec.Cmd, waitDone <-chan error) ExecResult {
	select {
	case err := <-waitDone:
		return classifyWaitResult(err)
	case <-ctx.Done():
	}

	_ = cmd.Process.Signal(syscall.SIGTERM)

	select {
	case err := <-waitDone:
		return classifyWaitResult(err)
	case <-time.After(ExecGraceTimeout):
		_ = cmd.Process.Kill()
		<-waitDone

		return ExecResult{ExitCode: 128 + int(syscall.SIGKILL), Kind: KindCancelled}
	}
}

func classifyWaitResult(err error) ExecResult {
	if err == nil {
		return ExecResult{ExitCode: 0, Kind: KindNone}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return ExecResult{ExitCode: 128 + int(status.Signal()), Kind: KindExecFailed}
		}

		// A non-zero child exit status is not itself a waitlock-level
		// failure kind; it is simply the status to propagate.
		return ExecResult{ExitCode: exitErr.ExitCode(), Kind: KindNone}
	}

	return ExecResult{ExitCode: 4, Kind: KindSystem}
}
