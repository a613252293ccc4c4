package cli

import (
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHelp(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{
		{"waitlock", "--help"},
		{"waitlock", "-h"},
	} {
		cli := NewCLI(t)

		stdout, stderr, code := cli.Run(args[1:]...)
		require.Equal(t, 0, code)
		require.Empty(t, stderr)
		require.Contains(t, stdout, "waitlock - cross-process advisory lock")
		require.Contains(t, stdout, "--exec")
	}
}

func TestVersion(t *testing.T) {
	t.Parallel()

	cli := NewCLI(t)

	stdout, _, code := cli.Run("--version")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "waitlock")
}

func TestNoDescriptor_IsUsageError(t *testing.T) {
	t.Parallel()

	cli := NewCLI(t)

	stderr := cli.MustFail()
	require.Contains(t, stderr, "descriptor")
}

func TestCheck_AvailableWhenUnheld(t *testing.T) {
	t.Parallel()

	cli := NewCLI(t)

	stdout := cli.MustRun("--check", "widget")
	require.Equal(t, "available", stdout)
}

func TestList_EmptyDirectory(t *testing.T) {
	t.Parallel()

	cli := NewCLI(t)

	stdout := cli.MustRun("--list")
	require.Contains(t, stdout, "DESCRIPTOR")
}

func TestExec_PropagatesExitCodes(t *testing.T) {
	t.Parallel()

	cli := NewCLI(t)

	_, _, code := cli.Run("--exec", "exec-ok", "true")
	require.Equal(t, 0, code)

	_, _, code = cli.Run("--exec", "exec-fail", "false")
	require.Equal(t, 1, code)

	_, _, code = cli.Run("--exec", "exec-missing", "definitely-not-a-real-command-xyz")
	require.Equal(t, 127, code)
}

func TestExec_SlotReleasedBetweenRuns(t *testing.T) {
	t.Parallel()

	cli := NewCLI(t)

	stdout := cli.MustRun("--exec", "mutex-desc", "echo", "holder-one")
	require.Equal(t, "holder-one", stdout)

	// The slot is released by the time ExecWithLock returns, so a second
	// exec against the same descriptor succeeds immediately too.
	stdout = cli.MustRun("--exec", "mutex-desc", "echo", "holder-two")
	require.Equal(t, "holder-two", stdout)
}

func TestDone_NoMatchingRecords(t *testing.T) {
	t.Parallel()

	cli := NewCLI(t)

	stderr := cli.MustFail("--done", "nobody-holds-this")
	require.Contains(t, stderr, "error")
}

// TestAcquireHold_ReleasesOnSignal exercises the default acquire-and-hold
// mode end to end: a held descriptor shows busy, a termination signal
// releases it, and check goes back to available.
func TestAcquireHold_ReleasesOnSignal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	env := map[string]string{}

	sigCh := make(chan os.Signal, 1)
	done := make(chan int, 1)

	var stdout, stderr strings.Builder

	go func() {
		done <- Run(nil, &stdout, &stderr, []string{"waitlock", "-d", dir, "held-desc"}, env, sigCh)
	}()

	require.Eventually(t, func() bool {
		return checkBusy(t, dir, "held-desc")
	}, 2*time.Second, 10*time.Millisecond)

	sigCh <- syscall.SIGTERM

	select {
	case code := <-done:
		require.Equal(t, 0, code)
	case <-time.After(2 * time.Second):
		t.Fatal("holder did not exit after SIGTERM")
	}

	require.Eventually(t, func() bool {
		return !checkBusy(t, dir, "held-desc")
	}, 2*time.Second, 10*time.Millisecond)
}

func checkBusy(t *testing.T, dir, descriptor string) bool {
	t.Helper()

	var stdout, stderr strings.Builder

	code := Run(nil, &stdout, &stderr, []string{"waitlock", "-d", dir, "--check", descriptor}, nil, nil)

	return code == 1 || strings.Contains(stdout.String(), "busy")
}
