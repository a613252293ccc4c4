//go:build unix

package procprobe

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Unix is the Prober implementation for Unix-like hosts.
type Unix struct{}

// New returns the platform Prober. On Unix builds this is [Unix].
func New() Prober {
	return Unix{}
}

// Exists sends signal 0 to pid: present iff the call succeeds or fails
// with EPERM (process exists but isn't ours); absent iff it fails with
// ESRCH.
func (Unix) Exists(pid int32) bool {
	if pid <= 0 {
		return false
	}

	err := unix.Kill(int(pid), 0)
	if err == nil {
		return true
	}

	return err == unix.EPERM
}

// Cmdline reads /proc/<pid>/cmdline on Linux (NUL-separated argv joined
// with spaces). Returns "unknown" when unreadable, including on non-Linux
// Unix where /proc is not guaranteed to exist.
func (Unix) Cmdline(pid int32) string {
	if pid <= 0 {
		return unknownCmdline
	}

	data, err := os.ReadFile(procCmdlinePath(pid))
	if err != nil || len(data) == 0 {
		return unknownCmdline
	}

	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")

	joined := strings.TrimSpace(strings.Join(parts, " "))
	if joined == "" {
		return unknownCmdline
	}

	return joined
}

const unknownCmdline = "unknown"

func procCmdlinePath(pid int32) string {
	return "/proc/" + strconv.Itoa(int(pid)) + "/cmdline"
}
