// Package procprobe answers "does PID P exist on this host?" and
// "what is its command line?", the two OS-specific facts the lock engine
// needs to tell a live holder from a stale one.
package procprobe

// Prober answers liveness and diagnostic questions about local PIDs.
type Prober interface {
	// Exists reports whether pid refers to a running process on this
	// host. pid <= 0 is always false.
	Exists(pid int32) bool

	// Cmdline best-effort retrieves pid's original argument vector,
	// rendered as a single space-separated string. Returns "unknown"
	// when the OS forbids access or the information isn't available.
	Cmdline(pid int32) string
}
