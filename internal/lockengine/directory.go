package lockengine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/waitlock/waitlock/internal/lockfs"
)

// ErrNoDirectory is returned when none of the candidate lock directories
// can be created or written to.
var ErrNoDirectory = errors.New("no usable lock directory")

// defaultCandidates is the ordered list of directories tried when the
// caller supplies no override, per spec.
func defaultCandidates() []string {
	uid := os.Getuid()

	candidates := []string{
		"/run/lock/waitlock",
		"/var/run/lock/waitlock",
		"/var/lock/waitlock",
		filepath.Join(os.TempDir(), fmt.Sprintf("waitlock-%d", uid)),
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		candidates = append(candidates, filepath.Join(home, ".waitlock"))
	}

	return candidates
}

// ResolveDirectory returns the first usable lock directory. override, when
// non-empty, is tried exclusively (an explicit directory or WAITLOCK_DIR
// value); otherwise the built-in candidate list is probed in order. The
// chosen directory is created on demand; a concurrent MkdirAll race from
// another process is not an error as long as the directory ends up
// present and writable.
//
// Resolution never caches - every call re-probes, since the set of usable
// directories can change across a process's lifetime (e.g. tmpfs
// remounted read-only).
func ResolveDirectory(fsys lockfs.FS, override string) (string, error) {
	candidates := defaultCandidates()
	if override != "" {
		candidates = []string{override}
	}

	var firstErr error

	for _, dir := range candidates {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			if firstErr == nil {
				firstErr = err
			}

			continue
		}

		if writable(fsys, dir) {
			return dir, nil
		}
	}

	if firstErr != nil {
		return "", fmt.Errorf("%w: %w", ErrNoDirectory, firstErr)
	}

	return "", ErrNoDirectory
}

// writable probes a directory by creating and removing a throwaway file,
// the same tolerant-of-races approach the lock engine uses for slot
// claims: a transient failure here just means "try the next candidate".
func writable(fsys lockfs.FS, dir string) bool {
	probe := filepath.Join(dir, fmt.Sprintf(".waitlock-probe-%d", os.Getpid()))

	f, err := fsys.OpenFile(probe, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return false
	}

	_ = f.Close()
	_ = fsys.Remove(probe)

	return true
}

// slotPath returns the lock file path for slot k of descriptor within
// dir, matching spec's "<dir>/<descriptor>.slot<k>.lock" layout.
func slotPath(dir, descriptor string, k uint32) string {
	return filepath.Join(dir, fmt.Sprintf("%s.slot%d.lock", descriptor, k))
}
