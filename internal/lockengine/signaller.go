package lockengine

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/waitlock/waitlock/internal/lockfs"
	"github.com/waitlock/waitlock/internal/procprobe"
)

// DoneResult summarizes what Done did.
type DoneResult struct {
	Signalled int // live holders sent SIGTERM
	Reclaimed int // dead holders' records unlinked
}

// Done enumerates every slot record for descriptor and either sends
// SIGTERM to a live holder (a non-fatal release request) or unlinks a
// dead holder's stale record. Returns ErrNotFound if no records matched
// the descriptor at all.
func Done(fsys lockfs.FS, prober procprobe.Prober, dir, descriptor string) (DoneResult, error) {
	if err := ValidateDescriptor(descriptor); err != nil {
		return DoneResult{}, err
	}

	entries, err := scanDirectory(fsys, prober, dir, descriptor)
	if err != nil {
		return DoneResult{}, err
	}

	if len(entries) == 0 {
		return DoneResult{}, ErrNotFound
	}

	var result DoneResult

	for _, e := range entries {
		if e.Live {
			if sigErr := unix.Kill(int(e.PID), unix.SIGTERM); sigErr == nil {
				result.Signalled++
			}

			continue
		}

		if rmErr := fsys.Remove(e.Path); rmErr == nil {
			result.Reclaimed++
		}
	}

	if result.Signalled == 0 && result.Reclaimed == 0 {
		return result, fmt.Errorf("%w: found records but could not signal or reclaim any", ErrSystem)
	}

	return result, nil
}
