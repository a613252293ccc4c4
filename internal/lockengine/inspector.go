package lockengine

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/waitlock/waitlock/internal/lockfs"
	"github.com/waitlock/waitlock/internal/procprobe"
)

// Entry is one decoded slot record as seen by the inspector, with its
// liveness already resolved.
type Entry struct {
	Descriptor string
	PID        int32
	Slot       uint32
	MaxHolders uint32
	LockType   LockType
	UID        uint32
	AcquiredAt time.Time
	Cmdline    string
	Live       bool
	Path       string
}

// Check enumerates every slot file for descriptor, reclaiming corrupt or
// dead-holder records it encounters, and reports whether the descriptor is
// at capacity. No files are written other than the removal of records
// found corrupt or stale. Returns ErrBusy when the live count equals the
// max_holders declared by any live record.
func Check(fsys lockfs.FS, prober procprobe.Prober, dir, descriptor string) error {
	if err := ValidateDescriptor(descriptor); err != nil {
		return err
	}

	entries, err := scanDirectory(fsys, prober, dir, descriptor)
	if err != nil {
		return err
	}

	var (
		liveCount  int
		maxHolders uint32
	)

	for _, e := range entries {
		if !e.Live {
			_ = fsys.Remove(e.Path)
			continue
		}

		liveCount++

		if e.MaxHolders > maxHolders {
			maxHolders = e.MaxHolders
		}
	}

	if maxHolders > 0 && liveCount >= int(maxHolders) {
		return ErrBusy
	}

	return nil
}

// ListOptions filters List's output. All and StaleOnly mirror the CLI's
// -a/--all and --stale-only flags directly.
type ListOptions struct {
	// Descriptor, when non-empty, restricts enumeration to one
	// descriptor. Empty means "every record in the directory".
	Descriptor string

	// All, when true, includes stale entries alongside live ones.
	// Without it, stale entries are hidden by default.
	All bool

	// StaleOnly, when true, excludes live entries from the result.
	StaleOnly bool
}

// List enumerates every lock record in dir (optionally restricted to one
// descriptor), decoding and resolving liveness for each. Corrupt records
// are reclaimed as a side effect, same as Check.
//
// By default (All=false, StaleOnly=false) only live entries are shown -
// a stale record is reclaimable cruft, not a currently held lock, so it
// is hidden unless the caller asks for it. StaleOnly hides live entries;
// All additionally shows stale ones. The two combine as the original
// lock listing does it: an entry is omitted when StaleOnly demands a
// stale entry but this one is live, or when All is unset and this one is
// stale.
func List(fsys lockfs.FS, prober procprobe.Prober, dir string, opts ListOptions) ([]Entry, error) {
	entries, err := scanDirectory(fsys, prober, dir, opts.Descriptor)
	if err != nil {
		return nil, err
	}

	filtered := entries[:0]

	for _, e := range entries {
		if opts.StaleOnly && e.Live {
			continue
		}

		if !opts.All && !e.Live {
			continue
		}

		filtered = append(filtered, e)
	}

	return filtered, nil
}

// scanDirectory reads every lock file name of the form
// "<descriptor>.slot<k>.lock" in dir (optionally filtered to one
// descriptor), decodes each, reclaims anything corrupt, and resolves
// liveness for the rest.
func scanDirectory(fsys lockfs.FS, prober procprobe.Prober, dir, descriptorFilter string) ([]Entry, error) {
	dirEntries, err := fsys.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: reading lock directory: %w", ErrSystem, err)
	}

	var out []Entry

	for _, de := range dirEntries {
		name := de.Name()

		descriptor, ok := lockFileDescriptor(name)
		if !ok {
			continue
		}

		if descriptorFilter != "" && descriptor != descriptorFilter {
			continue
		}

		path := dir + string(os.PathSeparator) + name

		data, err := fsys.ReadFile(path)
		if err != nil {
			continue // removed between ReadDir and ReadFile; not an error
		}

		rec, decErr := Decode(data)
		if decErr != nil {
			_ = fsys.Remove(path)
			continue
		}

		out = append(out, Entry{
			Descriptor: rec.Descriptor,
			PID:        rec.PID,
			Slot:       rec.Slot,
			MaxHolders: rec.MaxHolders,
			LockType:   rec.LockType,
			UID:        rec.UID,
			AcquiredAt: time.Unix(rec.AcquiredAt, 0),
			Cmdline:    rec.Cmdline,
			Live:       prober.Exists(rec.PID),
			Path:       path,
		})
	}

	return out, nil
}

// lockFileDescriptor extracts the descriptor prefix from a slot file name
// of the form "<descriptor>.slot<k>.lock": the part of the name before
// the first ".slot", provided the name ends in ".lock" and that prefix is
// non-empty. Non-matching names (other files the directory may contain) return
// ok=false.
func lockFileDescriptor(name string) (string, bool) {
	if !strings.HasSuffix(name, ".lock") {
		return "", false
	}

	idx := strings.Index(name, ".slot")
	if idx <= 0 {
		return "", false
	}

	return name[:idx], true
}
