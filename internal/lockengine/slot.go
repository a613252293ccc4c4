package lockengine

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/waitlock/waitlock/internal/lockfs"
	"github.com/waitlock/waitlock/internal/procprobe"
)

// Backoff parameters for the acquire retry loop.
const (
	initialWait  = 10 * time.Millisecond
	maxWait      = 250 * time.Millisecond
	timeoutSlack = 0.10 // acquire may overshoot the caller's timeout by up to 10%
)

// AcquireInput describes one acquire attempt.
type AcquireInput struct {
	Dir           string        // resolved lock directory
	Descriptor    string        // validated by Acquire via ValidateDescriptor
	MaxHolders    uint32        // N; 1 means mutex
	Timeout       time.Duration // <0 means unbounded; 0 means attempt-once
	PreferredSlot int32         // -1 means no preference
	Logger        *slog.Logger  // optional; nil is fine
}

// Acquire runs the slot-claiming algorithm: a single pass over all N
// slots per retry iteration, reclaiming stale or corrupt
// records it encounters, attempting an atomic claim on whichever slot
// looks free, and backing off with exponential-plus-jitter delay between
// passes until either a slot is claimed, the timeout elapses, or cancel
// fires.
//
// cancel, when non-nil, is polled at the top of every retry pass; when it
// fires (is closed, or has a pending value) Acquire returns ErrCancelled.
func Acquire(fsys lockfs.FS, prober procprobe.Prober, cancel <-chan struct{}, in AcquireInput) (*Holder, error) {
	if err := ValidateDescriptor(in.Descriptor); err != nil {
		return nil, err
	}

	if in.MaxHolders == 0 {
		return nil, ErrInvalidCapacity
	}

	if in.PreferredSlot >= 0 && uint32(in.PreferredSlot) >= in.MaxHolders {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrPreferredSlotOutOfRange, in.PreferredSlot, in.MaxHolders)
	}

	base := buildRecord(in.Descriptor, in.MaxHolders)

	start := time.Now()
	deadline, hasDeadline := acquireDeadline(start, in.Timeout)
	wait := initialWait

	for pass := 0; ; pass++ {
		if hasDeadline && pass > 0 && !time.Now().Before(deadline) {
			return nil, ErrTimeout
		}

		if isCancelled(cancel) {
			return nil, ErrCancelled
		}

		holder, err := attemptPass(fsys, prober, in, base)
		if err != nil {
			return nil, err
		}

		if holder != nil {
			return holder, nil
		}

		remaining := time.Duration(-1)
		if hasDeadline {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				return nil, ErrTimeout
			}
		}

		sleepFor := nextSleep(&wait, remaining)
		sleep(sleepFor)
	}
}

func buildRecord(descriptor string, maxHolders uint32) Record {
	lockType := TypeSemaphore
	if maxHolders == 1 {
		lockType = TypeMutex
	}

	hostname, _ := os.Hostname()

	return Record{
		Magic:      Magic,
		Version:    Version,
		PID:        int32(os.Getpid()),
		PPID:       int32(os.Getppid()),
		UID:        uint32(os.Getuid()),
		LockType:   lockType,
		MaxHolders: maxHolders,
		Hostname:   hostname,
		Descriptor: descriptor,
		Cmdline:    strings.Join(os.Args, " "),
	}
}

// attemptPass runs one single rotation over all N slots. A non-nil,
// non-error return means a slot was claimed. A nil, nil return means the
// pass found nothing claimable and the caller should back off and retry.
func attemptPass(fsys lockfs.FS, prober procprobe.Prober, in AcquireInput, base Record) (*Holder, error) {
	start := uint32(0)
	if in.PreferredSlot >= 0 {
		start = uint32(in.PreferredSlot)
	}

	for i := uint32(0); i < in.MaxHolders; i++ {
		k := (start + i) % in.MaxHolders

		path := slotPath(in.Dir, in.Descriptor, k)

		if err := reclaimIfStale(fsys, prober, path, in.MaxHolders); err != nil {
			if errors.Is(err, errSlotLive) {
				continue
			}

			return nil, err
		}

		rec := base
		rec.Slot = k
		rec.AcquiredAt = time.Now().Unix()
		rec.Checksum = Compute(rec)

		tmpPath, err := writeTempRecord(fsys, in.Dir, rec)
		if err != nil {
			return nil, err
		}

		claimErr := fsys.Claim(tmpPath, path)
		if claimErr == nil {
			return openHolder(fsys, in, k, path)
		}

		_ = fsys.Remove(tmpPath)

		if os.IsExist(claimErr) {
			// rename lost the race: someone else claimed this slot in
			// this iteration. Try the next one.
			continue
		}

		return nil, fmt.Errorf("%w: claiming slot: %w", ErrSystem, claimErr)
	}

	return nil, nil
}

// errSlotLive is an internal sentinel meaning reclaimIfStale found a live
// holder; the caller should move on to the next slot without error.
var errSlotLive = errors.New("slot live")

// reclaimIfStale reads the record at path, if any. A missing file is not
// an error (the slot is simply free). A present file that decodes and
// whose PID is alive returns errSlotLive. A present file that is corrupt,
// or whose PID is dead, is unlinked (reclaimed) and reclaimIfStale
// returns nil, leaving the slot nominally free for this pass.
func reclaimIfStale(fsys lockfs.FS, prober procprobe.Prober, path string, maxHolders uint32) error {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("%w: reading %s: %w", ErrSystem, path, err)
	}

	existing, decErr := Decode(data)
	if decErr != nil {
		// Corrupt or unreadable: reclaim. Ignore the remove error - if
		// someone else already reclaimed it, that's fine too.
		_ = fsys.Remove(path)
		return nil
	}

	if prober.Exists(existing.PID) {
		if existing.MaxHolders != maxHolders {
			return ErrCapacityMismatch
		}

		return errSlotLive
	}

	_ = fsys.Remove(path)

	return nil
}

func openHolder(fsys lockfs.FS, in AcquireInput, slot uint32, path string) (*Holder, error) {
	locker := lockfs.NewLocker(fsys)

	lock, err := locker.Lock(path)
	if err != nil {
		return nil, fmt.Errorf("%w: locking claimed slot: %w", ErrSystem, err)
	}

	return &Holder{
		fsys:       fsys,
		descriptor: in.Descriptor,
		slot:       slot,
		pid:        int32(os.Getpid()),
		path:       path,
		lock:       lock,
		acquiredAt: time.Now(),
		logger:     in.Logger,
	}, nil
}

func acquireDeadline(start time.Time, timeout time.Duration) (time.Time, bool) {
	if timeout < 0 {
		return time.Time{}, false
	}

	return start.Add(timeout), true
}

// nextSleep advances wait (exponential backoff with jitter, capped at
// maxWait) and returns how long to actually sleep this pass, clamped to
// the remaining timeout budget so the overall elapsed time never
// overshoots by more than timeoutSlack. remaining < 0 means unbounded.
func nextSleep(wait *time.Duration, remaining time.Duration) time.Duration {
	sleepFor := *wait

	if remaining >= 0 {
		capped := time.Duration(float64(remaining) * 0.9)
		if sleepFor > capped {
			sleepFor = capped
		}
	}

	next := *wait * 2
	if next > maxWait {
		next = maxWait
	}

	jitter := time.Duration(rand.Int63n(int64(next/4 + 1))) //nolint:gosec // timing jitter, not security
	*wait = next + jitter

	if sleepFor < 0 {
		sleepFor = 0
	}

	return sleepFor
}

func isCancelled(cancel <-chan struct{}) bool {
	if cancel == nil {
		return false
	}

	select {
	case <-cancel:
		return true
	default:
		return false
	}
}

func sleep(d time.Duration) {
	if d <= 0 {
		return
	}

	time.Sleep(d)
}
