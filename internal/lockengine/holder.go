package lockengine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/waitlock/waitlock/internal/lockfs"
)

// Holder is the per-process state for a currently held slot: which path
// and slot number it owns, and the open file descriptor whose advisory
// lock backs the ownership. A process holds at most one Holder at a time.
type Holder struct {
	mu         sync.Mutex
	fsys       lockfs.FS
	descriptor string
	slot       uint32
	pid        int32
	path       string
	lock       *lockfs.Lock
	acquiredAt time.Time
	logger     *slog.Logger
}

// Descriptor returns the locked resource's name.
func (h *Holder) Descriptor() string {
	return h.descriptor
}

// PID returns the holder process's own PID, as recorded in its slot
// file.
func (h *Holder) PID() int32 {
	return h.pid
}

// Slot returns the slot index this holder occupies.
func (h *Holder) Slot() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.slot
}

// Path returns the slot file path this holder owns.
func (h *Holder) Path() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.path
}

// Release closes the owned file descriptor (releasing its advisory lock)
// and unlinks the slot file. Both steps are idempotent: calling Release
// twice performs no file operations on the second call and never errors
// on an already-released holder.
func (h *Holder) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.lock == nil {
		return nil
	}

	closeErr := h.lock.Close()
	path := h.path
	held := time.Since(h.acquiredAt)

	h.lock = nil
	h.path = ""

	removeErr := h.fsys.Remove(path)
	if removeErr != nil && os.IsNotExist(removeErr) {
		removeErr = nil
	}

	if h.logger != nil {
		h.logger.Info("release",
			"descriptor", h.descriptor,
			"slot", h.slot,
			"held", held.String(),
		)
	}

	if closeErr != nil || removeErr != nil {
		return fmt.Errorf("release %s: %w", h.descriptor, errors.Join(closeErr, removeErr))
	}

	return nil
}
