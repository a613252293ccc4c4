//go:build linux

package lockfs

import (
	"os"

	"golang.org/x/sys/unix"
)

// Claim uses renameat2(2) with RENAME_NOREPLACE, which turns the rename
// into a genuine compare-and-swap: the kernel fails the call with EEXIST
// if newname already exists instead of silently replacing it.
func (r *Real) Claim(oldname, newname string) error {
	err := unix.Renameat2(unix.AT_FDCWD, oldname, unix.AT_FDCWD, newname, unix.RENAME_NOREPLACE)
	if err != nil {
		return &os.LinkError{Op: "claim", Old: oldname, New: newname, Err: err}
	}

	return nil
}
