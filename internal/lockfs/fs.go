// Package lockfs provides the filesystem abstraction the lock engine is
// built on: an [FS] interface for the handful of operations the slot
// engine, directory resolver, and inspector need, a [Real] implementation
// backed by the [os] package, an [AtomicWriter] for whole-file atomic
// replace-on-rename writes, and a [Locker] for flock-based
// advisory locking with inode verification.
//
// Example usage:
//
//	fsys := lockfs.NewReal()
//	f, err := fsys.Open("state.lock")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
package lockfs

import (
	"io"
	"os"
)

// File represents an open file descriptor.
//
// This interface is satisfied by [os.File] and can be used with all
// standard library functions that accept [io.Reader], [io.Writer],
// [io.Seeker], or [io.Closer].
type File interface {
	// Embedded interfaces from [io] package.
	// These provide Read, Write, Close, and Seek methods.
	io.ReadWriteCloser
	io.Seeker

	// Fd returns the file descriptor. See [os.File.Fd].
	// Used for low-level operations like [syscall.Flock].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to disk. See [os.File.Sync].
	Sync() error

	// Chmod changes the mode of the file. See [os.File.Chmod].
	Chmod(mode os.FileMode) error
}

// FS defines filesystem operations for reading, writing, and managing
// files, abstracted so the lock engine can be tested against something
// other than the real filesystem.
type FS interface {
	// --- File Operations ---

	// Open opens a file for reading. See [os.Open].
	Open(path string) (File, error)

	// Create creates or truncates a file for writing. See [os.Create].
	Create(path string) (File, error)

	// OpenFile opens a file with specified flags and permissions. See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// --- Convenience Methods ---

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// --- Directory Operations ---

	// ReadDir reads a directory and returns its entries. See [os.ReadDir].
	ReadDir(path string) ([]os.DirEntry, error)

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// --- Metadata ---

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// --- Mutations ---

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// RemoveAll deletes a path and any children. See [os.RemoveAll].
	RemoveAll(path string) error

	// Rename moves/renames a file or directory. See [os.Rename].
	// Atomic on the same filesystem, but on POSIX it silently replaces an
	// existing destination - it is not a compare-and-swap. Callers that
	// need claim-or-fail semantics use [FS.Claim], not Rename.
	Rename(oldpath, newpath string) error

	// Link creates newname as a hard link to oldname. See [os.Link].
	// Fails with a "file exists" error if newname is already present,
	// which is what makes it usable as an atomic claim primitive.
	Link(oldname, newname string) error

	// Claim atomically moves oldname to newname, failing with a
	// "file exists" error (checkable with [os.IsExist]) if newname is
	// already present, instead of silently replacing it the way
	// [FS.Rename] does. This is the primitive the slot engine uses to
	// turn "rename a temp file into a slot path" into a true
	// compare-and-swap. See [Real.Claim] for the platform-specific
	// implementation.
	Claim(oldname, newname string) error
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
