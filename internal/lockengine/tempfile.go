package lockengine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/waitlock/waitlock/internal/lockfs"
)

var tempFileSeq atomic.Uint64

const maxTempFileAttempts = 10000

// writeTempRecord writes r into a uniquely named temp file in dir using
// the primary binary encoding, falling back to the textual encoding on a
// short write. Returns the temp file's path, ready to be handed to
// [lockfs.FS.Claim].
func writeTempRecord(fsys lockfs.FS, dir string, r Record) (string, error) {
	path, err := createAndWrite(fsys, dir, EncodeBinary(r))
	if err == nil {
		return path, nil
	}

	fallbackPath, fallbackErr := createAndWrite(fsys, dir, EncodeText(r))
	if fallbackErr != nil {
		return "", fmt.Errorf("%w: primary write failed (%v), fallback write failed: %w", ErrSystem, err, fallbackErr)
	}

	return fallbackPath, nil
}

func createAndWrite(fsys lockfs.FS, dir string, data []byte) (string, error) {
	for range maxTempFileAttempts {
		seq := tempFileSeq.Add(1)
		path := filepath.Join(dir, fmt.Sprintf(".waitlock.tmp-%d-%d", os.Getpid(), seq))

		f, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			if os.IsExist(err) {
				continue
			}

			return "", err
		}

		n, writeErr := f.Write(data)
		closeErr := f.Close()

		if writeErr == nil && n == len(data) && closeErr == nil {
			return path, nil
		}

		_ = fsys.Remove(path)

		if writeErr != nil {
			return "", writeErr
		}

		if closeErr != nil {
			return "", closeErr
		}

		return "", fmt.Errorf("short write: wrote %d of %d bytes", n, len(data))
	}

	return "", fmt.Errorf("exhausted temp file attempts in %q", dir)
}
