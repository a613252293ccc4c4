package lockengine

import (
	"errors"
	"os"
	"os/exec"
	"testing"

	"github.com/waitlock/waitlock/internal/lockengine/lockenginetest"
	"github.com/waitlock/waitlock/internal/lockfs"
)

func TestDone_ReturnsErrNotFoundWhenNoRecords(t *testing.T) {
	t.Parallel()

	fsys := lockfs.NewReal()
	dir := t.TempDir()
	prober := lockenginetest.NewFakeProber()

	_, err := Done(fsys, prober, dir, "nothing-here")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestDone_ReclaimsDeadHolderRecord(t *testing.T) {
	t.Parallel()

	fsys := lockfs.NewReal()
	dir := t.TempDir()
	prober := lockenginetest.NewFakeProber()

	h, err := Acquire(fsys, prober, nil, AcquireInput{Dir: dir, Descriptor: "done-dead", MaxHolders: 1, PreferredSlot: -1, Timeout: 0})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	prober.Kill(h.PID())

	result, err := Done(fsys, prober, dir, "done-dead")
	if err != nil {
		t.Fatalf("Done: %v", err)
	}

	if result.Reclaimed != 1 || result.Signalled != 0 {
		t.Fatalf("result=%+v, want Reclaimed=1, Signalled=0", result)
	}

	entries, err := List(fsys, prober, dir, ListOptions{Descriptor: "done-dead"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(entries) != 0 {
		t.Fatalf("len(entries) = %d, want 0 after reclaim", len(entries))
	}
}

func TestDone_SignalsLiveHolder(t *testing.T) {
	t.Parallel()

	// Spawn a real short-lived child so we have a genuine, currently
	// live PID to target with SIGTERM via the real process prober
	// path exercised through FakeProber.Exists reporting it alive.
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot spawn helper process: %v", err)
	}

	defer func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	}()

	fsys := lockfs.NewReal()
	dir := t.TempDir()
	prober := lockenginetest.NewFakeProber()

	in := AcquireInput{Dir: dir, Descriptor: "done-live", MaxHolders: 1, PreferredSlot: -1, Timeout: 0}

	h, err := Acquire(fsys, prober, nil, in)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Overwrite the record's PID field so Done's SIGTERM targets our
	// disposable child, not this test process.
	rewriteRecordPID(t, fsys, h.Path(), int32(cmd.Process.Pid))

	result, err := Done(fsys, prober, dir, "done-live")
	if err != nil {
		t.Fatalf("Done: %v", err)
	}

	if result.Signalled != 1 {
		t.Fatalf("result=%+v, want Signalled=1", result)
	}

	waitErr := cmd.Wait()
	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		t.Fatalf("child process wait error=%v, want *exec.ExitError from SIGTERM", waitErr)
	}
}

func rewriteRecordPID(t *testing.T, fsys lockfs.FS, path string, pid int32) {
	t.Helper()

	data, err := fsys.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	rec, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	rec.PID = pid
	rec.Checksum = Compute(rec)

	if err := os.WriteFile(path, EncodeBinary(rec), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}
