package lockfs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/waitlock/waitlock/internal/lockfs"
)

func TestAtomicWriter_Write_CreatesFileWithContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "record.txt")

	writer := lockfs.NewAtomicWriter(lockfs.NewReal())

	err := writer.WriteWithDefaults(path, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(got) != "hello" {
		t.Fatalf("content=%q, want %q", string(got), "hello")
	}
}

func TestAtomicWriter_Write_LeavesNoTempFileBehind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "record.txt")

	writer := lockfs.NewAtomicWriter(lockfs.NewReal())

	if err := writer.WriteWithDefaults(path, strings.NewReader("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	if len(entries) != 1 || entries[0].Name() != "record.txt" {
		t.Fatalf("dir entries=%v, want exactly [record.txt]", entries)
	}
}

func TestAtomicWriter_Write_OverwritesExistingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "record.txt")

	writer := lockfs.NewAtomicWriter(lockfs.NewReal())

	if err := writer.WriteWithDefaults(path, strings.NewReader("first")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := writer.WriteWithDefaults(path, strings.NewReader("second")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(got) != "second" {
		t.Fatalf("content=%q, want %q", string(got), "second")
	}
}
