package lockengine

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleRecord() Record {
	r := Record{
		Magic:      Magic,
		Version:    Version,
		PID:        1234,
		PPID:       1,
		UID:        1000,
		AcquiredAt: 1700000000,
		LockType:   TypeSemaphore,
		MaxHolders: 4,
		Slot:       2,
		Hostname:   "build-01",
		Descriptor: "nightly-build",
		Cmdline:    "waitlock -m 4 nightly-build",
	}
	r.Checksum = Compute(r)

	return r
}

func TestCodec_BinaryRoundTrip(t *testing.T) {
	t.Parallel()

	want := sampleRecord()

	got, err := DecodeBinary(EncodeBinary(want))
	if err != nil {
		t.Fatalf("DecodeBinary: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCodec_TextRoundTrip(t *testing.T) {
	t.Parallel()

	want := sampleRecord()

	got, err := DecodeText(EncodeText(want))
	if err != nil {
		t.Fatalf("DecodeText: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCodec_Validate(t *testing.T) {
	t.Parallel()

	r := sampleRecord()
	if !Validate(r) {
		t.Fatalf("Validate(sample) = false, want true")
	}

	r.PID++ // mutate a field the checksum covers
	if Validate(r) {
		t.Fatalf("Validate(mutated) = true, want false")
	}
}

func TestCodec_MutexType(t *testing.T) {
	t.Parallel()

	r := sampleRecord()
	r.LockType = TypeMutex
	r.Checksum = Compute(r)

	got, err := DecodeBinary(EncodeBinary(r))
	if err != nil {
		t.Fatalf("DecodeBinary: %v", err)
	}

	if got.LockType != TypeMutex {
		t.Fatalf("LockType = %v, want TypeMutex", got.LockType)
	}
}

func TestCodec_FlippedByteFailsMagicOrChecksum(t *testing.T) {
	t.Parallel()

	want := sampleRecord()
	data := EncodeBinary(want)

	for i := range data {
		mutated := make([]byte, len(data))
		copy(mutated, data)
		mutated[i] ^= 0xFF

		_, err := DecodeBinary(mutated)
		if err == nil {
			t.Fatalf("byte %d: DecodeBinary succeeded on a flipped byte, want error", i)
		}
	}
}

func TestCodec_DecodeBinary_BadMagicIsUnreadable(t *testing.T) {
	t.Parallel()

	data := EncodeBinary(sampleRecord())
	data[0] ^= 0xFF

	_, err := DecodeBinary(data)
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("DecodeBinary err=%v with corrupted magic, want ErrUnreadable", err)
	}
}

func TestCodec_Decode_FallsBackToText(t *testing.T) {
	t.Parallel()

	want := sampleRecord()

	got, err := Decode(EncodeText(want))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCodec_DecodeText_UnknownKeysIgnored(t *testing.T) {
	t.Parallel()

	want := sampleRecord()
	data := append(EncodeText(want), []byte("SOME_FUTURE_FIELD=xyz\n")...)

	got, err := DecodeText(data)
	if err != nil {
		t.Fatalf("DecodeText: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}
