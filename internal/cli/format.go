package cli

import (
	"fmt"
	"os/user"
	"strconv"

	"github.com/waitlock/waitlock/internal/lockengine"
)

// ErrUnknownFormat is returned for a --format value that isn't
// human/csv/null.
type ErrUnknownFormat struct{ Format string }

func (e *ErrUnknownFormat) Error() string {
	return fmt.Sprintf("unknown format %q (want human, csv, or null)", e.Format)
}

// writeList renders entries in one of three output formats: human,
// csv, or null-delimited.
func writeList(o *IO, format string, entries []lockengine.Entry) error {
	switch format {
	case "", "human":
		writeListHuman(o, entries)
	case "csv":
		writeListCSV(o, entries)
	case "null":
		writeListNull(o, entries)
	default:
		return &ErrUnknownFormat{Format: format}
	}

	return nil
}

func writeListHuman(o *IO, entries []lockengine.Entry) {
	o.Printf("%-20s %-8s %-5s %-10s %-20s %s\n", "DESCRIPTOR", "PID", "SLOT", "USER", "ACQUIRED", "COMMAND")

	for _, e := range entries {
		prefix := ""
		if !e.Live {
			prefix = "[STALE] "
		}

		slot := strconv.FormatUint(uint64(e.Slot), 10)
		if e.LockType == lockengine.TypeMutex {
			slot = "-"
		}

		o.Printf("%s%-20s %-8d %-5s %-10s %-20s %s\n",
			prefix, e.Descriptor, e.PID, slot, userName(e.UID), e.AcquiredAt.Format("2006-01-02T15:04:05"), e.Cmdline)
	}
}

func writeListCSV(o *IO, entries []lockengine.Entry) {
	o.Println("descriptor,pid,slot,user,acquired,status,command")

	for _, e := range entries {
		status := "active"
		if !e.Live {
			status = "stale"
		}

		slot := strconv.FormatUint(uint64(e.Slot), 10)
		if e.LockType == lockengine.TypeMutex {
			slot = "-"
		}

		o.Printf("%s,%d,%s,%s,%d,%s,%s\n",
			e.Descriptor, e.PID, slot, userName(e.UID), e.AcquiredAt.Unix(), status, e.Cmdline)
	}
}

func writeListNull(o *IO, entries []lockengine.Entry) {
	const nul = "\x00"

	for _, e := range entries {
		status := "active"
		if !e.Live {
			status = "stale"
		}

		slot := strconv.FormatUint(uint64(e.Slot), 10)
		if e.LockType == lockengine.TypeMutex {
			slot = "-"
		}

		fields := []string{
			e.Descriptor,
			strconv.FormatInt(int64(e.PID), 10),
			slot,
			userName(e.UID),
			strconv.FormatInt(e.AcquiredAt.Unix(), 10),
			status,
			e.Cmdline,
		}

		for _, f := range fields {
			o.Printf("%s%s", f, nul)
		}

		o.Printf("%s", nul)
	}
}

// userName resolves uid to a username, falling back to the numeric uid
// when the lookup fails (e.g. the user was deleted since the record was
// written).
func userName(uid uint32) string {
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return strconv.FormatUint(uint64(uid), 10)
	}

	return u.Username
}
