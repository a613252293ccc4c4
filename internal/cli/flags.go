package cli

import (
	"runtime"

	flag "github.com/spf13/pflag"
)

// modeFlags holds the mutually-exclusive mode switches and shared
// options for the single waitlock invocation surface.
type modeFlags struct {
	check bool
	list  bool
	done  bool
	exec  bool

	allowMultiple int
	onePerCPU     bool
	excludeCPUs   int

	timeout    float64
	timeoutSet bool

	lockDir string

	quiet   bool
	verbose bool

	syslog        bool
	syslogFacil   string
	format        string
	all           bool
	staleOnly     bool
	test          bool
	help          bool
	version       bool
}

// newFlagSet builds the pflag.FlagSet for waitlock's single-command
// surface: one flat, mode-switch shape instead of a subcommand tree.
func newFlagSet(mf *modeFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("waitlock", flag.ContinueOnError)
	fs.SetInterspersed(true)

	fs.BoolVar(&mf.check, "check", false, "Report whether the descriptor has a free slot, without acquiring")
	fs.BoolVar(&mf.list, "list", false, "Enumerate active and stale lock records")
	fs.BoolVar(&mf.done, "done", false, "Signal the current holder(s) of a descriptor to release")
	fs.BoolVar(&mf.exec, "exec", false, "Run a command while holding the lock, propagating its exit status")

	fs.IntVarP(&mf.allowMultiple, "allowMultiple", "m", 1, "Declare the descriptor a semaphore with N concurrent holders")
	fs.BoolVarP(&mf.onePerCPU, "onePerCPU", "c", false, "Set capacity to one holder per CPU")
	fs.IntVarP(&mf.excludeCPUs, "excludeCPUs", "x", 0, "Subtract N from the CPU count used by --onePerCPU")

	fs.Float64VarP(&mf.timeout, "timeout", "t", -1, "Seconds to wait for a slot; negative means unbounded, zero means attempt once")
	fs.StringVarP(&mf.lockDir, "lock-dir", "d", "", "Lock directory override")

	fs.BoolVarP(&mf.quiet, "quiet", "q", false, "Suppress info-level log lines; error messages are still printed")
	fs.BoolVarP(&mf.verbose, "verbose", "v", false, "Emit debug diagnostics")

	fs.BoolVar(&mf.syslog, "syslog", false, "Also emit lifecycle events to the local syslog socket")
	fs.StringVar(&mf.syslogFacil, "syslog-facility", "daemon", "Syslog facility to use with --syslog")

	fs.StringVarP(&mf.format, "format", "f", "human", "list output format: human, csv, or null")
	fs.BoolVarP(&mf.all, "all", "a", false, "list: also include stale entries (hidden by default)")
	fs.BoolVar(&mf.staleOnly, "stale-only", false, "list: include only stale entries")

	fs.BoolVar(&mf.test, "test", false, "Resolve the lock directory and validate the descriptor, then exit")

	fs.BoolVarP(&mf.help, "help", "h", false, "Show help")
	fs.BoolVarP(&mf.version, "version", "V", false, "Show version")

	return fs
}

// resolveCapacity applies --onePerCPU/--excludeCPUs over --allowMultiple:
// -c sets capacity from the CPU count, -x trims it. Capacity never drops
// below 1.
func resolveCapacity(mf *modeFlags) uint32 {
	if !mf.onePerCPU {
		if mf.allowMultiple < 1 {
			return 1
		}

		return uint32(mf.allowMultiple)
	}

	n := runtime.NumCPU() - mf.excludeCPUs
	if n < 1 {
		n = 1
	}

	return uint32(n)
}
