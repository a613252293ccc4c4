// Package cli implements waitlock's dispatcher: a single flat flag
// surface that routes to exactly one lockengine operation per
// invocation, a flag.FlagSet plus a goroutine/signal-select shutdown
// path instead of a subcommand tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/waitlock/waitlock/internal/config"
	"github.com/waitlock/waitlock/internal/diag"
	"github.com/waitlock/waitlock/internal/lockengine"
	"github.com/waitlock/waitlock/internal/lockfs"
	"github.com/waitlock/waitlock/internal/procprobe"

	flag "github.com/spf13/pflag"
)

// Version is the waitlock release string, set here rather than via
// -ldflags because this is a single-binary tool with no separate release
// pipeline.
const Version = "1.0.0"

const gracePeriod = 5 * time.Second

// Run is the process entry point used by cmd/waitlock/main.go and by
// tests. sigCh may be nil (tests that don't exercise signal behavior).
func Run(stdin io.Reader, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	var mf modeFlags

	fs := newFlagSet(&mf)
	fs.SetOutput(io.Discard)

	cmdArgs := args
	if len(cmdArgs) > 0 {
		cmdArgs = cmdArgs[1:] // drop argv[0]
	}

	if err := fs.Parse(cmdArgs); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printHelp(out)
			return 0
		}

		fmt.Fprintln(errOut, "error:", err)
		printUsage(errOut)

		return lockengine.KindUsage.ExitCode()
	}

	mf.timeoutSet = fs.Changed("timeout")

	if mf.help {
		printHelp(out)
		return 0
	}

	if mf.version {
		fmt.Fprintln(out, "waitlock", Version)
		return 0
	}

	cfg, err := config.Load(config.LoadInput{Env: env})
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return lockengine.KindUsage.ExitCode()
	}

	cmdIO := NewIO(out, errOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 1)

	go func() {
		done <- dispatch(ctx, cmdIO, stdin, &mf, fs.Args(), cfg, env)
	}()

	select {
	case code := <-done:
		return code
	case sig := <-sigCh:
		fmt.Fprintln(errOut, "received", sig, "- releasing and shutting down")
		cancel()

		return awaitShutdown(done, sigCh, sig, errOut)
	}
}

// awaitShutdown waits for the in-flight operation to unwind after a
// cancellation request, escalating to an immediate forced exit if it
// doesn't finish within gracePeriod or a second signal arrives. A forced
// exit returns 128 plus the signal number (the first signal on a grace
// timeout, the second one otherwise); no signal is re-raised.
func awaitShutdown(done chan int, sigCh <-chan os.Signal, first os.Signal, errOut io.Writer) int {
	select {
	case code := <-done:
		return code
	case <-time.After(gracePeriod):
		fmt.Fprintln(errOut, "graceful shutdown timed out, forcing exit")
		return forcedExitCode(first)
	case sig := <-sigCh:
		fmt.Fprintln(errOut, "second signal received, forcing exit")
		return forcedExitCode(sig)
	}
}

func forcedExitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}

	return lockengine.KindCancelled.ExitCode()
}

// dispatch resolves the lock directory and routes to exactly one
// lockengine operation based on which mutually exclusive mode flag
// was set.
func dispatch(ctx context.Context, o *IO, stdin io.Reader, mf *modeFlags, args []string, cfg config.Config, env map[string]string) int {
	if err := validateModes(mf); err != nil {
		o.ErrPrintln("error:", err)
		return lockengine.KindUsage.ExitCode()
	}

	fsys := lockfs.NewReal()
	prober := procprobe.New()

	dirOverride := mf.lockDir
	if dirOverride == "" {
		dirOverride = cfg.Dir
	}

	dir, err := lockengine.ResolveDirectory(fsys, dirOverride)
	if err != nil {
		o.ErrPrintln("error:", err)
		return lockengine.KindOf(err).ExitCode()
	}

	logger := diag.New(os.Stderr, diag.Options{
		Quiet:    mf.quiet,
		Verbose:  mf.verbose || cfg.Debug,
		Syslog:   mf.syslog,
		Facility: mf.syslogFacil,
	})

	if mf.test {
		o.Printf("lock directory: %s\n", dir)
		return 0
	}

	switch {
	case mf.check:
		return runCheck(o, fsys, prober, dir, stdin, args)
	case mf.list:
		return runList(o, fsys, prober, dir, mf, args)
	case mf.done:
		return runDone(o, fsys, prober, dir, stdin, args)
	case mf.exec:
		return runExec(ctx, o, fsys, prober, dir, stdin, mf, cfg, env, args, logger)
	default:
		return runAcquireHold(ctx, o, fsys, prober, dir, stdin, mf, cfg, env, args, logger)
	}
}

func validateModes(mf *modeFlags) error {
	count := 0

	for _, set := range []bool{mf.check, mf.list, mf.done, mf.exec} {
		if set {
			count++
		}
	}

	if count > 1 {
		return errors.New("--check, --list, --done, and --exec are mutually exclusive")
	}

	return nil
}

func runCheck(o *IO, fsys lockfs.FS, prober procprobe.Prober, dir string, stdin io.Reader, args []string) int {
	descriptor, _, err := resolveDescriptor(stdin, args)
	if err != nil {
		o.ErrPrintln("error:", err)
		return lockengine.KindUsage.ExitCode()
	}

	err = lockengine.Check(fsys, prober, dir, descriptor)
	if err == nil {
		o.Println("available")
		return 0
	}

	if errors.Is(err, lockengine.ErrBusy) {
		o.Println("busy")
	} else {
		o.ErrPrintln("error:", err)
	}

	return lockengine.KindOf(err).ExitCode()
}

func runList(o *IO, fsys lockfs.FS, prober procprobe.Prober, dir string, mf *modeFlags, args []string) int {
	descriptorFilter := ""
	if len(args) > 0 {
		descriptorFilter = args[0]
	}

	entries, err := lockengine.List(fsys, prober, dir, lockengine.ListOptions{
		Descriptor: descriptorFilter,
		All:        mf.all,
		StaleOnly:  mf.staleOnly,
	})
	if err != nil {
		o.ErrPrintln("error:", err)
		return lockengine.KindOf(err).ExitCode()
	}

	if err := writeList(o, mf.format, entries); err != nil {
		o.ErrPrintln("error:", err)
		return lockengine.KindUsage.ExitCode()
	}

	return 0
}

func runDone(o *IO, fsys lockfs.FS, prober procprobe.Prober, dir string, stdin io.Reader, args []string) int {
	descriptor, _, err := resolveDescriptor(stdin, args)
	if err != nil {
		o.ErrPrintln("error:", err)
		return lockengine.KindUsage.ExitCode()
	}

	result, err := lockengine.Done(fsys, prober, dir, descriptor)
	if err != nil {
		o.ErrPrintln("error:", err)
		return lockengine.KindOf(err).ExitCode()
	}

	o.Printf("signalled=%d reclaimed=%d\n", result.Signalled, result.Reclaimed)

	return 0
}

func runAcquireHold(ctx context.Context, o *IO, fsys lockfs.FS, prober procprobe.Prober, dir string, stdin io.Reader, mf *modeFlags, cfg config.Config, env map[string]string, args []string, logger *slog.Logger) int {
	descriptor, _, err := resolveDescriptor(stdin, args)
	if err != nil {
		o.ErrPrintln("error:", err)
		return lockengine.KindUsage.ExitCode()
	}

	in := buildAcquireInput(dir, descriptor, mf, cfg, env, logger)

	holder, err := lockengine.Acquire(fsys, prober, ctx.Done(), in)
	if err != nil {
		o.ErrPrintln("error:", err)
		return lockengine.KindOf(err).ExitCode()
	}

	defer func() { _ = holder.Release() }()

	<-ctx.Done()

	return 0
}

func runExec(ctx context.Context, o *IO, fsys lockfs.FS, prober procprobe.Prober, dir string, stdin io.Reader, mf *modeFlags, cfg config.Config, env map[string]string, args []string, logger *slog.Logger) int {
	descriptor, argv, err := resolveDescriptor(stdin, args)
	if err != nil {
		o.ErrPrintln("error:", err)
		return lockengine.KindUsage.ExitCode()
	}

	if len(argv) == 0 {
		o.ErrPrintln("error: --exec requires a command to run")
		return lockengine.KindUsage.ExitCode()
	}

	in := lockengine.ExecInput{
		Acquire: buildAcquireInput(dir, descriptor, mf, cfg, env, logger),
		Argv:    argv,
	}

	result, err := lockengine.ExecWithLock(ctx, fsys, prober, in)
	if err != nil && result.ExitCode == 0 {
		o.ErrPrintln("error:", err)
	}

	return result.ExitCode
}

func buildAcquireInput(dir, descriptor string, mf *modeFlags, cfg config.Config, env map[string]string, logger *slog.Logger) lockengine.AcquireInput {
	return lockengine.AcquireInput{
		Dir:           dir,
		Descriptor:    descriptor,
		MaxHolders:    resolveCapacity(mf),
		Timeout:       resolveTimeout(mf, cfg),
		PreferredSlot: config.PreferredSlot(env),
		Logger:        logger,
	}
}

// resolveTimeout honors -t/--timeout when the caller explicitly passed it
// (tracked via fs.Changed, since the flag's own zero value, -1, is a valid
// "unbounded" request and can't double as a sentinel); otherwise it falls
// back to whatever config.Load already resolved from the JSONC file or
// WAITLOCK_TIMEOUT, and only then defaults to unbounded.
func resolveTimeout(mf *modeFlags, cfg config.Config) time.Duration {
	if mf.timeoutSet {
		return time.Duration(mf.timeout * float64(time.Second))
	}

	if cfg.Timeout != nil {
		return *cfg.Timeout
	}

	return -1
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: waitlock [flags] <descriptor>")
	fmt.Fprintln(w, "       waitlock --exec [flags] <descriptor> <command> [args...]")
	fmt.Fprintln(w, "Run 'waitlock --help' for the full flag listing.")
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "waitlock - cross-process advisory lock/semaphore for shell pipelines")
	fmt.Fprintln(w)
	printUsage(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Modes (mutually exclusive; default is acquire-and-hold):")
	fmt.Fprintln(w, "  --check              report whether a slot is free, without acquiring")
	fmt.Fprintln(w, "  --list               enumerate active and stale lock records")
	fmt.Fprintln(w, "  --done               signal the current holder(s) to release")
	fmt.Fprintln(w, "  --exec               run a command while holding the lock")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  -m, --allowMultiple N     semaphore capacity (default 1)")
	fmt.Fprintln(w, "  -c, --onePerCPU           capacity = one per CPU")
	fmt.Fprintln(w, "  -x, --excludeCPUs N       subtract N from --onePerCPU's count")
	fmt.Fprintln(w, "  -t, --timeout SECS        wait timeout (negative = unbounded, 0 = attempt once)")
	fmt.Fprintln(w, "  -d, --lock-dir DIR        lock directory override")
	fmt.Fprintln(w, "  -q, --quiet               suppress info-level log lines (errors still print)")
	fmt.Fprintln(w, "  -v, --verbose             emit debug diagnostics")
	fmt.Fprintln(w, "  --syslog                  also emit to the local syslog socket")
	fmt.Fprintln(w, "  --syslog-facility FAC     syslog facility (default daemon)")
	fmt.Fprintln(w, "  -f, --format FMT          list format: human, csv, or null")
	fmt.Fprintln(w, "  -a, --all                 list: also include stale entries (hidden by default)")
	fmt.Fprintln(w, "  --stale-only              list: include only stale entries")
	fmt.Fprintln(w, "  --test                    resolve the lock directory and exit")
	fmt.Fprintln(w, "  -h, --help                show this help")
	fmt.Fprintln(w, "  -V, --version             show version")
}
