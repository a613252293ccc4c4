// Command waitlock is a cross-process advisory lock and semaphore tool
// for coordinating shell pipelines and scripts through the filesystem.
package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/waitlock/waitlock/internal/cli"
)

func main() {
	environ := os.Environ()
	env := make(map[string]string, len(environ))

	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	// SIGHUP/SIGINT/SIGTERM/SIGQUIT all trigger the same graceful release
	// path; SIGPIPE is ignored rather than terminating the process, since
	// a downstream reader closing its end of a pipe shouldn't skip lock
	// release.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	signal.Ignore(syscall.SIGPIPE)

	exitCode := cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args, env, sigCh)

	os.Exit(exitCode)
}
