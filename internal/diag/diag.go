// Package diag provides waitlock's structured diagnostics: a stderr
// logger for lifecycle events, and an optional sink that mirrors the same
// events to the local syslog socket when --syslog is set. The events
// logged are release, exec-start and exec-end; acquisition, timeout,
// contention, stale or corrupt cleanup and check results are not logged.
package diag

import (
	"context"
	"log/slog"
	"os"
)

// Options configures New.
type Options struct {
	// Quiet raises the stderr handler's level so only warnings and above
	// surface. It does not affect error messages the dispatcher prints
	// directly, which appear whether or not Quiet is set.
	Quiet bool

	// Verbose lowers the stderr handler's level to debug, enabling debug
	// traces.
	Verbose bool

	// Syslog, when true, additionally emits every record to the local
	// syslog socket at Facility.
	Syslog bool

	// Facility is the syslog facility name (e.g. "daemon", "user",
	// "local0"), used only when Syslog is true.
	Facility string
}

// New builds the logger waitlock uses for the lifetime of one invocation.
// Output always goes to stderr, since user-visible output is always
// written there; --syslog fans the same records out to /dev/log as well,
// tagged with the configured facility.
func New(errOut *os.File, opts Options) *slog.Logger {
	level := slog.LevelInfo

	switch {
	case opts.Verbose:
		level = slog.LevelDebug
	case opts.Quiet:
		level = slog.LevelWarn
	}

	handler := slog.Handler(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	if opts.Syslog {
		if sink, err := newSyslogHandler(opts.Facility, level); err == nil {
			handler = &fanoutHandler{primary: handler, secondary: sink}
		}
	}

	return slog.New(handler)
}

// fanoutHandler forwards every record to both the stderr handler and the
// syslog handler. Errors from the secondary sink are swallowed: a syslog
// outage must never prevent the required stderr diagnostics.
type fanoutHandler struct {
	primary   slog.Handler
	secondary slog.Handler
}

func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return f.primary.Enabled(ctx, level) || f.secondary.Enabled(ctx, level)
}

func (f *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	err := f.primary.Handle(ctx, record.Clone())

	if f.secondary.Enabled(ctx, record.Level) {
		_ = f.secondary.Handle(ctx, record.Clone())
	}

	return err
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &fanoutHandler{primary: f.primary.WithAttrs(attrs), secondary: f.secondary.WithAttrs(attrs)}
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	return &fanoutHandler{primary: f.primary.WithGroup(name), secondary: f.secondary.WithGroup(name)}
}
