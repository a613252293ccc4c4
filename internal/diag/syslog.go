package diag

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// RFC 3164 facility and severity codes. A priority value is
// facility<<3 | severity; golang.org/x/sys/unix (already imported
// elsewhere in this module for Renameat2/Kill) doesn't carry these,
// so they're defined here the way the standard library's old log/syslog
// package did before its removal.
const (
	logKern = iota
	logUser
	logMail
	logDaemon
	logAuth
	logSyslog
	logLPR
	logNews
	logUUCP
	logCron
	logAuthpriv
	logFTP
	_
	_
	_
	_
	logLocal0
	logLocal1
	logLocal2
	logLocal3
	logLocal4
	logLocal5
	logLocal6
	logLocal7
)

const (
	logErr = iota + 3
	logWarning
	_
	logInfo
	logDebug
)

// facilities maps --syslog-facility names to their RFC 3164 facility
// codes.
var facilities = map[string]int{
	"kern":     logKern,
	"user":     logUser,
	"mail":     logMail,
	"daemon":   logDaemon,
	"auth":     logAuth,
	"syslog":   logSyslog,
	"lpr":      logLPR,
	"news":     logNews,
	"uucp":     logUUCP,
	"cron":     logCron,
	"authpriv": logAuthpriv,
	"ftp":      logFTP,
	"local0":   logLocal0,
	"local1":   logLocal1,
	"local2":   logLocal2,
	"local3":   logLocal3,
	"local4":   logLocal4,
	"local5":   logLocal5,
	"local6":   logLocal6,
	"local7":   logLocal7,
}

// syslogSeverity maps an slog level to the nearest RFC 3164 severity,
// matching waitlock's four slog levels onto syslog's eight.
func syslogSeverity(level slog.Level) int {
	switch {
	case level >= slog.LevelError:
		return logErr
	case level >= slog.LevelWarn:
		return logWarning
	case level >= slog.LevelInfo:
		return logInfo
	default:
		return logDebug
	}
}

// syslogHandler writes RFC 3164-ish lines directly to the local syslog
// socket, bypassing the system logger package so waitlock doesn't need a
// running daemon-side hookup beyond /dev/log existing.
type syslogHandler struct {
	mu       sync.Mutex
	conn     net.Conn
	facility int
	tag      string
	minLevel slog.Level
	attrs    []slog.Attr
}

func newSyslogHandler(facilityName string, minLevel slog.Level) (slog.Handler, error) {
	facility, ok := facilities[facilityName]
	if !ok {
		facility = logDaemon
	}

	conn, err := net.Dial("unixgram", "/dev/log")
	if err != nil {
		return nil, fmt.Errorf("connecting to syslog socket: %w", err)
	}

	host, _ := os.Hostname()

	return &syslogHandler{
		conn:     conn,
		facility: facility,
		tag:      fmt.Sprintf("waitlock[%d]@%s", os.Getpid(), host),
		minLevel: minLevel,
	}, nil
}

func (h *syslogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

func (h *syslogHandler) Handle(_ context.Context, record slog.Record) error {
	priority := h.facility<<3 | syslogSeverity(record.Level)

	msg := record.Message

	for _, a := range h.attrs {
		msg += fmt.Sprintf(" %s=%v", a.Key, a.Value)
	}

	record.Attrs(func(a slog.Attr) bool {
		msg += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})

	line := fmt.Sprintf("<%d>%s %s: %s\n", priority, record.Time.Format(time.Stamp), h.tag, msg)

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.conn.Write([]byte(line))

	return err
}

func (h *syslogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)

	return &next
}

func (h *syslogHandler) WithGroup(_ string) slog.Handler {
	return h
}
