// Package logx is the supervisor's logging façade (spec.md §4.5): a
// single-writer, leveled, append-only event log. It wraps go-hclog the
// way Xuanwo-nomad-driver-systemd-nspawn names a root logger for the
// plugin and hands out .Named() sub-loggers per subsystem.
package logx

import (
	"io"
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

// Logger is the narrow leveled-record interface the supervision engine
// consumes; New returns an hclog-backed implementation.
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Named(name string) Logger
}

type hclogAdapter struct {
	hclog.Logger
}

func (a hclogAdapter) Named(name string) Logger {
	return hclogAdapter{a.Logger.Named(name)}
}

// New builds the root logger, writing to w (or os.Stderr if nil).
func New(w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	return hclogAdapter{hclog.New(&hclog.LoggerOptions{
		Name:            "taskmasterd",
		Level:           hclog.Info,
		Output:          w,
		IncludeLocation: false,
	})}
}

// NewFile opens path for append and returns a logger writing to it,
// alongside the opened file so callers can close it on shutdown.
func NewFile(path string) (Logger, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return New(f), f, nil
}
