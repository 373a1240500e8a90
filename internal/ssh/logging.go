package ssh

import (
	"io"
	"log"
)

// logger wraps a *log.Logger with debug/info/warn levels. A nil
// underlying logger is replaced with one writing to io.Discard so the
// library never panics on a zero-value Config.
type logger struct {
	l *log.Logger
}

func newLogger(l *log.Logger) *logger {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	return &logger{l: l}
}

func (lg *logger) Debugf(format string, args ...any) {
	lg.l.Printf("DEBUG "+format, args...)
}

func (lg *logger) Infof(format string, args ...any) {
	lg.l.Printf("INFO "+format, args...)
}

func (lg *logger) Warnf(format string, args ...any) {
	lg.l.Printf("WARN "+format, args...)
}
