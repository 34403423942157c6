package smpp

import (
	"fmt"

	kitlog "github.com/go-kit/log"
)

// Logger provides the logging interface the session and submit pipeline use
// for internal diagnostics. Implementations must be safe for concurrent use.
type Logger interface {
	InfoF(msg string, params ...interface{})
	ErrorF(msg string, params ...interface{})
}

// DefaultLogger backs Logger with a structured go-kit logger writing
// key/value pairs instead of free-form text.
type DefaultLogger struct {
	kit kitlog.Logger
}

// NewDefaultLogger wraps l, or a no-op logger if l is nil.
func NewDefaultLogger(l kitlog.Logger) DefaultLogger {
	if l == nil {
		l = kitlog.NewNopLogger()
	}
	return DefaultLogger{kit: l}
}

// InfoF implements Logger. The zero value of DefaultLogger discards output.
func (dl DefaultLogger) InfoF(msg string, params ...interface{}) {
	dl.logger().Log("level", "info", "msg", fmtMsg(msg, params...))
}

// ErrorF implements Logger. The zero value of DefaultLogger discards output.
func (dl DefaultLogger) ErrorF(msg string, params ...interface{}) {
	dl.logger().Log("level", "error", "msg", fmtMsg(msg, params...))
}

func (dl DefaultLogger) logger() kitlog.Logger {
	if dl.kit == nil {
		return kitlog.NewNopLogger()
	}
	return dl.kit
}

func fmtMsg(msg string, params ...interface{}) string {
	if len(params) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, params...)
}
