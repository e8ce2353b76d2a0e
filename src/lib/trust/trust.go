package trust

import (
	"fmt"
	"io"
	"os"
)

type MaskLevel int

const (
	Nothing   MaskLevel = 0x0
	ErrorMask MaskLevel = 0x1
	WarnMask  MaskLevel = 0x2
	InfoMask  MaskLevel = 0x4
	DebugMask MaskLevel = 0x8
	StatsMask MaskLevel = 0x10
	fatalMask MaskLevel = 0x80
)

// Logger writes leveled, maskable log messages to a sink.  The zero
// value is not useful; call NewLogger.  Fatal messages cannot be
// masked and invoke the logger's abort function, which for kernel
// code is wired to the machine halt.
type Logger struct {
	out   io.Writer
	level MaskLevel
	abort func(int)
}

// NewLogger creates a logger with everything turned on.  Pass nil for
// abort to get os.Exit.
func NewLogger(out io.Writer, abort func(int)) *Logger {
	if abort == nil {
		abort = os.Exit
	}
	return &Logger{
		out:   out,
		level: fatalMask | StatsMask | ErrorMask | WarnMask | InfoMask | DebugMask,
		abort: abort,
	}
}

// SetLevel lets you set an error mask directly. You can pass in something like
// ErrorMask | DebugMask to control exactly what gets printed.  It returns the
// previous mask.
func (l *Logger) SetLevel(mask MaskLevel) MaskLevel {
	if mask&0x1f == 0 {
		fmt.Fprintf(l.out, " WARN: trust.SetLevel is turning off log messages\n")
	}
	result := Nothing
	switch {
	case mask&ErrorMask > 0:
		result |= ErrorMask
		fallthrough
	case mask&WarnMask > 0:
		result |= WarnMask
		fallthrough
	case mask&InfoMask > 0:
		result |= InfoMask
		fallthrough
	case mask&DebugMask > 0:
		result |= DebugMask
		fallthrough
	case mask&StatsMask > 0:
		result |= StatsMask
	}
	r := l.level & 0x1f
	l.level = result | fatalMask
	return r
}

func (l *Logger) Level() MaskLevel {
	return l.level
}

func (l *Logger) logf(lev MaskLevel, format string, params ...interface{}) {
	if l.level&lev == 0 {
		return
	}
	start := 0
	switch {
	case lev&ErrorMask > 0:
		fmt.Fprintf(l.out, "ERROR:")
	case lev&WarnMask > 0:
		fmt.Fprintf(l.out, " WARN:")
	case lev&InfoMask > 0:
		fmt.Fprintf(l.out, " INFO:")
	case lev&DebugMask > 0:
		fmt.Fprintf(l.out, "DEBUG:")
	case lev&StatsMask > 0:
		s, ok := params[0].(string)
		if !ok {
			s = "unknown"
		}
		fmt.Fprintf(l.out, "STATS[%s]:", s)
		start = 1
	}
	if len(format) == 0 {
		format = "\n"
	} else if format[len(format)-1] != '\n' {
		format += "\n"
	}
	fmt.Fprintf(l.out, format, params[start:]...)
}

//Fatalf prints the given log message (format + params) on the sink and then
//aborts with the exitCode provided.  Fatalf is not maskable.
func (l *Logger) Fatalf(exitCode int, format string, params ...interface{}) {
	l.logf(fatalMask, format, params...)
	l.abort(exitCode)
}

//Errorf prints the given log message (format + params) using the ErrorMask level.
func (l *Logger) Errorf(format string, params ...interface{}) {
	l.logf(ErrorMask, format, params...)
}

//Warnf prints the given log message (format + params) using the WarnMask level.
func (l *Logger) Warnf(format string, params ...interface{}) {
	l.logf(WarnMask, format, params...)
}

//Infof prints the given log message (format + params) using the InfoMask level.
func (l *Logger) Infof(format string, params ...interface{}) {
	l.logf(InfoMask, format, params...)
}

//Debugf prints the given log message (format + params) using the DebugMask level.
func (l *Logger) Debugf(format string, params ...interface{}) {
	l.logf(DebugMask, format, params...)
}

//Statsf prints the given log message (format + params) using the StatsMask level and
//takes an extra parameter that will be visible in the log message as the category
//of stats that is reported.
func (l *Logger) Statsf(category string, format string, params ...interface{}) {
	l.logf(StatsMask, format, append([]interface{}{category}, params...)...)
}

var std = NewLogger(os.Stdout, os.Exit)

// Default returns the package-wide logger that writes to stdout.
func Default() *Logger {
	return std
}

func SetLevel(mask MaskLevel) MaskLevel { return std.SetLevel(mask) }
func Level() MaskLevel                  { return std.level }

func Fatalf(exitCode int, format string, params ...interface{}) {
	std.Fatalf(exitCode, format, params...)
}
func Errorf(format string, params ...interface{}) { std.logf(ErrorMask, format, params...) }
func Warnf(format string, params ...interface{})  { std.logf(WarnMask, format, params...) }
func Infof(format string, params ...interface{})  { std.logf(InfoMask, format, params...) }
func Debugf(format string, params ...interface{}) { std.logf(DebugMask, format, params...) }
func Statsf(category string, format string, params ...interface{}) {
	std.logf(StatsMask, format, append([]interface{}{category}, params...)...)
}
