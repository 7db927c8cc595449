// Package log is a small leveled, colorized logger used throughout this
// module in place of the standard library's log package. Color is disabled
// automatically when stdout is not a terminal.
package log

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Level is a log verbosity level, ordered from least to most severe.
type Level int

const (
	Trace Level = iota
	Debug
	Info
	Warn
	Error
	Fatal
	off
)

var names = map[Level]string{
	Trace: "TRC", Debug: "DBG", Info: "INF",
	Warn: "WRN", Error: "ERR", Fatal: "FTL",
}

var colors = map[Level]*color.Color{
	Trace: color.New(color.FgHiBlack),
	Debug: color.New(color.FgCyan),
	Info:  color.New(color.FgGreen),
	Warn:  color.New(color.FgYellow),
	Error: color.New(color.FgRed),
	Fatal: color.New(color.FgHiRed, color.Bold),
}

var current atomic.Int32

func init() {
	current.Store(int32(Info))
	color.NoColor = !isatty.IsTerminal(os.Stdout.Fd())
}

// SetLevel sets the minimum level that will be printed. Accepts one of
// "trace","debug","info","warn","error","fatal" (case-insensitive); unknown
// values are silently ignored.
func SetLevel(s string) {
	switch strings.ToLower(s) {
	case "trace":
		current.Store(int32(Trace))
	case "debug":
		current.Store(int32(Debug))
	case "info":
		current.Store(int32(Info))
	case "warn", "warning":
		current.Store(int32(Warn))
	case "error":
		current.Store(int32(Error))
	case "fatal":
		current.Store(int32(Fatal))
	}
}

// Logger prints at a fixed level if that level is >= the configured minimum.
type Logger struct {
	level Level
	out   io.Writer
}

var (
	T = &Logger{level: Trace, out: os.Stderr}
	D = &Logger{level: Debug, out: os.Stderr}
	I = &Logger{level: Info, out: os.Stdout}
	W = &Logger{level: Warn, out: os.Stderr}
	E = &Logger{level: Error, out: os.Stderr}
	F = &Logger{level: Fatal, out: os.Stderr}
)

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "?"
	}
	if idx := strings.LastIndex(file, "/"); idx >= 0 {
		if idx2 := strings.LastIndex(file[:idx], "/"); idx2 >= 0 {
			file = file[idx2+1:]
		}
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// F prints a formatted message at this logger's level.
func (l *Logger) F(format string, args ...any) {
	if int32(l.level) < current.Load() {
		return
	}
	c := colors[l.level]
	prefix := c.Sprintf("[%s]", names[l.level])
	ts := time.Now().Format("15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.out, "%s %s %s %s\n", ts, prefix, caller(3), msg)
	if l.level == Fatal {
		os.Exit(1)
	}
}

// Ln prints its arguments space-separated at this logger's level.
func (l *Logger) Ln(args ...any) {
	l.F("%s", strings.TrimRight(fmt.Sprintln(args...), "\n"))
}
