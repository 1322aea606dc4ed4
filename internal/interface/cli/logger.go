package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/alextrx818/matchpipe/internal/app"
)

type logLevel int

const (
	levelDebug logLevel = iota
	levelInfo
	levelWarn
	levelError
)

// leveledLogger filters by severity and writes to stderr so stage
// output on stdout stays machine-readable.
type leveledLogger struct {
	min logLevel
}

func newLeveledLogger(level string) app.Logger {
	min := levelInfo
	switch strings.ToLower(level) {
	case "debug":
		min = levelDebug
	case "warn":
		min = levelWarn
	case "error":
		min = levelError
	}
	return &leveledLogger{min: min}
}

func (l *leveledLogger) log(lv logLevel, tag, format string, args ...interface{}) {
	if lv < l.min {
		return
	}
	fmt.Fprintf(os.Stderr, tag+" "+format+"\n", args...)
}

func (l *leveledLogger) Debug(format string, args ...interface{}) {
	l.log(levelDebug, "DEBUG:", format, args...)
}

func (l *leveledLogger) Info(format string, args ...interface{}) {
	l.log(levelInfo, "INFO:", format, args...)
}

func (l *leveledLogger) Warn(format string, args ...interface{}) {
	l.log(levelWarn, "WARN:", format, args...)
}

func (l *leveledLogger) Error(format string, args ...interface{}) {
	l.log(levelError, "ERROR:", format, args...)
}
