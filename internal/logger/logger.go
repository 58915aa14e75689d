package logger

import (
	"log"
	"strings"
	"sync/atomic"
)

const (
	fatalLabel = "[FATAL] "
	errorLabel = "[ERROR] "
	warnLabel  = "[WARN ] "
	infoLabel  = "[INFO ] "
	debugLabel = "[DEBUG] "
)

const (
	levelDebug int32 = iota
	levelInfo
	levelWarn
	levelError
)

var threshold atomic.Int32

func init() {
	threshold.Store(levelInfo)
}

// SetLevel sets the minimum level that is printed. Unknown names select info.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		threshold.Store(levelDebug)
	case "warn", "warning":
		threshold.Store(levelWarn)
	case "error":
		threshold.Store(levelError)
	default:
		threshold.Store(levelInfo)
	}
}

// mylog prepends the level string to log.Printf when level passes the threshold.
// Arguments are handled in the manner of [fmt.Printf].
func mylog(level int32, label string, format string, args ...interface{}) {
	if level < threshold.Load() {
		return
	}
	log.Printf(label+format, args...)
}

// Fatal calls [log.Fatalf], adding a fatal label.
// Arguments are handled in the manner of [fmt.Printf].
func Fatal(format string, args ...interface{}) {
	log.Fatalf(fatalLabel+format, args...)
}

// Error prints to the standard logger, adding an error label.
func Error(format string, args ...interface{}) {
	mylog(levelError, errorLabel, format, args...)
}

// Warn prints to the standard logger, adding a warn label.
func Warn(format string, args ...interface{}) {
	mylog(levelWarn, warnLabel, format, args...)
}

// Info prints to the standard logger, adding an info label.
func Info(format string, args ...interface{}) {
	mylog(levelInfo, infoLabel, format, args...)
}

// Debug prints to the standard logger, adding a debug label.
func Debug(format string, args ...interface{}) {
	mylog(levelDebug, debugLabel, format, args...)
}
