package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

var (
	currentLevel = LevelInfo
	mu           sync.RWMutex
)

// SetLevel sets the global log level.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = l
}

// GetLevel returns the global log level.
func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// ParseLevel maps a level name (error, warn, info, debug) to a Level.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "", "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// Setup initializes the standard logger output.
func Setup(w io.Writer) {
	log.SetOutput(w)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
}

// Debug logs protocol-level detail.
func Debug(format string, v ...interface{}) {
	if GetLevel() >= LevelDebug {
		output("DEBUG: "+format, v...)
	}
}

// Info logs informative messages if the level allows.
func Info(format string, v ...interface{}) {
	if GetLevel() >= LevelInfo {
		output("INFO: "+format, v...)
	}
}

// Warn logs recoverable problems.
func Warn(format string, v ...interface{}) {
	if GetLevel() >= LevelWarn {
		output("WARN: "+format, v...)
	}
}

// Error logs error messages.
func Error(format string, v ...interface{}) {
	output("ERROR: "+format, v...)
}

// Fatal logs independent of error level and exits.
func Fatal(format string, v ...interface{}) {
	output("FATAL: "+format, v...)
	os.Exit(1)
}

func output(format string, v ...interface{}) {
	// Calldepth 3 to skip this function, Info/Error, and get to caller
	log.Output(3, fmt.Sprintf(format, v...))
}
