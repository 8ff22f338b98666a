// Package logx provides structured logging with per-component identifiers
// and environment-driven debug filtering.
package logx

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger writes leveled, timestamped log lines tagged with a component ID.
type Logger struct {
	id     string
	logger *log.Logger
}

// Level identifies the severity of a log line.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// debugConfig controls debug logging behavior, initialized from the
// environment at startup.
type debugConfig struct {
	enabled bool
	domains map[string]bool // nil = all domains
}

//nolint:gochecknoglobals // process-wide debug switches, set once from env
var (
	debugCfg   = &debugConfig{}
	debugMutex sync.RWMutex
)

// Environment variable control:
//
//	DEBUG=1                          # enable debug for all domains
//	DEBUG=1 DEBUG_DOMAINS=workflow   # enable a single domain
//	DEBUG=1 DEBUG_DOMAINS=a,b        # enable multiple domains
func init() { //nolint:gochecknoinits // env var initialization
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if v := os.Getenv("DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		debugCfg.enabled = true
	}
	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugCfg.domains = make(map[string]bool)
		for _, d := range strings.Split(domains, ",") {
			debugCfg.domains[strings.TrimSpace(d)] = true
		}
	}
}

// NewLogger creates a logger tagged with the given component ID.
// Output goes to stderr for CLI compatibility.
func NewLogger(id string) *Logger {
	return &Logger{
		id:     id,
		logger: log.New(os.Stderr, "", 0),
	}
}

// SetDebug enables or disables debug logging globally.
func SetDebug(enabled bool) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugCfg.enabled = enabled
}

// SetDebugDomains restricts debug logging to the given domains.
// An empty list enables all domains.
func SetDebugDomains(domains []string) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if len(domains) == 0 {
		debugCfg.domains = nil
		return
	}
	debugCfg.domains = make(map[string]bool)
	for _, d := range domains {
		debugCfg.domains[strings.TrimSpace(d)] = true
	}
}

// IsDebugEnabled returns whether debug logging is enabled.
func IsDebugEnabled() bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()
	return debugCfg.enabled
}

// IsDebugEnabledForDomain returns whether debug logging is enabled for the
// given domain.
func IsDebugEnabledForDomain(domain string) bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()

	if !debugCfg.enabled {
		return false
	}
	if debugCfg.domains == nil {
		return true
	}
	return debugCfg.domains[domain]
}

func (l *Logger) log(level Level, format string, args ...any) {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] [%s] %s: %s", timestamp, l.id, level, message)
}

// Debug logs a debug message if debug logging is enabled for this
// logger's ID (used as the domain).
func (l *Logger) Debug(format string, args ...any) {
	if !IsDebugEnabledForDomain(l.id) {
		return
	}
	l.log(LevelDebug, format, args...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}
