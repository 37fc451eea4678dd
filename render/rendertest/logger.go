package rendertest

import (
	"fmt"
	"strings"
	"sync"
)

// Logger keeps every message for assertions. It satisfies gekko.Logger.
type Logger struct {
	mu       sync.Mutex
	debug    bool
	Messages []string
}

func NewLogger() *Logger {
	return &Logger{}
}

func (l *Logger) record(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, level+": "+fmt.Sprintf(format, args...))
}

func (l *Logger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *Logger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

func (l *Logger) Debugf(format string, args ...any) { l.record("DEBUG", format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.record("INFO", format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.record("WARN", format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.record("ERROR", format, args...) }

// Count returns how many messages at level contain substr.
func (l *Logger) Count(level, substr string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.Messages {
		if strings.HasPrefix(m, level+": ") && strings.Contains(m, substr) {
			n++
		}
	}
	return n
}
