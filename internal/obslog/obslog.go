// Package obslog is the authentication core's logging convention: every
// line is tagged with its originating component, the way the teacher
// codebase tags lines with "[Poller]", "[AlertManager]", and so on. It
// wraps the standard library logger rather than pulling in a structured
// logging dependency — see DESIGN.md for why stdlib log suffices here.
package obslog

import (
	"fmt"
	"log"
)

// Logger emits lines prefixed with a fixed component tag.
type Logger struct {
	tag string
}

// New returns a Logger tagging every line with "[component]".
func New(component string) *Logger {
	return &Logger{tag: "[" + component + "]"}
}

func (l *Logger) Printf(format string, args ...any) {
	log.Printf("%s %s", l.tag, fmt.Sprintf(format, args...))
}

func (l *Logger) Println(args ...any) {
	log.Println(append([]any{l.tag}, args...)...)
}

// Warn logs a non-fatal condition worth operator attention.
func (l *Logger) Warn(format string, args ...any) {
	log.Printf("%s [WARN] %s", l.tag, fmt.Sprintf(format, args...))
}

// Error logs a failure that was handled but should be investigated.
func (l *Logger) Error(format string, args ...any) {
	log.Printf("%s [ERROR] %s", l.tag, fmt.Sprintf(format, args...))
}
