package logging

import (
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger that keeps every entry, at every level, in
// memory for assertions.
type TestLogger struct {
	*Logger
	logs *observer.ObservedLogs
}

func NewTestLogger() *TestLogger {
	core, logs := observer.New(TraceLevel)
	return &TestLogger{Logger: &Logger{zap: zap.New(core)}, logs: logs}
}

func (t *TestLogger) All() []observer.LoggedEntry { return t.logs.All() }

// FilterMessage returns entries whose message equals msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.logs.FilterMessage(msg)
}

func (t *TestLogger) Reset() { t.logs.TakeAll() }

func (t *TestLogger) find(level zapcore.Level, substr string) bool {
	for _, e := range t.logs.All() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// AssertLogged fails tb unless an entry at level contains substr.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, substr string) {
	tb.Helper()
	if !t.find(level, substr) {
		tb.Errorf("no %s entry containing %q; got %s", level, substr, t.dump())
	}
}

// AssertNotLogged fails tb if an entry at level contains substr.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, substr string) {
	tb.Helper()
	if t.find(level, substr) {
		tb.Errorf("unexpected %s entry containing %q", level, substr)
	}
}

// AssertField fails tb unless an entry with message msg carries key
// with a value printing as want.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	for _, e := range t.logs.FilterMessage(msg).All() {
		if v, ok := e.ContextMap()[key]; ok && fmt.Sprint(v) == fmt.Sprint(want) {
			return
		}
	}
	tb.Errorf("entry %q has no field %s=%v", msg, key, want)
}

func (t *TestLogger) dump() string {
	var b strings.Builder
	for _, e := range t.logs.All() {
		fmt.Fprintf(&b, "\n  %s %s %v", e.Level, e.Message, e.ContextMap())
	}
	return b.String()
}
