package heraldtest

import (
	"fmt"
	"runtime"
	"testing"
)

// MockT is a testing.TB that captures failures, for testing assertions.
type MockT struct {
	testing.TB // embed to satisfy unexported methods
	failed     bool
	fatal      bool
	messages   []string
}

// Helper implements testing.TB.
func (m *MockT) Helper() {}

// Error implements testing.TB.
func (m *MockT) Error(args ...any) {
	m.failed = true
	m.messages = append(m.messages, fmt.Sprint(args...))
}

// Errorf implements testing.TB.
func (m *MockT) Errorf(format string, args ...any) {
	m.failed = true
	m.messages = append(m.messages, fmt.Sprintf(format, args...))
}

// Fail implements testing.TB.
func (m *MockT) Fail() { m.failed = true }

// FailNow implements testing.TB.
func (m *MockT) FailNow() {
	m.failed = true
	runtime.Goexit()
}

// Failed implements testing.TB.
func (m *MockT) Failed() bool { return m.failed }

// Fatal implements testing.TB.
func (m *MockT) Fatal(args ...any) {
	m.Error(args...)
	m.fatal = true
	runtime.Goexit()
}

// Fatalf implements testing.TB.
func (m *MockT) Fatalf(format string, args ...any) {
	m.Errorf(format, args...)
	m.fatal = true
	runtime.Goexit()
}

// IsFatal reports whether Fatal or Fatalf stopped the function.
func (m *MockT) IsFatal() bool { return m.fatal }

// Messages returns the reported failure messages.
func (m *MockT) Messages() []string { return m.messages }

// RunWithMockT runs fn with a MockT and waits for it, including when fn
// stops through Fatal.
func RunWithMockT(fn func(m *MockT)) *MockT {
	mt := &MockT{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(mt)
	}()
	<-done
	return mt
}
