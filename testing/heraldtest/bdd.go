package heraldtest

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/AshkanYarmoradi/go-herald"
)

// Fixture provides Given-When-Then testing for aggregate commands.
type Fixture struct {
	t        TB
	cmd      herald.Command
	recorder *Recorder
	result   interface{}
	err      error
	executed bool
}

// Given sets up the aggregate command under test and starts recording
// its delegations.
func Given(t TB, cmd herald.Command) *Fixture {
	t.Helper()
	return &Fixture{
		t:        t,
		cmd:      cmd,
		recorder: Record(cmd),
	}
}

// When executes the command.
func (f *Fixture) When(ctx context.Context) *Fixture {
	f.t.Helper()

	if ctx == nil {
		ctx = context.Background()
	}
	f.result, f.err = f.cmd.Execute(ctx)
	f.executed = true
	return f
}

// Recorder returns the recorder attached by Given.
func (f *Fixture) Recorder() *Recorder {
	return f.recorder
}

// Then asserts that the command succeeded after delegating to the named
// events, in order.
func (f *Fixture) Then(names ...string) *Fixture {
	f.t.Helper()
	f.mustHaveExecuted("Then")

	if f.err != nil {
		f.t.Fatalf("Expected success but got error: %v", f.err)
	}
	AssertDelegations(f.t, f.recorder, names...)
	return f
}

// ThenResult asserts the command's result.
func (f *Fixture) ThenResult(expected interface{}) *Fixture {
	f.t.Helper()
	f.mustHaveExecuted("ThenResult")

	if !reflect.DeepEqual(f.result, expected) {
		f.t.Errorf("Result mismatch:\nExpected: %+v\nActual: %+v", expected, f.result)
	}
	return f
}

// ThenError asserts that the command failed with expectedErr.
func (f *Fixture) ThenError(expectedErr error) *Fixture {
	f.t.Helper()
	f.mustHaveExecuted("ThenError")

	if f.err == nil {
		f.t.Fatal("Expected error but got success")
	}
	if !errors.Is(f.err, expectedErr) {
		f.t.Errorf("Expected error %v, got %v", expectedErr, f.err)
	}
	return f
}

// ThenErrorContains asserts that the error message contains a substring.
func (f *Fixture) ThenErrorContains(substring string) *Fixture {
	f.t.Helper()
	f.mustHaveExecuted("ThenErrorContains")

	if f.err == nil {
		f.t.Fatal("Expected error but got success")
	}
	if !strings.Contains(f.err.Error(), substring) {
		f.t.Errorf("Expected error containing %q, got %q", substring, f.err.Error())
	}
	return f
}

// ThenNoDelegations asserts that nothing was delegated.
func (f *Fixture) ThenNoDelegations() *Fixture {
	f.t.Helper()
	f.mustHaveExecuted("ThenNoDelegations")

	AssertNoDelegations(f.t, f.recorder)
	return f
}

func (f *Fixture) mustHaveExecuted(step string) {
	f.t.Helper()
	if !f.executed {
		f.t.Fatalf("heraldtest: %s() must be called after When() - no command was executed", step)
	}
}
