package heraldtest

import (
	"strings"
	"testing"
)

// TB is an alias for testing.TB interface to allow mocking in tests
type TB = testing.TB

// AssertDelegations checks that the recorder saw exactly the named
// delegations, in order.
func AssertDelegations(t TB, r *Recorder, names ...string) {
	t.Helper()

	actual := r.Names()
	if len(actual) != len(names) {
		t.Fatalf("Expected %d delegations %v, got %d: %v", len(names), names, len(actual), actual)
	}

	for i, expected := range names {
		if actual[i] != expected {
			t.Errorf("Delegation %d: expected %q, got %q", i, expected, actual[i])
		}
	}
}

// AssertDelegated checks that at least one delegation used the event name.
func AssertDelegated(t TB, r *Recorder, name string) {
	t.Helper()

	for _, n := range r.Names() {
		if n == name {
			return
		}
	}
	t.Errorf("Expected a delegation named %q, got: %s", name, strings.Join(r.Names(), ", "))
}

// AssertDelegationCount checks the number of recorded delegations.
func AssertDelegationCount(t TB, r *Recorder, expected int) {
	t.Helper()

	if n := r.Len(); n != expected {
		t.Errorf("Expected %d delegations, got %d", expected, n)
	}
}

// AssertNoDelegations checks that nothing was delegated.
func AssertNoDelegations(t TB, r *Recorder) {
	t.Helper()

	if n := r.Len(); n > 0 {
		t.Errorf("Expected no delegations, got %d: %v", n, r.Names())
	}
}

// AssertCommandType checks the type of the i-th delegated command.
func AssertCommandType(t TB, r *Recorder, i int, commandType string) {
	t.Helper()

	delegations := r.Delegations()
	if i < 0 || i >= len(delegations) {
		t.Fatalf("Delegation %d out of range: %d recorded", i, len(delegations))
	}
	if got := delegations[i].CommandType; got != commandType {
		t.Errorf("Delegation %d: expected command type %s, got %s", i, commandType, got)
	}
}
