package testutil

import "testing"

// Given names the fixture stage of a scenario subtest.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+desc, fn)
}

// When names the action stage. Nest it inside Given so the subtest path
// reads as one sentence.
func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}

// Then names the assertion stage.
func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}
