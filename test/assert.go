package test

import (
	"bytes"
	"errors"
	"testing"
)

func AssertEqual[T comparable](t testing.TB, expected, actual T) bool {
	t.Helper()

	if expected != actual {
		t.Errorf(""+
			"Not equal: \n"+
			"Expected: %v\n"+
			"Actual: %v", expected, actual)
		return false
	}

	return true
}

// AssertBytes compares actual against the expected string, printing both quoted.
func AssertBytes(t testing.TB, expected string, actual []byte) bool {
	t.Helper()

	if !bytes.Equal([]byte(expected), actual) {
		t.Errorf(""+
			"Not equal: \n"+
			"Expected: %q\n"+
			"Actual: %q", expected, actual)
		return false
	}

	return true
}

func AssertTrue(t testing.TB, value bool, msg string) bool {
	t.Helper()

	if !value {
		t.Errorf("Expected true: %s", msg)
		return false
	}

	return true
}

// RequireNoError stops the test on err.
func RequireNoError(t testing.TB, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func AssertErrorIs(t testing.TB, err, target error) bool {
	t.Helper()

	if !errors.Is(err, target) {
		t.Errorf(""+
			"Error mismatch: \n"+
			"Expected: %v\n"+
			"Actual: %v", target, err)
		return false
	}

	return true
}
