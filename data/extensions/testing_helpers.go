package extensions

import (
	"math"
	"testing"
)

func AssertAreEqual[T comparable](t *testing.T, name string, expected T, actual T) {
	t.Helper()
	if expected != actual {
		t.Fatalf("value mismatch for %s, expected %v, got %v", name, expected, actual)
	}
}

func AssertNillability[T any](t *testing.T, name string, expected bool, actual *T) {
	t.Helper()
	if (actual == nil) != expected {
		t.Fatalf("value mismatch for %s, expected nil to be %v, got %v", name, expected, (actual == nil))
	}
}

// AssertWithin fails when |expected - actual| > tolerance
func AssertWithin(t *testing.T, name string, expected, actual, tolerance float64) {
	t.Helper()
	if math.IsNaN(actual) || math.Abs(expected-actual) > tolerance {
		t.Fatalf("value mismatch for %s, expected %v (+/- %g), got %v", name, expected, tolerance, actual)
	}
}
