package testutil

import (
	"errors"
	"testing"
)

func TestAssertNoError(t *testing.T) {
	AssertNoError(t, nil)
}

func TestAssertError(t *testing.T) {
	AssertError(t, errors.New("boom"))
}

func TestAssertInDelta(t *testing.T) {
	AssertInDelta(t, "value", 1.0001, 1.0, 0.001)
}
