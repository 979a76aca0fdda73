package taskqueue

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for all tests in this package.
// Sequential drivers and step goroutines must all exit by the end of a test.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
