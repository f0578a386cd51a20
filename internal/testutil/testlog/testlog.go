// Package testlog builds zerolog loggers that write through the test
// runner, so daemon output stays attached to the test that produced it
// and only surfaces when the test fails or runs with -v.
package testlog

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
)

type testWriter struct {
	tb testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.tb.Logf("%s", bytes.TrimRight(p, "\n"))
	return len(p), nil
}

// New returns a debug-level logger for use inside tb. Goroutines that
// outlive the test must not hold on to it.
func New(tb testing.TB) zerolog.Logger {
	tb.Helper()
	return zerolog.New(testWriter{tb: tb}).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}
