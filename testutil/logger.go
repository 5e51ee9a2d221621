// Package testutil provides fakes and helpers shared by package tests.
package testutil

import (
	"log/slog"
	"testing"
)

type testLogger struct {
	t *testing.T
}

// NewTestLogger returns a debug logger writing to the test log.
func NewTestLogger(t *testing.T) *slog.Logger {
	return slog.New(slog.NewTextHandler(&testLogger{t: t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (l *testLogger) Write(p []byte) (n int, err error) {
	if l.t.Context().Err() != nil {
		return
	}
	l.t.Log(string(p))
	return len(p), nil
}
