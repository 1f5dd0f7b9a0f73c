package common

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewTestLogger returns a logger recording every entry, from the debug
// level up, so that tests can make assertions about them. Entries are
// also written to the test log.
func NewTestLogger(t testing.TB) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	t.Cleanup(func() {
		for _, e := range logs.All() {
			t.Logf("%s %s %v", e.Level, e.Message, e.ContextMap())
		}
	})
	return zap.New(core), logs
}
