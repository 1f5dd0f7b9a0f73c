// The common package holds types and functions that are common to
// multiple parts of relay, and generically useful.
package common

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger writing to stderr at the given level.
// dev selects the human-friendly development encoder.
//
// Library packages default to zap.NewNop(); applications that want to
// see logs pass the result of NewLogger through the WithLogger options.
func NewLogger(level zapcore.Level, dev bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	l, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "cannot build logger")
	}
	return l.Named("relay"), nil
}
