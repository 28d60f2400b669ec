// Package logger provides the package-level zap logger accessor used
// throughout blkmount, following the same Logger() convention as the
// teacher's internal/utils/logger package (whose own source wasn't part of
// the retrieval pack; reconstructed from its call sites in shell.go,
// rawmaker.go, and the cmd/*_cmd.go files).
package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once sync.Once
	sug  *zap.SugaredLogger
)

// Logger returns the process-wide sugared logger, building a sane
// production-ish console logger the first time it's called.
func Logger() *zap.SugaredLogger {
	once.Do(func() {
		cfg := zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
		l, err := cfg.Build()
		if err != nil {
			// Fall back to a no-op logger rather than panic: logging must
			// never be able to take the library down.
			sug = zap.NewNop().Sugar()
			return
		}
		sug = l.Sugar()
	})
	return sug
}

// SetLogger overrides the process-wide logger, e.g. to redirect into a
// caller-supplied zap core (tests use this to capture log output).
func SetLogger(l *zap.SugaredLogger) {
	once.Do(func() {})
	sug = l
}
