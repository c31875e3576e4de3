// Package observability holds the process-wide loggers.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger used by commands. It is a no-op logger until
// InitCLILogger is called.
var CLILogger = zap.NewNop()

// InitCLILogger configures CLILogger for a human at a terminal: console
// encoding on stderr, info level, debug level when verbose.
func InitCLILogger(name string, verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	CLILogger = newLogger(name, level, os.Stderr)
	return CLILogger
}

// InitWithLevel configures CLILogger from a level name such as "warn".
// Unknown names fall back to info.
func InitWithLevel(name, levelName string) *zap.Logger {
	level, err := zapcore.ParseLevel(levelName)
	if err != nil {
		level = zapcore.InfoLevel
	}
	CLILogger = newLogger(name, level, os.Stderr)
	return CLILogger
}

func newLogger(name string, level zapcore.Level, sink zapcore.WriteSyncer) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(sink), level)
	return zap.New(core).Named(name)
}
