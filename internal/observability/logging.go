// Package observability configures structured logging for inklift.
//
// Two loggers are exposed: Logger for service and library code, and
// CLILogger for human-facing command output. Both default to no-op until
// Init is called so library code can log unconditionally.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide structured logger.
var Logger = zap.NewNop()

// CLILogger writes console-formatted output for interactive commands.
var CLILogger = zap.NewNop()

// Init builds the global loggers.
//
// level is a zap level string (debug, info, warn, error). format is
// "json" or "console"; service deployments use json, the CLI defaults
// to console.
func Init(level, format string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	switch format {
	case "", "json":
		cfg.Encoding = "json"
	case "console":
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	default:
		return fmt.Errorf("invalid log format %q (want json or console)", format)
	}

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	Logger = logger

	cliCfg := zap.NewDevelopmentConfig()
	cliCfg.Level = zap.NewAtomicLevelAt(lvl)
	cliCfg.DisableStacktrace = true
	cli, err := cliCfg.Build()
	if err != nil {
		return fmt.Errorf("build cli logger: %w", err)
	}
	CLILogger = cli

	return nil
}

// Sync flushes buffered log entries. Safe to call on no-op loggers.
func Sync() {
	_ = Logger.Sync()
	_ = CLILogger.Sync()
}
