// Package observability provides the shared structured logger for the
// CLI.
package observability

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide logger. It is a no-op until Init runs,
// so library code can log unconditionally.
var CLILogger = zap.NewNop()

// Init configures CLILogger. Level is one of debug/info/warn/error;
// format is "console" or "json". Logs go to stderr so command output on
// stdout stays clean.
func Init(level, format string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch format {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console", "":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return fmt.Errorf("invalid log format %q (want console or json)", format)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), lvl)
	CLILogger = zap.New(core)
	return nil
}

// Sync flushes buffered log entries. Safe to call at process exit.
func Sync() {
	_ = CLILogger.Sync()
}
