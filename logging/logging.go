// Package logging sets up the daemon's structured logger, generalized from
// turbo/logging/logging.go: console output plus an optional rotated file
// handler, both independently level-filtered. This daemon has a single CLI
// entrypoint, so the cobra/flag variants that file supports are dropped —
// only the urfave/cli-driven console+file path survives.
package logging

import (
	"os"
	"path/filepath"

	"github.com/ledgerwatch/log/v3"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how verbosely the daemon logs.
type Config struct {
	ConsoleLevel log.Lvl
	ConsoleJSON  bool

	// DirPath, if non-empty, enables rotated file logging under this
	// directory in addition to console output.
	DirPath  string
	DirLevel log.Lvl
	DirJSON  bool

	// FilePrefix names the log file within DirPath (<prefix>.log).
	FilePrefix string
}

// Setup builds the root logger's handler per cfg and returns the root
// logger for convenience at the call site.
func Setup(cfg Config) log.Logger {
	logger := log.Root()

	var consoleFormat log.Format
	if cfg.ConsoleJSON {
		consoleFormat = log.JsonFormat()
	} else {
		consoleFormat = log.TerminalFormatNoColor()
	}
	consoleHandler := log.LvlFilterHandler(cfg.ConsoleLevel, log.StreamHandler(os.Stderr, consoleFormat))
	logger.SetHandler(consoleHandler)

	if cfg.DirPath == "" {
		logger.Info("console logging only")
		return logger
	}

	if err := os.MkdirAll(cfg.DirPath, 0o764); err != nil {
		logger.Warn("failed to create log dir, console logging only", "dir", cfg.DirPath, "err", err)
		return logger
	}

	dirFormat := log.TerminalFormatNoColor()
	if cfg.DirJSON {
		dirFormat = log.JsonFormat()
	}

	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.DirPath, cfg.FilePrefix+".log"),
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}

	fileHandler := log.LvlFilterHandler(cfg.DirLevel, log.StreamHandler(rotated, dirFormat))
	logger.SetHandler(log.MultiHandler(consoleHandler, fileHandler))
	logger.Info("logging to file system", "dir", cfg.DirPath, "prefix", cfg.FilePrefix, "level", cfg.DirLevel, "json", cfg.DirJSON)

	return logger
}
