package log

import (
	"errors"
	"fmt"
	"path/filepath"
)

// LogCfg configures a CommLogger. Field tags follow the [log] section of the serialctl
// configuration file.
type LogCfg struct {
	// LogPath is the file the file appender writes to.
	LogPath string `mapstructure:"path"`

	// LogLevel is the minimum level that is written.
	LogLevel Level `mapstructure:"level"`

	// FileSplitMB rotates the log file once it grows past this size. 0 disables size rotation.
	FileSplitMB int `mapstructure:"splitMB"`

	// FileSplitHour rotates the log file daily at this hour. 0 disables time rotation.
	FileSplitHour int `mapstructure:"splitHour"`

	// CallerSkip adds extra frames to skip when resolving caller information.
	CallerSkip int `mapstructure:"callerSkip"`

	FileAppender    bool `mapstructure:"fileAppender"`
	ConsoleAppender bool `mapstructure:"consoleAppender"`

	// EnabledCallerInfo adds a "caller" field (file:line function) to every event.
	EnabledCallerInfo bool `mapstructure:"enabledCallerInfo"`
}

// Validate checks ranges and normalizes the log path.
func (cfg *LogCfg) Validate() error {
	if cfg.LogLevel < TraceLevel || cfg.LogLevel > FatalLevel {
		return fmt.Errorf("invalid log level: %d, must be between %d (Trace) and %d (Fatal)",
			cfg.LogLevel, TraceLevel, FatalLevel)
	}

	if cfg.FileSplitMB < 0 || cfg.FileSplitMB > 1024 {
		return fmt.Errorf("file split size must be between 0MB and 1024MB, got %dMB", cfg.FileSplitMB)
	}

	if cfg.FileSplitHour < 0 || cfg.FileSplitHour > 23 {
		return fmt.Errorf("file split hour must be between 0 and 23, got %d", cfg.FileSplitHour)
	}

	if cfg.CallerSkip < 0 {
		return fmt.Errorf("caller skip must be non-negative, got %d", cfg.CallerSkip)
	}

	if cfg.FileAppender {
		if cfg.LogPath == "" {
			return errors.New("log path cannot be empty when file appender is enabled")
		}
		cfg.LogPath = filepath.Clean(cfg.LogPath)
	}

	if !cfg.FileAppender && !cfg.ConsoleAppender {
		return errors.New("at least one appender (file or console) must be enabled")
	}

	return nil
}

// DefaultCfg returns the configuration used before Initialize is called: console only, info level.
func DefaultCfg() *LogCfg {
	return &LogCfg{
		LogPath:         "./serialcomm.log",
		LogLevel:        InfoLevel,
		FileSplitMB:     50,
		CallerSkip:      1,
		ConsoleAppender: true,
	}
}
