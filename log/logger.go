package log

import "sync/atomic"

// Logger is the structured logging facade used across the module.
// A nil *LogEvent is returned when the level is filtered out, and every LogEvent method
// is safe to call on nil.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	Fatal() *LogEvent
	Appenders() []LogAppender
	AddAppender(appender LogAppender)
	OnEventEnd(e *LogEvent)
}

var _defaultLogger atomic.Pointer[CommLogger]

func init() {
	_defaultLogger.Store(NewLogger(DefaultCfg()))
}

// Initialize validates cfg and installs a logger built from it as the default logger.
// A nil cfg restores the default console configuration.
func Initialize(cfg *LogCfg) error {
	if cfg == nil {
		cfg = DefaultCfg()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	SetDefaultLogger(NewLogger(cfg))
	return nil
}

// SetDefaultLogger replaces the logger behind the package-level functions.
func SetDefaultLogger(logger *CommLogger) {
	_defaultLogger.Store(logger)
}

// Default returns the logger behind the package-level functions.
func Default() *CommLogger {
	return _defaultLogger.Load()
}

func AddAppender(appender LogAppender) {
	Default().AddAppender(appender)
}

// Refresh flushes every appender of the default logger.
func Refresh() {
	Default().Refresh()
}

// Close flushes and closes the appenders of the default logger.
func Close() {
	Default().Close()
}

func Debug() *LogEvent {
	return Default().Debug()
}

func Info() *LogEvent {
	return Default().Info()
}

func Warn() *LogEvent {
	return Default().Warn()
}

func Error() *LogEvent {
	return Default().Error()
}

func Fatal() *LogEvent {
	return Default().Fatal()
}
