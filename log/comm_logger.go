package log

import (
	"sync"
	"sync/atomic"
	"time"
)

// CommLogger writes JSON log lines to a set of appenders.
// Events are pooled, so a LogEvent must not be touched after Msg or End.
type CommLogger struct {
	mu                sync.RWMutex
	appenders         []LogAppender
	minLevel          atomic.Int32
	callerSkip        int
	enabledCallerInfo bool
	eventPool         sync.Pool
	callerCache       sync.Map
}

// NewLogger builds a logger and its appenders from cfg. A nil cfg uses DefaultCfg.
func NewLogger(cfg *LogCfg) *CommLogger {
	if cfg == nil {
		cfg = DefaultCfg()
	}

	logger := &CommLogger{
		callerSkip:        cfg.CallerSkip,
		enabledCallerInfo: cfg.EnabledCallerInfo,
	}
	logger.minLevel.Store(int32(cfg.LogLevel))
	logger.eventPool.New = func() any {
		return newEvent(logger)
	}

	if cfg.FileAppender {
		logger.AddAppender(NewFileAppender(cfg))
	}
	if cfg.ConsoleAppender {
		logger.AddAppender(NewConsoleAppender())
	}

	return logger
}

// SetLevel changes the minimum level at runtime.
func (x *CommLogger) SetLevel(level Level) {
	x.minLevel.Store(int32(level))
}

func (x *CommLogger) Level() Level {
	return Level(x.minLevel.Load())
}

func (x *CommLogger) AddAppender(appender LogAppender) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.appenders = append(x.appenders, appender)
}

func (x *CommLogger) Appenders() []LogAppender {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]LogAppender(nil), x.appenders...)
}

func (x *CommLogger) Refresh() {
	for _, appender := range x.Appenders() {
		_ = appender.Refresh()
	}
}

func (x *CommLogger) Close() {
	for _, appender := range x.Appenders() {
		_ = appender.Close()
	}
}

// OnEventEnd hands a finished event to every appender and returns it to the pool.
func (x *CommLogger) OnEventEnd(e *LogEvent) {
	x.mu.RLock()
	for _, appender := range x.appenders {
		_, _ = appender.Write(e.buf.Bytes())
	}
	x.mu.RUnlock()

	fatal := e.level == FatalLevel
	x.eventPool.Put(e)
	if fatal {
		panic("fatal log event")
	}
}

func (x *CommLogger) Debug() *LogEvent {
	return x.log(DebugLevel)
}

func (x *CommLogger) Info() *LogEvent {
	return x.log(InfoLevel)
}

func (x *CommLogger) Warn() *LogEvent {
	return x.log(WarnLevel)
}

func (x *CommLogger) Error() *LogEvent {
	return x.log(ErrorLevel)
}

func (x *CommLogger) Fatal() *LogEvent {
	return x.log(FatalLevel)
}

func (x *CommLogger) caller() *callerInfo {
	// lookupCaller, caller, log, Info/Debug/..., then the call site.
	pc, file, name, line, ok := lookupCaller(4 + x.callerSkip)
	if !ok {
		return _unknownCaller
	}
	if cached, found := x.callerCache.Load(pc); found {
		return cached.(*callerInfo)
	}
	file, name = shortCaller(file, name)
	c := newCallerInfo(file, name, line)
	x.callerCache.Store(pc, c)
	return c
}

func (x *CommLogger) log(level Level) *LogEvent {
	if Level(x.minLevel.Load()) > level {
		return nil
	}

	e := x.eventPool.Get().(*LogEvent)
	e.reset(level)

	t := time.Now()
	e.Time("time", t)
	e.Str("level", level.String())
	if x.enabledCallerInfo {
		e.Str("caller", x.caller().String())
	}
	return e
}
