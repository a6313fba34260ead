package log

import (
	"bytes"
	"fmt"
	"time"
)

// LogEvent accumulates the fields of one JSON log line.
type LogEvent struct {
	buf    *bytes.Buffer
	logger Logger
	level  Level
}

func newEvent(l Logger) *LogEvent {
	e := &LogEvent{
		buf:    &bytes.Buffer{},
		logger: l,
		level:  DebugLevel,
	}
	e.buf.Grow(512)
	return e
}

func (e *LogEvent) reset(level Level) {
	e.buf.Reset()
	e.level = level
	AppendBeginMarker(e.buf)
}

// Time writes t as "2006-01-02 15:04:05.000".
func (e *LogEvent) Time(k string, t time.Time) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	e.buf.WriteByte('"')
	e.buf.Write(t.AppendFormat(make([]byte, 0, 23), "2006-01-02 15:04:05.000"))
	e.buf.WriteByte('"')
	return e
}

func (e *LogEvent) Str(k, v string) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendString(e.buf, v)
	return e
}

func (e *LogEvent) Strs(k string, v []string) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendStrings(e.buf, v)
	return e
}

func (e *LogEvent) Stringer(k string, v fmt.Stringer) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendStringer(e.buf, v)
	return e
}

func (e *LogEvent) Int(k string, v int) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendInt(e.buf, int64(v))
	return e
}

func (e *LogEvent) Int64(k string, v int64) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendInt(e.buf, v)
	return e
}

func (e *LogEvent) Uint8(k string, v uint8) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendUint(e.buf, uint64(v))
	return e
}

func (e *LogEvent) Uint64(k string, v uint64) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendUint(e.buf, v)
	return e
}

func (e *LogEvent) Float64(k string, v float64) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendFloat64(e.buf, v)
	return e
}

// Hex writes b as a lower-case hex string, the usual way frames show up in the log.
func (e *LogEvent) Hex(k string, b []byte) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendHex(e.buf, b)
	return e
}

func (e *LogEvent) Bool(k string, v bool) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendBool(e.buf, v)
	return e
}

// Dur writes d in milliseconds.
func (e *LogEvent) Dur(k string, d time.Duration) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendFloat64(e.buf, float64(d)/float64(time.Millisecond))
	return e
}

func (e *LogEvent) Err(err error) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, "error")
	if err == nil {
		AppendNil(e.buf)
	} else {
		AppendString(e.buf, err.Error())
	}
	return e
}

// Any marshals v with encoding/json.
func (e *LogEvent) Any(k string, v any) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendInterface(e.buf, v)
	return e
}

// Msg adds the message field and writes the event.
func (e *LogEvent) Msg(msg string) {
	if e == nil {
		return
	}
	if msg != "" {
		AppendKey(e.buf, "msg")
		AppendString(e.buf, msg)
	}
	e.End()
}

// Msgf is Msg with fmt.Sprintf formatting.
func (e *LogEvent) Msgf(format string, args ...any) {
	if e == nil {
		return
	}
	e.Msg(fmt.Sprintf(format, args...))
}

// End writes the event without a message.
func (e *LogEvent) End() {
	if e == nil {
		return
	}
	AppendEndMarker(e.buf)
	AppendLineBreak(e.buf)
	e.logger.OnEventEnd(e)
}
