package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"
)

func AppendBeginMarker(buf *bytes.Buffer) {
	buf.WriteByte('{')
}

func AppendEndMarker(buf *bytes.Buffer) {
	buf.WriteByte('}')
}

func AppendLineBreak(buf *bytes.Buffer) {
	buf.WriteByte('\n')
}

// AppendKey writes `"key":`, preceded by a comma unless it opens the object.
func AppendKey(buf *bytes.Buffer, key string) {
	if buf.Len() >= 1 && buf.Bytes()[buf.Len()-1] != '{' {
		buf.WriteByte(',')
	}
	AppendString(buf, key)
	buf.WriteByte(':')
}

func AppendNil(buf *bytes.Buffer) {
	buf.WriteString("null")
}

func AppendBool(buf *bytes.Buffer, val bool) {
	buf.Write(strconv.AppendBool(buf.AvailableBuffer(), val))
}

func AppendInt(buf *bytes.Buffer, val int64) {
	buf.Write(strconv.AppendInt(buf.AvailableBuffer(), val, 10))
}

func AppendUint(buf *bytes.Buffer, val uint64) {
	buf.Write(strconv.AppendUint(buf.AvailableBuffer(), val, 10))
}

// AppendFloat64 writes NaN and infinities as strings so the line stays valid JSON.
func AppendFloat64(buf *bytes.Buffer, val float64) {
	switch {
	case math.IsNaN(val):
		buf.WriteString(`"NaN"`)
	case math.IsInf(val, 1):
		buf.WriteString(`"Inf"`)
	case math.IsInf(val, -1):
		buf.WriteString(`"-Inf"`)
	default:
		buf.Write(strconv.AppendFloat(buf.AvailableBuffer(), val, 'f', -1, 64))
	}
}

// AppendHex writes b as a quoted lower-case hex string.
func AppendHex(buf *bytes.Buffer, b []byte) {
	buf.WriteByte('"')
	for _, v := range b {
		buf.WriteByte(_hex[v>>4])
		buf.WriteByte(_hex[v&0x0F])
	}
	buf.WriteByte('"')
}

// AppendInterface marshals i to JSON. Marshal failures are written as a string value.
func AppendInterface(buf *bytes.Buffer, i any) {
	marshaled, err := json.Marshal(i)
	if err != nil {
		AppendString(buf, fmt.Sprintf("marshaling error: %v", err))
		return
	}
	buf.Write(marshaled)
}

func AppendStrings(buf *bytes.Buffer, vals []string) {
	buf.WriteByte('[')
	for i, v := range vals {
		if i > 0 {
			buf.WriteByte(',')
		}
		AppendString(buf, v)
	}
	buf.WriteByte(']')
}

func AppendStringer(buf *bytes.Buffer, val fmt.Stringer) {
	if val == nil {
		AppendString(buf, "<nil>")
		return
	}
	AppendString(buf, val.String())
}

const _hex = "0123456789abcdef"

var _noEscapeTable = [256]bool{}

func init() {
	for i := 0; i <= 0x7e; i++ {
		_noEscapeTable[i] = i >= 0x20 && i != '\\' && i != '"'
	}
}

// AppendString writes s as a JSON string. Strings without characters that need escaping
// are copied in one write.
func AppendString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if !_noEscapeTable[s[i]] {
			appendEscaped(buf, s)
			buf.WriteByte('"')
			return
		}
	}
	buf.WriteString(s)
	buf.WriteByte('"')
}

func appendEscaped(buf *bytes.Buffer, s string) {
	start := 0
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && size == 1 {
				buf.WriteString(s[start:i])
				buf.WriteString(`\ufffd`)
				start = i + 1
				continue
			}
			i += size - 1
			continue
		}
		if _noEscapeTable[b] {
			continue
		}

		buf.WriteString(s[start:i])
		switch b {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			buf.WriteString(`\u00`)
			buf.WriteByte(_hex[b>>4])
			buf.WriteByte(_hex[b&0xF])
		}
		start = i + 1
	}
	buf.WriteString(s[start:])
}
