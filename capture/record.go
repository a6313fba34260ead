// Package capture stores frames seen on a link as length-delimited protobuf-wire records
// so a session can be replayed or inspected offline.
package capture

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/kubovy/serial-communication/network/message"
	"github.com/kubovy/serial-communication/network/transport"
)

// Direction tells whether a frame was read from or written to the device.
type Direction uint8

const (
	DirectionReceived Direction = iota + 1
	DirectionSent
)

func (d Direction) String() string {
	switch d {
	case DirectionReceived:
		return "RX"
	case DirectionSent:
		return "TX"
	default:
		return "??"
	}
}

// Record field numbers.
const (
	fieldTime      protowire.Number = 1
	fieldDirection protowire.Number = 2
	fieldChannel   protowire.Number = 3
	fieldKind      protowire.Number = 4
	fieldFrame     protowire.Number = 5
)

var ErrMalformedRecord = errors.New("capture: malformed record")

// Record is one captured frame. Frame includes the checksum byte.
type Record struct {
	Time      time.Time
	Direction Direction
	Channel   transport.Channel
	Kind      message.Kind
	Frame     []byte
}

func (r *Record) marshal(b []byte) []byte {
	b = protowire.AppendTag(b, fieldTime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Time.UnixNano()))
	b = protowire.AppendTag(b, fieldDirection, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Direction))
	b = protowire.AppendTag(b, fieldChannel, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Channel))
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Kind))
	b = protowire.AppendTag(b, fieldFrame, protowire.BytesType)
	return protowire.AppendBytes(b, r.Frame)
}

// unmarshal fills r from b. Unknown fields are skipped.
func (r *Record) unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedRecord, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldFrame && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("%w: frame: %v", ErrMalformedRecord, protowire.ParseError(n))
			}
			r.Frame = append([]byte(nil), v...)
			b = b[n:]
		case typ == protowire.VarintType && num >= fieldTime && num <= fieldKind:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrMalformedRecord, num, protowire.ParseError(n))
			}
			r.setVarint(num, v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrMalformedRecord, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

func (r *Record) setVarint(num protowire.Number, v uint64) {
	switch num {
	case fieldTime:
		r.Time = time.Unix(0, int64(v))
	case fieldDirection:
		r.Direction = Direction(v)
	case fieldChannel:
		r.Channel = transport.Channel(v)
	case fieldKind:
		r.Kind = message.Kind(v)
	}
}
