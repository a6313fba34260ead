// Package codec frames application messages as [checksum][tag][payload...] and validates
// frames read back from a transport.
//
// The checksum is the sum of every byte after the checksum byte, modulo 256. A frame whose
// first byte does not match is invalid and is dropped by the receiver without an
// acknowledgment, so the sender's retry timer takes care of it.
package codec

import (
	"errors"

	"github.com/kubovy/serial-communication/network/message"
)

// ErrEmptyFrame is returned by Parse for input without a single byte.
var ErrEmptyFrame = errors.New("codec: empty frame")

// Checksum returns the sum of all bytes modulo 256. An empty slice yields 0.
func Checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}

// Encode builds a frame for the given tag and payload.
func Encode(tag byte, payload []byte) []byte {
	frame := make([]byte, 2, len(payload)+2)
	frame[1] = tag
	frame = append(frame, payload...)
	frame[0] = Checksum(frame[1:])
	return frame
}

// Seal prepends the checksum to a message body that already starts with its tag.
func Seal(body []byte) []byte {
	frame := make([]byte, 0, len(body)+1)
	frame = append(frame, Checksum(body))
	return append(frame, body...)
}

// Frame is a parsed frame. Payload and Raw share memory with the slice given to Parse.
type Frame struct {
	// Raw is the whole frame including the checksum byte.
	Raw []byte

	// Checksum is the checksum byte as received.
	Checksum byte

	// Tag is the message tag, 0 for a one-byte frame.
	Tag byte

	Payload []byte

	// Valid reports whether Checksum matches the computed checksum of the rest of the frame.
	Valid bool
}

// Parse splits raw into its parts and checks the checksum. It fails only for empty input;
// a checksum mismatch is reported through Frame.Valid.
func Parse(raw []byte) (*Frame, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyFrame
	}

	f := &Frame{
		Raw:      raw,
		Checksum: raw[0],
		Valid:    raw[0] == Checksum(raw[1:]),
	}
	if len(raw) > 1 {
		f.Tag = raw[1]
		f.Payload = raw[2:]
	}
	return f, nil
}

// Kind resolves the tag through the message registry. Unregistered tags yield
// message.KindUnknown.
func (f *Frame) Kind() message.Kind {
	return message.Lookup(f.Tag)
}

// Message returns the frame body, tag and payload without the checksum byte.
func (f *Frame) Message() []byte {
	return f.Raw[1:]
}

// Len is the full frame length including the checksum byte.
func (f *Frame) Len() int {
	return len(f.Raw)
}
