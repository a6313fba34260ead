package transport

import (
	"github.com/kubovy/serial-communication/log"
	"github.com/kubovy/serial-communication/metrics"
)

// Stream links (USB serial, TCP bridges) carry each application frame in a packet
//
//	0xAA | LEN_H | LEN_L | DATA... | CHK
//
// where CHK is the two's complement of LEN_H + LEN_L + sum(DATA), truncated to a byte.

// WrapperSync starts every wrapped packet.
const WrapperSync = 0xAA

// Wrap adds the packet header and trailer to data.
func Wrap(data []byte) []byte {
	n := len(data)
	out := make([]byte, 0, n+4)
	out = append(out, WrapperSync, byte(n>>8), byte(n))
	out = append(out, data...)
	return append(out, wrapperChecksum(byte(n>>8), byte(n), data))
}

func wrapperChecksum(lenHigh, lenLow byte, data []byte) byte {
	sum := int(lenHigh) + int(lenLow)
	for _, b := range data {
		sum += int(b)
	}
	return byte((0xFF - sum + 1) & 0xFF)
}

type unwrapState int

const (
	stateIdle unwrapState = iota
	stateLengthHigh
	stateLengthLow
	stateData
)

// Unwrapper reassembles packets from a byte stream. Bytes outside a packet are skipped
// until the next sync byte; packets that are too long or fail the checksum are dropped.
// It is not safe for concurrent use.
type Unwrapper struct {
	channel Channel
	maxSize int
	state   unwrapState
	length  int
	buf     []byte
}

// NewUnwrapper creates an unwrapper accepting packets up to the channel's max packet size.
func NewUnwrapper(channel Channel) *Unwrapper {
	return &Unwrapper{
		channel: channel,
		maxSize: channel.MaxPacketSize(),
		buf:     make([]byte, 0, channel.MaxPacketSize()),
	}
}

// Feed consumes a chunk of the stream and returns every packet it completed.
func (u *Unwrapper) Feed(chunk []byte) [][]byte {
	var packets [][]byte
	for _, b := range chunk {
		switch u.state {
		case stateIdle:
			if b == WrapperSync {
				u.state = stateLengthHigh
			}
		case stateLengthHigh:
			u.length = int(b) << 8
			u.state = stateLengthLow
		case stateLengthLow:
			u.length += int(b)
			if u.length > u.maxSize {
				u.resync("oversized packet")
				continue
			}
			u.buf = u.buf[:0]
			u.state = stateData
		case stateData:
			if len(u.buf) < u.length {
				u.buf = append(u.buf, b)
				continue
			}
			if b == wrapperChecksum(byte(u.length>>8), byte(u.length), u.buf) {
				packets = append(packets, append([]byte(nil), u.buf...))
				u.state = stateIdle
			} else {
				u.resync("wrong packet checksum")
			}
		}
	}
	return packets
}

func (u *Unwrapper) resync(reason string) {
	log.Warn().Stringer("channel", u.channel).Int("length", u.length).Msg(reason)
	metrics.IncrCounterWithDimGroup(metrics.NameWrapperResyncTotal, metrics.GroupTransport, 1, metrics.Dimension{
		metrics.DimChannel: u.channel.String(),
		metrics.DimReason:  reason,
	})
	u.state = stateIdle
}
