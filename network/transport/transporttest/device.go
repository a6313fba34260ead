package transporttest

import (
	"github.com/kubovy/serial-communication/network/codec"
	"github.com/kubovy/serial-communication/network/message"
)

// AutoAck acknowledges every valid non-ack frame, like a healthy device.
func AutoAck() Responder {
	return func(p *FakePort, frame []byte) {
		f, err := codec.Parse(frame)
		if err != nil || !f.Valid || f.Kind() == message.KindAck {
			return
		}
		p.DeliverMessage(message.KindAck, f.Checksum)
	}
}

// Device acknowledges every frame and answers identification requests with the given
// capability bits and name.
func Device(capabilities uint16, name string) Responder {
	ack := AutoAck()
	return func(p *FakePort, frame []byte) {
		ack(p, frame)

		f, err := codec.Parse(frame)
		if err != nil || !f.Valid || f.Kind() != message.KindIDD || len(f.Payload) != 2 {
			return
		}
		switch f.Payload[1] {
		case 0:
			p.DeliverMessage(message.KindIDD, CapabilitiesResponse(capabilities)...)
		case 1:
			p.DeliverMessage(message.KindIDD, NameResponse(name)...)
		}
	}
}

// CapabilitiesResponse is the IDD payload announcing capability bits.
func CapabilitiesResponse(capabilities uint16) []byte {
	return []byte{0x00, 0x00, byte(capabilities), byte(capabilities >> 8)}
}

// NameResponse is the IDD payload announcing the device name.
func NameResponse(name string) []byte {
	return append([]byte{0x00, 0x01}, name...)
}

// Chain runs several responders in order.
func Chain(rs ...Responder) Responder {
	return func(p *FakePort, frame []byte) {
		for _, r := range rs {
			r(p, frame)
		}
	}
}
