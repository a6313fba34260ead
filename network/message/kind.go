// Package message defines the one-byte message tags spoken on the wire and a registry
// mapping each tag to its kind and default confirmation delay.
package message

import "fmt"

// Kind identifies the semantic type of a frame. Its value is the tag byte on the wire.
type Kind uint8

// Known message kinds. KindAck (0x00) confirms receipt of another frame and is
// the only kind that is never acknowledged itself.
const (
	KindAck              Kind = 0x00
	KindIDD              Kind = 0x01
	KindConsistencyCheck Kind = 0x02
	KindData             Kind = 0x03
	KindPlain            Kind = 0x0F
	KindIO               Kind = 0x10
	KindTemp             Kind = 0x11
	KindLCD              Kind = 0x12
	KindRegistry         Kind = 0x13
	KindRGB              Kind = 0x15
	KindIndicators       Kind = 0x16
	KindLight            Kind = 0x17
	KindBluetooth        Kind = 0x20
	KindSMStateAction    Kind = 0x80
	KindSMInput          Kind = 0x81
	KindDebug            Kind = 0xFE
	KindUnknown          Kind = 0xFF
)

// Tag returns the wire byte of the kind.
func (k Kind) Tag() byte {
	return byte(k)
}

// String returns the registered name, or a hex form for kinds outside the registry.
func (k Kind) String() string {
	if info, ok := Info(k); ok {
		return info.Name
	}
	return fmt.Sprintf("KIND(0x%02X)", uint8(k))
}
