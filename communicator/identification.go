package communicator

import (
	"strings"
)

// Identification states. The device is asked for its capabilities, then for its name;
// any higher value means identification is settled.
const (
	iddStateCapabilities = 0
	iddStateName         = 1
	iddStateSettled      = 2
)

// Capability is one bit of the capability word a device announces.
type Capability uint16

const (
	CapBluetooth     Capability = 1 << 0
	CapUSB           Capability = 1 << 1
	CapTemp          Capability = 1 << 2
	CapLCD           Capability = 1 << 3
	CapRegistry      Capability = 1 << 4
	CapMotionSensor  Capability = 1 << 5
	CapRgbStrip      Capability = 1 << 8
	CapRgbIndicators Capability = 1 << 9
	CapRgbLight      Capability = 1 << 10
)

var _capabilityNames = []struct {
	c    Capability
	name string
}{
	{CapBluetooth, "bluetooth"},
	{CapUSB, "usb"},
	{CapTemp, "temp"},
	{CapLCD, "lcd"},
	{CapRegistry, "registry"},
	{CapMotionSensor, "motionSensor"},
	{CapRgbStrip, "rgbStrip"},
	{CapRgbIndicators, "rgbIndicators"},
	{CapRgbLight, "rgbLight"},
}

// Capabilities is the capability word of a device. The zero value has no capabilities.
type Capabilities uint16

// Has reports whether every bit of c is set.
func (cs Capabilities) Has(c Capability) bool {
	return uint16(cs)&uint16(c) == uint16(c)
}

// String lists the known capabilities, e.g. "usb|temp|lcd".
func (cs Capabilities) String() string {
	var names []string
	for _, n := range _capabilityNames {
		if cs.Has(n.c) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// decodeCapabilities reads the capability word from an identification frame
// [chk, IDD, reserved, state, lo, hi]. Any other length yields no capabilities.
func decodeCapabilities(frame []byte) Capabilities {
	if len(frame) != 6 {
		return 0
	}
	return Capabilities(uint16(frame[4]) | uint16(frame[5])<<8)
}

// decodeName reads the device name from an identification frame
// [chk, IDD, reserved, state, name...]. Invalid UTF-8 is replaced, not rejected.
func decodeName(frame []byte) string {
	if len(frame) <= 4 {
		return ""
	}
	return strings.ToValidUTF8(string(frame[4:]), "\uFFFD")
}
