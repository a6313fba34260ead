package transport

// Channel is the kind of physical link.
type Channel int

const (
	ChannelUSB Channel = iota + 1
	ChannelBluetooth
	ChannelTCP
)

func (c Channel) String() string {
	switch c {
	case ChannelUSB:
		return "USB"
	case ChannelBluetooth:
		return "BLUETOOTH"
	case ChannelTCP:
		return "TCP"
	default:
		return "UNKNOWN"
	}
}

// MaxPacketSize is the largest application frame the link carries in one packet.
func (c Channel) MaxPacketSize() int {
	switch c {
	case ChannelBluetooth:
		return 32
	default:
		return 256
	}
}
