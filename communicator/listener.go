package communicator

import (
	"github.com/kubovy/serial-communication/network/transport"
)

// Event topics published by a Communicator. Payloads are the *Event types below.
const (
	TopicConnecting          = "connecting"
	TopicConnected           = "connected"
	TopicConnectionReady     = "connection-ready"
	TopicDisconnected        = "disconnected"
	TopicMessageReceived     = "message-received"
	TopicMessagePrepare      = "message-prepare"
	TopicMessageSent         = "message-sent"
	TopicCapabilitiesChanged = "capabilities-changed"
	TopicNameChanged         = "name-changed"
)

var _topics = []string{
	TopicConnecting,
	TopicConnected,
	TopicConnectionReady,
	TopicDisconnected,
	TopicMessageReceived,
	TopicMessagePrepare,
	TopicMessageSent,
	TopicCapabilitiesChanged,
	TopicNameChanged,
}

// StateEvent is the payload of the connection lifecycle topics and message-prepare.
type StateEvent struct {
	Channel transport.Channel
}

// MessageEvent is the payload of message-received and message-sent. Frame includes the
// checksum byte. Remaining is the message queue length after a confirmed send.
type MessageEvent struct {
	Channel   transport.Channel
	Frame     []byte
	Remaining int
}

// CapabilitiesEvent is the payload of capabilities-changed.
type CapabilitiesEvent struct {
	Channel      transport.Channel
	Capabilities Capabilities
}

// NameEvent is the payload of name-changed.
type NameEvent struct {
	Channel transport.Channel
	Name    string
}

// Listener receives communicator events. Callbacks run synchronously on the goroutine
// that detected the event and must not block.
type Listener interface {
	OnConnecting(ch transport.Channel)
	OnConnect(ch transport.Channel)
	OnConnectionReady(ch transport.Channel)
	OnDisconnect(ch transport.Channel)
	OnMessageReceived(ch transport.Channel, frame []byte)
	OnMessagePrepare(ch transport.Channel)
	OnMessageSent(ch transport.Channel, frame []byte, remaining int)
	OnDeviceCapabilitiesChanged(ch transport.Channel, caps Capabilities)
	OnDeviceNameChanged(ch transport.Channel, name string)
}

// BaseListener implements Listener with no-ops. Embed it and override what you need.
type BaseListener struct{}

func (BaseListener) OnConnecting(transport.Channel)                              {}
func (BaseListener) OnConnect(transport.Channel)                                 {}
func (BaseListener) OnConnectionReady(transport.Channel)                         {}
func (BaseListener) OnDisconnect(transport.Channel)                              {}
func (BaseListener) OnMessageReceived(transport.Channel, []byte)                 {}
func (BaseListener) OnMessagePrepare(transport.Channel)                          {}
func (BaseListener) OnMessageSent(transport.Channel, []byte, int)                {}
func (BaseListener) OnDeviceCapabilitiesChanged(transport.Channel, Capabilities) {}
func (BaseListener) OnDeviceNameChanged(transport.Channel, string)               {}

// listenerSubscribers maps each topic to the Listener method it drives.
func listenerSubscribers(l Listener) map[string]func(any) {
	return map[string]func(any){
		TopicConnecting:      func(p any) { l.OnConnecting(p.(*StateEvent).Channel) },
		TopicConnected:       func(p any) { l.OnConnect(p.(*StateEvent).Channel) },
		TopicConnectionReady: func(p any) { l.OnConnectionReady(p.(*StateEvent).Channel) },
		TopicDisconnected:    func(p any) { l.OnDisconnect(p.(*StateEvent).Channel) },
		TopicMessagePrepare:  func(p any) { l.OnMessagePrepare(p.(*StateEvent).Channel) },
		TopicMessageReceived: func(p any) {
			e := p.(*MessageEvent)
			l.OnMessageReceived(e.Channel, e.Frame)
		},
		TopicMessageSent: func(p any) {
			e := p.(*MessageEvent)
			l.OnMessageSent(e.Channel, e.Frame, e.Remaining)
		},
		TopicCapabilitiesChanged: func(p any) {
			e := p.(*CapabilitiesEvent)
			l.OnDeviceCapabilitiesChanged(e.Channel, e.Capabilities)
		},
		TopicNameChanged: func(p any) {
			e := p.(*NameEvent)
			l.OnDeviceNameChanged(e.Channel, e.Name)
		},
	}
}
