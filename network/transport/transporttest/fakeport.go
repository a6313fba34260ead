// Package transporttest provides an in-memory transport.Port that plays the device side
// of the protocol for tests.
package transporttest

import (
	"errors"
	"sync"
	"time"

	"github.com/kubovy/serial-communication/network/codec"
	"github.com/kubovy/serial-communication/network/message"
	"github.com/kubovy/serial-communication/network/transport"
)

// Descriptor is the descriptor accepted by FakePort. Names starting with "bad" are rejected.
type Descriptor struct {
	Name string
}

func (d Descriptor) String() string {
	return d.Name
}

// Responder is called with every frame the communicator sends. It runs on the sending
// goroutine and may call Deliver.
type Responder func(p *FakePort, frame []byte)

// FakePort records sent frames and serves delivered frames from Next.
type FakePort struct {
	mu        sync.Mutex
	channel   transport.Channel
	open      bool
	opens     int
	closes    int
	openErr   []error
	sendErr   error
	sent      [][]byte
	sentAt    []time.Time
	responder Responder

	inbox       chan []byte
	readTimeout time.Duration
}

// New creates a closed fake USB port.
func New() *FakePort {
	return &FakePort{
		channel:     transport.ChannelUSB,
		inbox:       make(chan []byte, 1024),
		readTimeout: 5 * time.Millisecond,
	}
}

// SetResponder installs the device behaviour.
func (p *FakePort) SetResponder(r Responder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responder = r
}

// FailOpen makes the next Open calls return the given errors, one per call.
func (p *FakePort) FailOpen(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openErr = append(p.openErr, errs...)
}

// FailSend makes every Send return err until called again with nil.
func (p *FakePort) FailSend(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendErr = err
}

func (p *FakePort) Channel() transport.Channel {
	return p.channel
}

func (p *FakePort) CanConnect(desc transport.Descriptor) error {
	d, ok := desc.(Descriptor)
	if !ok {
		return transport.InvalidDescriptor(desc, "not a fake descriptor")
	}
	if len(d.Name) >= 3 && d.Name[:3] == "bad" {
		return transport.InvalidDescriptor(desc, "rejected by fake")
	}
	return nil
}

func (p *FakePort) Open(transport.Descriptor) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++
	if len(p.openErr) > 0 {
		err := p.openErr[0]
		p.openErr = p.openErr[1:]
		if err != nil {
			return err
		}
	}
	p.open = true
	return nil
}

func (p *FakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		p.closes++
	}
	p.open = false
	return nil
}

func (p *FakePort) Next() ([]byte, error) {
	p.mu.Lock()
	open := p.open
	p.mu.Unlock()
	if !open {
		return nil, transport.ErrNotConnected
	}

	select {
	case frame := <-p.inbox:
		return frame, nil
	case <-time.After(p.readTimeout):
		return nil, nil
	}
}

func (p *FakePort) Send(frame []byte) error {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return transport.ErrNotConnected
	}
	if p.sendErr != nil {
		err := p.sendErr
		p.mu.Unlock()
		return err
	}
	cp := append([]byte(nil), frame...)
	p.sent = append(p.sent, cp)
	p.sentAt = append(p.sentAt, time.Now())
	responder := p.responder
	p.mu.Unlock()

	if responder != nil {
		responder(p, cp)
	}
	return nil
}

// Deliver queues a raw frame for Next.
func (p *FakePort) Deliver(frame []byte) {
	p.inbox <- append([]byte(nil), frame...)
}

// DeliverMessage frames tag and payload and queues the result.
func (p *FakePort) DeliverMessage(kind message.Kind, payload ...byte) {
	p.Deliver(codec.Encode(kind.Tag(), payload))
}

// Sent returns a copy of every frame written so far.
func (p *FakePort) Sent() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.sent...)
}

// SentTimes returns when each frame of Sent was written.
func (p *FakePort) SentTimes() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Time(nil), p.sentAt...)
}

// SentOfKind returns the sent frames with the given tag.
func (p *FakePort) SentOfKind(kind message.Kind) [][]byte {
	var out [][]byte
	for _, f := range p.Sent() {
		if len(f) > 1 && f[1] == kind.Tag() {
			out = append(out, f)
		}
	}
	return out
}

// ResetSent forgets the frames sent so far.
func (p *FakePort) ResetSent() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = nil
	p.sentAt = nil
}

// IsOpen reports whether the port is open.
func (p *FakePort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Opens returns how many times Open was called.
func (p *FakePort) Opens() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens
}

// Closes returns how many times an open port was closed.
func (p *FakePort) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

// ErrInjected is a ready-made error for FailOpen and FailSend.
var ErrInjected = errors.New("transporttest: injected failure")
