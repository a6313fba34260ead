// Package io controls the digital IO pins of a device over the IO message kind.
//
// A state request is [IO, port]; a write is [IO, port, 0x80|value]. The device answers
// both with [IO, port, value], which updates the cached pin state.
package io

import (
	"sync"

	"github.com/kubovy/serial-communication/log"
	"github.com/kubovy/serial-communication/network/codec"
	"github.com/kubovy/serial-communication/network/message"
	"github.com/kubovy/serial-communication/network/transport"
)

const (
	valueWrite = 0x80
	valueOn    = 0x01
)

// Communicator is the part of communicator.Communicator the extension needs.
type Communicator interface {
	Channel() transport.Channel
	Send(kind message.Kind, payload ...byte) error
	Handle(kind message.Kind, fn func(f *codec.Frame)) error
}

// ChangeFunc is called when a pin reports a value different from the cached one.
type ChangeFunc func(ch transport.Channel, port byte, on bool)

// Extension caches pin states reported by the device.
type Extension struct {
	comm Communicator

	mu        sync.RWMutex
	states    map[byte]bool
	listeners []ChangeFunc
}

// New attaches the extension to comm.
func New(comm Communicator) (*Extension, error) {
	e := &Extension{
		comm:   comm,
		states: make(map[byte]bool),
	}
	if err := comm.Handle(message.KindIO, e.onFrame); err != nil {
		return nil, err
	}
	return e, nil
}

// RequestState asks the device for the value of port.
func (e *Extension) RequestState(port byte) error {
	return e.comm.Send(message.KindIO, port)
}

// Set drives port high or low.
func (e *Extension) Set(port byte, on bool) error {
	value := byte(valueWrite)
	if on {
		value |= valueOn
	}
	return e.comm.Send(message.KindIO, port, value)
}

// OnChanged registers fn for pin changes.
func (e *Extension) OnChanged(fn ChangeFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// State returns the last reported value of port. known is false until the device
// reported the pin at least once.
func (e *Extension) State(port byte) (on bool, known bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	on, known = e.states[port]
	return
}

func (e *Extension) onFrame(f *codec.Frame) {
	if f.Len() != 4 {
		return
	}
	port, on := f.Raw[2], f.Raw[3] > 0

	e.mu.Lock()
	prev, known := e.states[port]
	if known && prev == on {
		e.mu.Unlock()
		return
	}
	e.states[port] = on
	listeners := append([]ChangeFunc(nil), e.listeners...)
	e.mu.Unlock()

	ch := e.comm.Channel()
	log.Debug().Stringer("channel", ch).Int("port", int(port)).Bool("on", on).Msg("io changed")
	for _, fn := range listeners {
		fn(ch, port, on)
	}
}
