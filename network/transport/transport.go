// Package transport defines the contract between the communicator and the physical links
// that carry its frames, and the lower-layer packet wrapper shared by stream transports.
package transport

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNotConnected is returned by Send and Next when the port is not open.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrInvalidDescriptor is wrapped by CanConnect when a descriptor does not fit the port.
	ErrInvalidDescriptor = errors.New("transport: invalid descriptor")
)

// Descriptor identifies the device a port connects to. Use SameDescriptor to compare two
// descriptors; implementations need not be comparable.
type Descriptor interface {
	fmt.Stringer
}

// Port is one physical link. The communicator calls Open and Close from its supervisor
// goroutine, Next from the inbound goroutine and Send from the outbound goroutine.
type Port interface {
	// Channel tells which kind of link this is.
	Channel() Channel

	// CanConnect validates desc for this port without touching the device.
	CanConnect(desc Descriptor) error

	// Open establishes the link.
	Open(desc Descriptor) error

	// Close releases the link. It is safe to call on a closed port and unblocks a
	// pending Next.
	Close() error

	// Next returns the next complete application frame with any lower-layer wrapping
	// removed. It returns nil, nil when nothing is available right now.
	Next() ([]byte, error)

	// Send writes one application frame, adding lower-layer wrapping if the link needs it.
	Send(frame []byte) error
}

// Configured is a port set up from configuration. It knows the device it should open.
type Configured interface {
	Port
	FactoryName() string
	Descriptor() Descriptor
}

// InvalidDescriptor wraps ErrInvalidDescriptor with a reason.
func InvalidDescriptor(desc Descriptor, reason string) error {
	return fmt.Errorf("%w %q: %s", ErrInvalidDescriptor, desc, reason)
}

// SameDescriptor reports whether a and b name the same device. Descriptors of a comparable
// type are compared by value, others by their String form.
func SameDescriptor(a, b Descriptor) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return a.String() == b.String()
}
