// Package communicator talks to a peripheral microcontroller over a transport.Port.
//
// A Communicator owns three goroutines. The supervisor lives from the first Connect until
// Shutdown and drives the connection state machine. The inbound and outbound workers live
// for one connection each: inbound validates frames, queues acknowledgments and tracks the
// device identification; outbound sends acknowledgments first, then messages one at a time,
// retrying each until the device echoes its checksum.
package communicator

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kubovy/serial-communication/event"
	"github.com/kubovy/serial-communication/log"
	"github.com/kubovy/serial-communication/network/codec"
	"github.com/kubovy/serial-communication/network/dispatcher"
	"github.com/kubovy/serial-communication/network/message"
	"github.com/kubovy/serial-communication/network/transport"
)

var (
	// ErrCannotConnect is returned by Connect when the descriptor is rejected or the
	// communicator is already attached to it.
	ErrCannotConnect = errors.New("communicator: cannot connect")

	// ErrShutdown is returned by every call after Shutdown.
	ErrShutdown = errors.New("communicator: shut down")

	// ErrNoDescriptor is returned when a connection is needed but no device was ever named.
	ErrNoDescriptor = errors.New("communicator: no descriptor")

	// ErrFrameTooLarge is returned by Send for payloads the channel cannot carry.
	ErrFrameTooLarge = errors.New("communicator: frame too large")
)

type pendingMessage struct {
	body    []byte
	kind    message.Kind
	timeout time.Duration
}

// Option customizes a Communicator.
type Option func(*Communicator)

// WithDispatcher routes received frames through d instead of a private dispatcher.
func WithDispatcher(d *dispatcher.Dispatcher) Option {
	return func(c *Communicator) {
		c.dispatcher = d
	}
}

// Communicator is the protocol engine for one port.
type Communicator struct {
	cfg        *Config
	port       transport.Port
	channel    transport.Channel
	publisher  *event.Publisher
	dispatcher *dispatcher.Dispatcher

	// mu serializes the lifecycle: Connect, disconnects and the supervisor's open.
	mu          sync.Mutex
	desc        transport.Descriptor
	requested   bool
	onDemand    atomic.Bool
	conn        *connection
	prevConn    *connection
	shut        bool
	supervising bool
	connectSeq  uint64
	announced   bool
	wake        chan struct{}
	quit        chan struct{}
	done        chan struct{}

	state        atomic.Int32
	lastChecksum atomic.Int32
	ackWake      chan struct{}
	iddState     atomic.Int32
	iddCounter   atomic.Int32
	idlePolls    atomic.Int32

	messages queue[pendingMessage]
	acks     queue[byte]

	deviceMu     sync.RWMutex
	capabilities Capabilities
	name         string
}

// New creates a disconnected communicator for port. A nil cfg means DefaultConfig. When
// port is a transport.Configured, its descriptor is remembered for Connect(nil) and
// on-demand sends.
func New(port transport.Port, cfg *Config, opts ...Option) (*Communicator, error) {
	if port == nil {
		return nil, errors.New("communicator: nil port")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid communicator config: %w", err)
	}

	c := &Communicator{
		cfg:       cfg,
		port:      port,
		channel:   port.Channel(),
		publisher: event.NewPublisher(_topics...),
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		ackWake:   make(chan struct{}, 1),
	}
	c.lastChecksum.Store(-1)
	if configured, ok := port.(transport.Configured); ok {
		c.desc = configured.Descriptor()
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dispatcher == nil {
		d, err := dispatcher.NewDispatcher(nil)
		if err != nil {
			return nil, err
		}
		c.dispatcher = d
	}
	return c, nil
}

// Channel is the kind of link of the underlying port.
func (c *Communicator) Channel() transport.Channel {
	return c.channel
}

// State returns the current connection state.
func (c *Communicator) State() State {
	return State(c.state.Load())
}

// Descriptor returns the device the communicator connects to, nil if none was named.
func (c *Communicator) Descriptor() transport.Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desc
}

// Capabilities returns what the device announced during identification.
func (c *Communicator) Capabilities() Capabilities {
	c.deviceMu.RLock()
	defer c.deviceMu.RUnlock()
	return c.capabilities
}

// Name returns the device name announced during identification.
func (c *Communicator) Name() string {
	c.deviceMu.RLock()
	defer c.deviceMu.RUnlock()
	return c.name
}

// Dispatcher is the dispatcher received frames are routed through.
func (c *Communicator) Dispatcher() *dispatcher.Dispatcher {
	return c.dispatcher
}

// AddListener subscribes l to every event topic.
func (c *Communicator) AddListener(l Listener) error {
	subs := listenerSubscribers(l)
	for _, topic := range _topics {
		if err := c.publisher.RegisterSubscriber(topic, subs[topic]); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe adds fn to one event topic.
func (c *Communicator) Subscribe(topic string, fn event.Subscriber) error {
	return c.publisher.RegisterSubscriber(topic, fn)
}

// Handle calls fn with every valid received frame of kind.
func (c *Communicator) Handle(kind message.Kind, fn func(f *codec.Frame)) error {
	return c.dispatcher.Register(kind, dispatcher.ReceiverFunc(fn))
}

// Send queues a message of a registered kind. See SendBytes.
func (c *Communicator) Send(kind message.Kind, payload ...byte) error {
	return c.SendBytes(kind.Tag(), payload...)
}

// SendBytes queues a message for delivery. When the communicator is disconnected but
// knows its device, it connects on demand, delivers the queue and disconnects again.
func (c *Communicator) SendBytes(tag byte, payload ...byte) error {
	if len(payload)+2 > c.channel.MaxPacketSize() {
		return fmt.Errorf("%w: %d bytes on %s", ErrFrameTooLarge, len(payload)+2, c.channel)
	}

	c.mu.Lock()
	shut, desc := c.shut, c.desc
	c.mu.Unlock()
	if shut {
		return ErrShutdown
	}

	c.publish(TopicMessagePrepare, &StateEvent{Channel: c.channel})

	kind := message.Lookup(tag)
	timeout := message.Delay(kind)
	if timeout <= 0 {
		timeout = c.cfg.ConfirmationTimeout()
	}
	body := make([]byte, 0, len(payload)+1)
	body = append(body, tag)
	body = append(body, payload...)
	msg := pendingMessage{body: body, kind: kind, timeout: timeout}

	if c.State() == StateDisconnected {
		if desc == nil {
			return ErrNoDescriptor
		}
		c.onDemand.Store(true)
		err := c.connect(desc, &msg)
		if err == nil {
			return nil
		}
		c.onDemand.Store(false)
		if c.State() == StateDisconnected {
			return err
		}
	}

	c.queueDepth(queueMessage, c.messages.push(msg))
	return nil
}

// Ping queues an identification message the device has to acknowledge.
func (c *Communicator) Ping() error {
	return c.Send(message.KindIDD, randomByte())
}

func (c *Communicator) requestIdentification(state int32) {
	body := []byte{message.KindIDD.Tag(), randomByte(), byte(state)}
	n := c.messages.push(pendingMessage{body: body, kind: message.KindIDD, timeout: c.iddTimeout()})
	c.queueDepth(queueMessage, n)
}

func (c *Communicator) iddTimeout() time.Duration {
	if d := message.Delay(message.KindIDD); d > 0 {
		return d
	}
	return c.cfg.ConfirmationTimeout()
}

func (c *Communicator) publish(topic string, payload any) {
	if err := c.publisher.Publish(topic, payload); err != nil {
		log.Error().Str("topic", topic).Err(err).Msg("publish failed")
	}
}

func (c *Communicator) setDevice(caps *Capabilities, name *string) {
	c.deviceMu.Lock()
	defer c.deviceMu.Unlock()
	if caps != nil {
		c.capabilities = *caps
	}
	if name != nil {
		c.name = *name
	}
}

func randomByte() byte {
	return byte(rand.Intn(256))
}
