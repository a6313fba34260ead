// Package usb carries frames over a USB serial port (115200 8N1 by default), wrapping each
// frame in the transport packet format.
package usb

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/kubovy/serial-communication/log"
	"github.com/kubovy/serial-communication/network/transport"
	"github.com/kubovy/serial-communication/utils/pool"
)

const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 100 * time.Millisecond
	DefaultQueueSize   = 64
)

var _readBufs = pool.NewBufferPool("usb_read", transport.ChannelUSB.MaxPacketSize())

// Descriptor names a serial port, e.g. /dev/ttyACM0 or COM3.
type Descriptor struct {
	PortName string
	BaudRate int
}

func (d Descriptor) String() string {
	return d.PortName
}

// Config is the usb transport plugin configuration.
type Config struct {
	Tag         string        `mapstructure:"tag"`
	PortName    string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baudRate"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
	QueueSize   int           `mapstructure:"queueSize"`
}

func (c *Config) setDefaults() {
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.QueueSize == 0 {
		c.QueueSize = DefaultQueueSize
	}
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	if c.BaudRate < 0 {
		return errors.New("baudRate must be positive")
	}
	if c.ReadTimeout < 0 {
		return errors.New("readTimeout must not be negative")
	}
	if c.QueueSize < 0 {
		return errors.New("queueSize must be positive")
	}
	return nil
}

// Port is a transport.Port over a serial device.
type Port struct {
	cfg *Config

	mu     sync.Mutex
	port   serial.Port
	reader *transport.StreamReader
}

var _ transport.Configured = (*Port)(nil)

// New creates a closed port. A nil cfg uses the defaults and no preconfigured device.
func New(cfg *Config) (*Port, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid usb config: %w", err)
	}
	return &Port{cfg: cfg}, nil
}

func (p *Port) FactoryName() string {
	return _factoryName
}

// Descriptor is the configured device, nil when the configuration names none.
func (p *Port) Descriptor() transport.Descriptor {
	if p.cfg.PortName == "" {
		return nil
	}
	return Descriptor{PortName: p.cfg.PortName, BaudRate: p.cfg.BaudRate}
}

func (p *Port) Channel() transport.Channel {
	return transport.ChannelUSB
}

func (p *Port) CanConnect(desc transport.Descriptor) error {
	d, ok := desc.(Descriptor)
	if !ok {
		return transport.InvalidDescriptor(desc, "not a usb descriptor")
	}
	if d.PortName == "" {
		return transport.InvalidDescriptor(desc, "empty port name")
	}
	if d.BaudRate < 0 {
		return transport.InvalidDescriptor(desc, "negative baud rate")
	}
	return nil
}

func (p *Port) Open(desc transport.Descriptor) error {
	if err := p.CanConnect(desc); err != nil {
		return err
	}
	d := desc.(Descriptor)
	if d.BaudRate == 0 {
		d.BaudRate = p.cfg.BaudRate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.port != nil {
		return nil
	}

	sp, err := serial.Open(d.PortName, &serial.Mode{
		BaudRate: d.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", d.PortName, err)
	}
	if err := sp.SetReadTimeout(p.cfg.ReadTimeout); err != nil {
		_ = sp.Close()
		return fmt.Errorf("set read timeout on %s: %w", d.PortName, err)
	}

	p.port = sp
	p.reader = transport.NewStreamReader(transport.ChannelUSB, sp, _readBufs, p.cfg.QueueSize)
	log.Info().Str("port", d.PortName).Int("baud", d.BaudRate).Msg("usb port opened")
	return nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	sp, reader := p.port, p.reader
	p.port, p.reader = nil, nil
	p.mu.Unlock()

	if sp == nil {
		return nil
	}
	err := sp.Close()
	reader.Stop()
	log.Info().Msg("usb port closed")
	return err
}

func (p *Port) Next() ([]byte, error) {
	p.mu.Lock()
	reader := p.reader
	p.mu.Unlock()
	if reader == nil {
		return nil, transport.ErrNotConnected
	}
	return reader.Next()
}

func (p *Port) Send(frame []byte) error {
	p.mu.Lock()
	sp := p.port
	p.mu.Unlock()
	if sp == nil {
		return transport.ErrNotConnected
	}
	if len(frame) > transport.ChannelUSB.MaxPacketSize() {
		return fmt.Errorf("usb: frame of %d bytes exceeds packet size", len(frame))
	}
	_, err := sp.Write(transport.Wrap(frame))
	return err
}

// ListPorts returns the serial ports present on this machine.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
