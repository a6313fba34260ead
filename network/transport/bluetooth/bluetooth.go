// Package bluetooth carries frames over an RFCOMM serial port profile link. Every read
// returns one application frame, so no packet wrapping is applied.
package bluetooth

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/kubovy/serial-communication/log"
	"github.com/kubovy/serial-communication/network/transport"
	"github.com/kubovy/serial-communication/utils/pool"
)

const (
	DefaultChannel     = 1
	DefaultReadTimeout = 100 * time.Millisecond

	readBufferSize = 256
)

var (
	// ErrUnsupported is returned by Open on platforms without RFCOMM sockets.
	ErrUnsupported = errors.New("bluetooth: rfcomm not supported on this platform")

	_addressPattern = regexp.MustCompile(`^[0-9A-Fa-f]{2}(:[0-9A-Fa-f]{2}){5}$`)
	_readBufs       = pool.NewBufferPool("bluetooth_read", readBufferSize)
)

// Descriptor is a remote device address and RFCOMM channel.
type Descriptor struct {
	Address string
	Channel int
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s[%d]", d.Address, d.Channel)
}

// ValidAddress reports whether addr looks like 00:11:22:AA:BB:CC.
func ValidAddress(addr string) bool {
	return _addressPattern.MatchString(addr)
}

// Config is the bluetooth transport plugin configuration.
type Config struct {
	Tag         string        `mapstructure:"tag"`
	Address     string        `mapstructure:"address"`
	Channel     int           `mapstructure:"channel"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

func (c *Config) setDefaults() {
	if c.Channel == 0 {
		c.Channel = DefaultChannel
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
}

func (c *Config) Validate() error {
	if c.Address != "" && !ValidAddress(c.Address) {
		return fmt.Errorf("address %q is not a bluetooth address", c.Address)
	}
	if c.Channel < 1 || c.Channel > 30 {
		return fmt.Errorf("channel %d out of range 1-30", c.Channel)
	}
	if c.ReadTimeout < 0 {
		return errors.New("readTimeout must not be negative")
	}
	return nil
}

// Port is a transport.Port over an RFCOMM socket.
type Port struct {
	cfg *Config

	mu   sync.Mutex
	conn *os.File
}

var _ transport.Configured = (*Port)(nil)

// New creates a closed port. A nil cfg uses the defaults and no preconfigured device.
func New(cfg *Config) (*Port, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bluetooth config: %w", err)
	}
	return &Port{cfg: cfg}, nil
}

func (p *Port) FactoryName() string {
	return _factoryName
}

func (p *Port) Descriptor() transport.Descriptor {
	if p.cfg.Address == "" {
		return nil
	}
	return Descriptor{Address: p.cfg.Address, Channel: p.cfg.Channel}
}

func (p *Port) Channel() transport.Channel {
	return transport.ChannelBluetooth
}

func (p *Port) CanConnect(desc transport.Descriptor) error {
	d, ok := desc.(Descriptor)
	if !ok {
		return transport.InvalidDescriptor(desc, "not a bluetooth descriptor")
	}
	if !ValidAddress(d.Address) {
		return transport.InvalidDescriptor(desc, "malformed address")
	}
	if d.Channel < 1 || d.Channel > 30 {
		return transport.InvalidDescriptor(desc, "channel out of range 1-30")
	}
	return nil
}

func (p *Port) Open(desc transport.Descriptor) error {
	if err := p.CanConnect(desc); err != nil {
		return err
	}
	d := desc.(Descriptor)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return nil
	}

	conn, err := dial(d)
	if err != nil {
		return fmt.Errorf("connect %s: %w", d, err)
	}
	p.conn = conn
	log.Info().Stringer("device", d).Msg("bluetooth link opened")
	return nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()

	if conn == nil {
		return nil
	}
	log.Info().Msg("bluetooth link closed")
	return conn.Close()
}

func (p *Port) Next() ([]byte, error) {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return nil, transport.ErrNotConnected
	}

	if err := conn.SetReadDeadline(time.Now().Add(p.cfg.ReadTimeout)); err != nil {
		return nil, err
	}

	bp := _readBufs.Get()
	defer _readBufs.Put(bp)
	n, err := conn.Read(*bp)
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return nil, nil
	case errors.Is(err, io.EOF):
		return nil, io.ErrUnexpectedEOF
	case err != nil:
		return nil, err
	case n == 0:
		return nil, nil
	}
	return append([]byte(nil), (*bp)[:n]...), nil
}

func (p *Port) Send(frame []byte) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return transport.ErrNotConnected
	}
	_, err := conn.Write(frame)
	return err
}
