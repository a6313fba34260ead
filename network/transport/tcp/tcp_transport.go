// Package tcp reaches a device through a serial-to-TCP bridge (ser2net, an ESP-Link, a
// device simulator). Frames are wrapped exactly as on a USB serial line.
package tcp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/kubovy/serial-communication/log"
	"github.com/kubovy/serial-communication/metrics"
	"github.com/kubovy/serial-communication/network/transport"
	"github.com/kubovy/serial-communication/utils/pool"
)

var _readBufs = pool.NewBufferPool("tcp_read", transport.ChannelTCP.MaxPacketSize())

// Descriptor is the bridge address, host:port.
type Descriptor struct {
	Addr string
}

func (d Descriptor) String() string {
	return d.Addr
}

// TCPTransportCfg holds all configuration parameters for the TCPTransport.
type TCPTransportCfg struct {
	Tag           string        `mapstructure:"tag"`           // A unique identifier for this transport instance.
	Addr          string        `mapstructure:"addr"`          // The bridge address, empty when the application supplies it.
	DialTimeout   time.Duration `mapstructure:"dialTimeout"`   // How long Open waits for the bridge.
	WriteTimeout  time.Duration `mapstructure:"writeTimeout"`  // Deadline of a single frame write.
	QueueSize     int           `mapstructure:"queueSize"`     // Packets buffered between the read goroutine and Next.
	MaxBufferSize int           `mapstructure:"maxBufferSize"` // Socket read and write buffer size.
}

// DefaultCfg returns the configuration used when none is given.
func DefaultCfg() *TCPTransportCfg {
	return &TCPTransportCfg{
		DialTimeout:   3 * time.Second,
		WriteTimeout:  time.Second,
		QueueSize:     64,
		MaxBufferSize: 4096,
	}
}

// Validate checks if the TCPTransportCfg parameters are valid.
func (c *TCPTransportCfg) Validate() error {
	if c.DialTimeout <= 0 {
		return errors.New("DialTimeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("WriteTimeout must be positive")
	}
	if c.QueueSize <= 0 {
		return errors.New("QueueSize must be positive")
	}
	if c.MaxBufferSize <= 0 {
		return errors.New("MaxBufferSize must be positive")
	}
	return nil
}

// TCPTransport implements transport.Port over one client connection to a bridge.
type TCPTransport struct {
	*TCPTransportCfg
	lock sync.Mutex
	conn *tcpctx
}

var _ transport.Configured = (*TCPTransport)(nil)

// NewTCPTransport creates a new, closed TCPTransport.
func NewTCPTransport(cfg *TCPTransportCfg) (*TCPTransport, error) {
	if cfg == nil {
		cfg = DefaultCfg()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid TCPTransportCfg: %w", err)
	}
	return &TCPTransport{TCPTransportCfg: cfg}, nil
}

func (t *TCPTransport) FactoryName() string {
	return _factoryName
}

func (t *TCPTransport) Descriptor() transport.Descriptor {
	if t.Addr == "" {
		return nil
	}
	return Descriptor{Addr: t.Addr}
}

func (t *TCPTransport) Channel() transport.Channel {
	return transport.ChannelTCP
}

func (t *TCPTransport) CanConnect(desc transport.Descriptor) error {
	d, ok := desc.(Descriptor)
	if !ok {
		return transport.InvalidDescriptor(desc, "not a tcp descriptor")
	}
	if _, _, err := net.SplitHostPort(d.Addr); err != nil {
		return transport.InvalidDescriptor(desc, err.Error())
	}
	return nil
}

// Open dials the bridge and starts the read goroutine.
func (t *TCPTransport) Open(desc transport.Descriptor) error {
	if err := t.CanConnect(desc); err != nil {
		return err
	}
	d := desc.(Descriptor)

	t.lock.Lock()
	defer t.lock.Unlock()
	if t.conn != nil {
		return nil
	}

	conn, err := net.DialTimeout("tcp", d.Addr, t.DialTimeout)
	if err != nil {
		return fmt.Errorf("failed to dial bridge '%s': %w", d.Addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
		if err = tc.SetReadBuffer(t.MaxBufferSize); err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to set read buffer size: %w", err)
		}
		if err = tc.SetWriteBuffer(t.MaxBufferSize); err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to set write buffer size: %w", err)
		}
	}

	t.conn = &tcpctx{
		conn:       conn,
		remoteAddr: conn.RemoteAddr(),
		reader:     transport.NewStreamReader(transport.ChannelTCP, conn, _readBufs, t.QueueSize),
		transport:  t,
	}
	log.Info().Str("remote", d.Addr).Msg("TCP bridge connected")
	return nil
}

// Close shuts the connection down. It is safe to call multiple times.
func (t *TCPTransport) Close() error {
	t.lock.Lock()
	c := t.conn
	t.conn = nil
	t.lock.Unlock()

	if c != nil {
		c.close()
	}
	return nil
}

func (t *TCPTransport) current() *tcpctx {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.conn
}

func (t *TCPTransport) Next() ([]byte, error) {
	c := t.current()
	if c == nil {
		return nil, transport.ErrNotConnected
	}
	return c.reader.Next()
}

func (t *TCPTransport) Send(frame []byte) error {
	c := t.current()
	if c == nil {
		return transport.ErrNotConnected
	}
	return c.send(frame)
}

// tcpctx is the state of one bridge connection.
type tcpctx struct {
	conn          net.Conn
	remoteAddr    net.Addr
	reader        *transport.StreamReader
	lastWriteTime time.Time
	writeLock     sync.Mutex
	closeOnce     sync.Once
	transport     *TCPTransport
}

// close closes the socket and waits for the read goroutine.
func (t *tcpctx) close() {
	t.closeOnce.Do(func() {
		log.Info().Str("remote", t.remoteAddr.String()).Msg("Closing TCP bridge connection")
		_ = t.conn.Close()
		t.reader.Stop()
	})
}

func (t *tcpctx) send(frame []byte) error {
	if len(frame) > transport.ChannelTCP.MaxPacketSize() {
		return fmt.Errorf("tcp: frame of %d bytes exceeds packet size", len(frame))
	}

	t.writeLock.Lock()
	defer t.writeLock.Unlock()

	_ = t.conn.SetWriteDeadline(time.Now().Add(t.transport.WriteTimeout))
	if _, err := t.conn.Write(transport.Wrap(frame)); err != nil {
		metrics.IncrCounterWithDimGroup(metrics.NameTransportErrorTotal, metrics.GroupTransport, 1, metrics.Dimension{
			metrics.DimChannel: transport.ChannelTCP.String(),
			metrics.DimReason:  "write",
		})
		return fmt.Errorf("failed to write frame: %w", err)
	}
	t.lastWriteTime = time.Now()
	return nil
}
