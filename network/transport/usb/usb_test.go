package usb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubovy/serial-communication/network/transport"
	"github.com/kubovy/serial-communication/plugin"
)

type otherDescriptor struct{}

func (otherDescriptor) String() string { return "other" }

func TestCanConnect(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)

	assert.NoError(t, p.CanConnect(Descriptor{PortName: "/dev/ttyACM0"}))
	assert.ErrorIs(t, p.CanConnect(Descriptor{}), transport.ErrInvalidDescriptor)
	assert.ErrorIs(t, p.CanConnect(Descriptor{PortName: "x", BaudRate: -1}), transport.ErrInvalidDescriptor)
	assert.ErrorIs(t, p.CanConnect(otherDescriptor{}), transport.ErrInvalidDescriptor)
}

func TestClosedPort(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)

	assert.Equal(t, transport.ChannelUSB, p.Channel())
	assert.Nil(t, p.Descriptor())
	assert.NoError(t, p.Close())
	assert.ErrorIs(t, p.Send([]byte{0x00}), transport.ErrNotConnected)
	_, err = p.Next()
	assert.ErrorIs(t, err, transport.ErrNotConnected)
}

func TestPluginSetup(t *testing.T) {
	m := plugin.NewManager()
	m.RegisterFactory(NewFactory())

	err := m.SetupPlugins(map[string]any{
		"transport": map[string]any{
			"usb": map[string]any{
				"port":        "/dev/ttyUSB3",
				"readTimeout": "50ms",
			},
		},
	})
	require.NoError(t, err)
	defer m.DestroyPlugins()

	p, err := plugin.Get[transport.Configured](m, plugin.Transport, "usb")
	require.NoError(t, err)
	assert.Equal(t, "usb", p.FactoryName())
	assert.Equal(t, Descriptor{PortName: "/dev/ttyUSB3", BaudRate: DefaultBaudRate}, p.Descriptor())

	up := p.(*Port)
	assert.Equal(t, 50*time.Millisecond, up.cfg.ReadTimeout)
	assert.Equal(t, DefaultQueueSize, up.cfg.QueueSize)
}
