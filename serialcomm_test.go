package serialcomm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubovy/serial-communication/communicator"
	"github.com/kubovy/serial-communication/config"
	"github.com/kubovy/serial-communication/network/transport"
	"github.com/kubovy/serial-communication/network/transport/tcp"
	"github.com/kubovy/serial-communication/plugin"
)

func TestNew(t *testing.T) {
	app, err := New(nil)
	require.NoError(t, err)
	require.NotNil(t, app.Logger)
	require.NotNil(t, app.PluginManager)

	_, err = app.NewCommunicator("")
	assert.ErrorIs(t, err, plugin.ErrPluginNotFound)

	assert.NotPanics(t, app.Stop)
	assert.NotPanics(t, app.Stop)
}

func TestBuiltInTransport(t *testing.T) {
	cfg, err := config.Parse([]byte(`
[communicator]
maxSendAttempts = 3

[plugin.transport.tcp]
addr = "127.0.0.1:9"
`))
	require.NoError(t, err)

	app, err := New(cfg)
	require.NoError(t, err)

	port, err := app.Transport("")
	require.NoError(t, err)
	assert.IsType(t, &tcp.TCPTransport{}, port)
	assert.Equal(t, transport.ChannelTCP, port.Channel())

	c, err := app.NewCommunicator("tcp")
	require.NoError(t, err)
	assert.Equal(t, communicator.StateDisconnected, c.State())
	assert.Equal(t, transport.ChannelTCP, c.Channel())
	assert.Equal(t, tcp.Descriptor{Addr: "127.0.0.1:9"}, c.Descriptor())

	app.Stop()
	assert.ErrorIs(t, c.Connect(nil), communicator.ErrShutdown)
	_, err = app.NewCommunicator("tcp")
	assert.ErrorIs(t, err, ErrStopped)
}

func TestUnknownFactory(t *testing.T) {
	cfg := config.Default()
	cfg.Plugin = map[string]any{
		string(plugin.Transport): map[string]any{"serial": map[string]any{}},
	}
	_, err := New(cfg)
	assert.ErrorIs(t, err, plugin.ErrPluginNotFound)
}
