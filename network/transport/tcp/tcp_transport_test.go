package tcp

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubovy/serial-communication/network/transport"
	"github.com/kubovy/serial-communication/plugin"
)

func listen(t *testing.T) (net.Listener, <-chan net.Conn) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()
	return ln, accepted
}

func TestBridgeRoundTrip(t *testing.T) {
	ln, accepted := listen(t)

	tr, err := NewTCPTransport(nil)
	require.NoError(t, err)
	desc := Descriptor{Addr: ln.Addr().String()}
	require.NoError(t, tr.Open(desc))
	defer tr.Close()

	var bridge net.Conn
	select {
	case bridge = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("bridge did not accept")
	}
	defer bridge.Close()

	t.Run("send", func(t *testing.T) {
		require.NoError(t, tr.Send([]byte{0x15, 0x10, 0x05}))
		buf := make([]byte, 7)
		_ = bridge.SetReadDeadline(time.Now().Add(time.Second))
		_, err := io.ReadFull(bridge, buf)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xAA, 0x00, 0x03, 0x15, 0x10, 0x05, 0xD3}, buf)
	})

	t.Run("receive", func(t *testing.T) {
		_, err := bridge.Write(transport.Wrap([]byte{0x15, 0x00, 0x15}))
		require.NoError(t, err)

		var got []byte
		require.Eventually(t, func() bool {
			got, err = tr.Next()
			return err != nil || got != nil
		}, time.Second, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x15, 0x00, 0x15}, got)
	})

	t.Run("bridge gone", func(t *testing.T) {
		require.NoError(t, bridge.Close())
		require.Eventually(t, func() bool {
			_, err := tr.Next()
			return err != nil
		}, time.Second, time.Millisecond)
	})
}

func TestCanConnect(t *testing.T) {
	tr, err := NewTCPTransport(nil)
	require.NoError(t, err)

	assert.NoError(t, tr.CanConnect(Descriptor{Addr: "localhost:2000"}))
	assert.ErrorIs(t, tr.CanConnect(Descriptor{Addr: "localhost"}), transport.ErrInvalidDescriptor)
	assert.Nil(t, tr.Descriptor())
	assert.ErrorIs(t, tr.Send([]byte{0}), transport.ErrNotConnected)
	assert.NoError(t, tr.Close())
}

func TestValidate(t *testing.T) {
	cfg := DefaultCfg()
	assert.NoError(t, cfg.Validate())

	cfg.QueueSize = 0
	assert.Error(t, cfg.Validate())
}

func TestPluginSetup(t *testing.T) {
	m := plugin.NewManager()
	m.RegisterFactory(NewFactory())
	require.NoError(t, m.SetupPlugins(map[string]any{
		"transport": map[string]any{
			"tcp": map[string]any{"addr": "10.0.0.7:2000", "tag": "bridge"},
		},
	}))
	defer m.DestroyPlugins()

	tr, err := plugin.Get[*TCPTransport](m, plugin.Transport, "bridge")
	require.NoError(t, err)
	assert.Equal(t, Descriptor{Addr: "10.0.0.7:2000"}, tr.Descriptor())
	assert.Equal(t, time.Second, tr.WriteTimeout)
}
