package communicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubovy/serial-communication/network/codec"
	"github.com/kubovy/serial-communication/network/dispatcher"
	"github.com/kubovy/serial-communication/network/message"
	"github.com/kubovy/serial-communication/network/transport/transporttest"
)

func TestReceive(t *testing.T) {
	c, err := New(transporttest.New(), testConfig())
	require.NoError(t, err)

	var dispatched [][]byte
	require.NoError(t, c.Handle(message.KindIO, func(f *codec.Frame) {
		dispatched = append(dispatched, f.Raw)
	}))
	var received int
	require.NoError(t, c.Subscribe(TopicMessageReceived, func(any) { received++ }))

	io := codec.Encode(message.KindIO.Tag(), []byte{0x01, 0x01, 0x01})

	t.Run("corrupt frame is dropped", func(t *testing.T) {
		bad := append([]byte(nil), io...)
		bad[0]++
		c.receive(bad)
		assert.Equal(t, 0, c.acks.len())
		assert.Empty(t, dispatched)
		assert.Equal(t, 0, received)
	})

	t.Run("duplicates are acked and dispatched twice", func(t *testing.T) {
		c.receive(io)
		c.receive(io)
		assert.Equal(t, 2, c.acks.len())
		chk, _, _ := c.acks.pop()
		assert.Equal(t, io[0], chk)
		assert.Equal(t, [][]byte{io, io}, dispatched)
		assert.Equal(t, 2, received)
		c.acks.clear()
	})

	t.Run("ack updates the last checksum only", func(t *testing.T) {
		c.receive(codec.Encode(message.KindAck.Tag(), []byte{0x33}))
		assert.Equal(t, int32(0x33), c.lastChecksum.Load())
		assert.Equal(t, 0, c.acks.len())
		assert.Equal(t, 2, received)

		c.receive(codec.Encode(message.KindAck.Tag(), nil))
		assert.Equal(t, int32(0x33), c.lastChecksum.Load())
	})

	t.Run("unknown tag is acked and forwarded", func(t *testing.T) {
		c.receive(codec.Encode(0x77, []byte{1}))
		assert.Equal(t, 1, c.acks.len())
		assert.Equal(t, 3, received)
		c.acks.clear()
	})
}

func TestThrottledDispatchQueuesAckFirst(t *testing.T) {
	c, err := New(transporttest.New(), testConfig())
	require.NoError(t, err)
	require.NoError(t, c.Dispatcher().Reload(&dispatcher.Config{RecvRateLimit: 5, TokenBurst: 1}))

	io := codec.Encode(message.KindIO.Tag(), []byte{0x01, 0x01, 0x01})
	c.receive(io)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.receive(io)
	}()

	require.Eventually(t, func() bool { return c.acks.len() == 2 }, time.Second, time.Millisecond)
	select {
	case <-done:
		t.Fatal("second frame was not throttled")
	default:
	}
	<-done
}

func TestIdentify(t *testing.T) {
	c, err := New(transporttest.New(), testConfig())
	require.NoError(t, err)

	var events []any
	for _, topic := range []string{TopicCapabilitiesChanged, TopicNameChanged, TopicConnectionReady} {
		require.NoError(t, c.Subscribe(topic, func(p any) { events = append(events, p) }))
	}

	t.Run("capabilities", func(t *testing.T) {
		c.receive(codec.Encode(message.KindIDD.Tag(), []byte{0x00, 0x00, 0x0C, 0x07}))
		assert.Equal(t, int32(iddStateName), c.iddState.Load())
		want := Capabilities(CapTemp | CapLCD | CapRgbStrip | CapRgbIndicators | CapRgbLight)
		assert.Equal(t, want, c.Capabilities())
		require.Len(t, events, 1)
		assert.Equal(t, want, events[0].(*CapabilitiesEvent).Capabilities)
	})

	t.Run("short capability frame resets to none", func(t *testing.T) {
		c.receive(codec.Encode(message.KindIDD.Tag(), []byte{0x00, 0x00, 0xFF}))
		assert.Equal(t, Capabilities(0), c.Capabilities())
		assert.Equal(t, int32(iddStateName), c.iddState.Load())
	})

	t.Run("name then ready", func(t *testing.T) {
		events = nil
		c.receive(codec.Encode(message.KindIDD.Tag(), append([]byte{0x00, 0x01}, "Kitchen"...)))
		assert.Equal(t, int32(iddStateSettled), c.iddState.Load())
		assert.Equal(t, "Kitchen", c.Name())
		require.Len(t, events, 2)
		assert.Equal(t, "Kitchen", events[0].(*NameEvent).Name)
		assert.IsType(t, &StateEvent{}, events[1])
	})

	t.Run("ping reply leaves state alone", func(t *testing.T) {
		c.receive(codec.Encode(message.KindIDD.Tag(), []byte{0x42}))
		assert.Equal(t, int32(iddStateSettled), c.iddState.Load())
	})
}

func TestDecodeName(t *testing.T) {
	assert.Equal(t, "", decodeName([]byte{0, 1, 0, 1}))
	assert.Equal(t, "a\uFFFDb", decodeName([]byte{0, 1, 0, 1, 'a', 0xFF, 'b'}))
}

func TestCapabilitiesString(t *testing.T) {
	assert.Equal(t, "none", Capabilities(0).String())
	assert.Equal(t, "bluetooth|usb", Capabilities(CapBluetooth|CapUSB).String())
	assert.False(t, Capabilities(CapUSB).Has(CapBluetooth))
	assert.Equal(t, Capabilities(0x0102), decodeCapabilities([]byte{0, 1, 0, 0, 0x02, 0x01}))
}
