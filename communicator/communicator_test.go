package communicator

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubovy/serial-communication/network/codec"
	"github.com/kubovy/serial-communication/network/message"
	"github.com/kubovy/serial-communication/network/transport"
	"github.com/kubovy/serial-communication/network/transport/transporttest"
)

var testDevice = transporttest.Descriptor{Name: "fake0"}

func testConfig() *Config {
	return &Config{
		ConfirmationTimeoutMs: 200,
		MaxSendAttempts:       20,
		PollIntervalMs:        2,
		IdlePingPolls:         100000,
		ReconnectBackoffMs:    10,
		ShutdownTimeoutMs:     500,
		PingFailureThreshold:  4,
		IddCooldownTicks:      5,
	}
}

type recorder struct {
	BaseListener
	mu     sync.Mutex
	events []string
	sent   []MessageEvent
	onDisc func()
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) has(e string) bool {
	for _, got := range r.snapshot() {
		if got == e {
			return true
		}
	}
	return false
}

func (r *recorder) sentEvents() []MessageEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MessageEvent(nil), r.sent...)
}

func (r *recorder) OnConnecting(transport.Channel)      { r.add("connecting") }
func (r *recorder) OnConnect(transport.Channel)         { r.add("connected") }
func (r *recorder) OnConnectionReady(transport.Channel) { r.add("ready") }
func (r *recorder) OnDisconnect(transport.Channel) {
	r.mu.Lock()
	fn := r.onDisc
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
	r.add("disconnected")
}
func (r *recorder) OnDeviceCapabilitiesChanged(_ transport.Channel, caps Capabilities) {
	r.add("capabilities:" + caps.String())
}
func (r *recorder) OnDeviceNameChanged(_ transport.Channel, name string) { r.add("name:" + name) }
func (r *recorder) OnMessageSent(ch transport.Channel, frame []byte, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, MessageEvent{Channel: ch, Frame: frame, Remaining: remaining})
}

func newTestCommunicator(t *testing.T, cfg *Config) (*Communicator, *transporttest.FakePort, *recorder) {
	t.Helper()
	port := transporttest.New()
	c, err := New(port, cfg)
	require.NoError(t, err)
	rec := &recorder{}
	require.NoError(t, c.AddListener(rec))
	t.Cleanup(c.Shutdown)
	return c, port, rec
}

func waitState(t *testing.T, c *Communicator, s State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == s }, 2*time.Second, time.Millisecond,
		"state %s, want %s", c.State(), s)
}

// onlyIDD hands identification frames to the device and ignores everything else.
func onlyIDD(device transporttest.Responder) transporttest.Responder {
	return func(p *transporttest.FakePort, frame []byte) {
		if len(frame) > 1 && frame[1] == message.KindIDD.Tag() {
			device(p, frame)
		}
	}
}

func TestNew(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)

	_, err = New(transporttest.New(), &Config{MaxSendAttempts: -1})
	assert.Error(t, err)

	c, err := New(transporttest.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, transport.ChannelUSB, c.Channel())
	assert.Nil(t, c.Descriptor())
	assert.NotNil(t, c.Dispatcher())
}

func TestConnectErrors(t *testing.T) {
	c, port, _ := newTestCommunicator(t, testConfig())
	port.SetResponder(transporttest.AutoAck())

	assert.ErrorIs(t, c.Connect(nil), ErrNoDescriptor)
	assert.ErrorIs(t, c.Send(message.KindIO, 1), ErrNoDescriptor)
	assert.ErrorIs(t, c.Connect(transporttest.Descriptor{Name: "bad0"}), ErrCannotConnect)

	require.NoError(t, c.Connect(testDevice))
	waitState(t, c, StateConnected)
	assert.ErrorIs(t, c.Connect(testDevice), ErrCannotConnect)
	assert.Equal(t, testDevice, c.Descriptor())

	assert.ErrorIs(t, c.SendBytes(0x10, make([]byte, 300)...), ErrFrameTooLarge)

	c.Shutdown()
	assert.Equal(t, StateDisconnected, c.State())
	assert.False(t, port.IsOpen())
	assert.ErrorIs(t, c.Connect(testDevice), ErrShutdown)
	assert.ErrorIs(t, c.Send(message.KindIO, 1), ErrShutdown)
	c.Shutdown()
}

func TestIdentificationHandshake(t *testing.T) {
	c, port, rec := newTestCommunicator(t, testConfig())

	requests := func(p *transporttest.FakePort, frame []byte) {
		if len(frame) == 4 && frame[1] == message.KindIDD.Tag() {
			rec.add(fmt.Sprintf("request:%d", frame[3]))
		}
	}
	caps := uint16(CapUSB | CapTemp | CapRgbStrip)
	port.SetResponder(transporttest.Chain(requests, transporttest.Device(caps, "Lamp")))

	require.NoError(t, c.Connect(testDevice))
	require.Eventually(t, func() bool { return rec.has("ready") }, 2*time.Second, time.Millisecond)

	assert.Equal(t, []string{
		"connecting",
		"connected",
		"request:0",
		"capabilities:usb|temp|rgbStrip",
		"request:1",
		"name:Lamp",
		"ready",
	}, rec.snapshot())
	assert.Equal(t, Capabilities(caps), c.Capabilities())
	assert.True(t, c.Capabilities().Has(CapRgbStrip))
	assert.Equal(t, "Lamp", c.Name())

	t.Run("settled", func(t *testing.T) {
		time.Sleep(50 * time.Millisecond)
		for _, f := range port.SentOfKind(message.KindIDD) {
			assert.Len(t, f, 4)
		}
		assert.Len(t, port.SentOfKind(message.KindIDD), 2)
	})
}

func TestMessageConfirmedOnce(t *testing.T) {
	c, port, rec := newTestCommunicator(t, testConfig())
	port.SetResponder(transporttest.Device(uint16(CapUSB), "Box"))

	require.NoError(t, c.Connect(testDevice))
	require.Eventually(t, func() bool { return rec.has("ready") }, 2*time.Second, time.Millisecond)

	prepared := 0
	require.NoError(t, c.Subscribe(TopicMessagePrepare, func(any) { prepared++ }))

	require.NoError(t, c.SendBytes(0x10, 0x05))
	require.Eventually(t, func() bool { return len(rec.sentEvents()) == 1 }, 2*time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 1, prepared)
	assert.Equal(t, [][]byte{{0x15, 0x10, 0x05}}, port.SentOfKind(message.KindIO))
	sent := rec.sentEvents()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x15, 0x10, 0x05}, sent[0].Frame)
	assert.Equal(t, 0, sent[0].Remaining)
	assert.Equal(t, transport.ChannelUSB, sent[0].Channel)
}

func TestDeliveryExhaustionReconnects(t *testing.T) {
	cfg := testConfig()
	cfg.ConfirmationTimeoutMs = 3
	cfg.ReconnectBackoffMs = 60
	c, port, rec := newTestCommunicator(t, cfg)
	port.SetResponder(onlyIDD(transporttest.Device(0, "Mute")))

	require.NoError(t, c.Connect(testDevice))
	require.Eventually(t, func() bool { return rec.has("ready") }, 2*time.Second, time.Millisecond)

	var once sync.Once
	var attempts []time.Time
	var disconnectedAt time.Time
	rec.mu.Lock()
	rec.onDisc = func() {
		once.Do(func() {
			attempts = sentAt(port, message.KindIO)
			disconnectedAt = time.Now()
		})
	}
	rec.mu.Unlock()
	before := len(rec.snapshot())

	require.NoError(t, c.Send(message.KindIO, 0x01, 0x01))
	require.Eventually(t, func() bool {
		events := rec.snapshot()[before:]
		return len(events) >= 2 && events[0] == "disconnected" && events[1] == "connecting"
	}, 5*time.Second, time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, attempts, cfg.MaxSendAttempts)
	assert.GreaterOrEqual(t, disconnectedAt.Sub(attempts[len(attempts)-1]), cfg.ReconnectBackoff(),
		"disconnected before the reconnect backoff passed")
	assert.Empty(t, rec.sent)
}

// sentAt returns when each frame of kind was written.
func sentAt(port *transporttest.FakePort, kind message.Kind) []time.Time {
	frames, times := port.Sent(), port.SentTimes()
	var out []time.Time
	for i := 0; i < len(frames) && i < len(times); i++ {
		if len(frames[i]) > 1 && frames[i][1] == kind.Tag() {
			out = append(out, times[i])
		}
	}
	return out
}

// withDelay registers d as the confirmation timeout of kind for the rest of the test.
func withDelay(t *testing.T, kind message.Kind, d time.Duration) {
	t.Helper()
	info, ok := message.Info(kind)
	require.True(t, ok)
	slow := info
	slow.Delay = d
	require.NoError(t, message.Register(slow))
	t.Cleanup(func() { assert.NoError(t, message.Register(info)) })
}

func TestKindDelaySpacesAttempts(t *testing.T) {
	const delay = 25 * time.Millisecond

	assertSpacing := func(t *testing.T, times []time.Time, global time.Duration) {
		t.Helper()
		for i := 1; i < len(times); i++ {
			gap := times[i].Sub(times[i-1])
			assert.GreaterOrEqual(t, gap, delay, "attempt %d", i)
			assert.Less(t, gap, global/2, "attempt %d waited for the global timeout", i)
		}
	}

	t.Run("message", func(t *testing.T) {
		withDelay(t, message.KindLCD, delay)
		cfg := testConfig()
		cfg.ConfirmationTimeoutMs = 1000
		cfg.MaxSendAttempts = 4
		c, port, rec := newTestCommunicator(t, cfg)
		port.SetResponder(onlyIDD(transporttest.Device(0, "Slow")))

		require.NoError(t, c.Connect(testDevice))
		require.Eventually(t, func() bool { return rec.has("ready") }, 2*time.Second, time.Millisecond)

		var once sync.Once
		captured := make(chan []time.Time, 1)
		rec.mu.Lock()
		rec.onDisc = func() { once.Do(func() { captured <- sentAt(port, message.KindLCD) }) }
		rec.mu.Unlock()

		require.NoError(t, c.Send(message.KindLCD, 0x01))
		var times []time.Time
		select {
		case times = <-captured:
		case <-time.After(5 * time.Second):
			t.Fatal("delivery never exhausted")
		}
		require.Len(t, times, cfg.MaxSendAttempts)
		assertSpacing(t, times, cfg.ConfirmationTimeout())
	})

	t.Run("identification", func(t *testing.T) {
		withDelay(t, message.KindIDD, delay)
		cfg := testConfig()
		cfg.ConfirmationTimeoutMs = 1000
		c, port, rec := newTestCommunicator(t, cfg)

		var once sync.Once
		captured := make(chan []time.Time, 1)
		rec.onDisc = func() { once.Do(func() { captured <- sentAt(port, message.KindIDD) }) }

		require.NoError(t, c.Connect(testDevice))
		var times []time.Time
		select {
		case times = <-captured:
		case <-time.After(5 * time.Second):
			t.Fatal("liveness never failed")
		}
		require.Len(t, times, cfg.PingFailureThreshold+1)
		assertSpacing(t, times, cfg.ConfirmationTimeout())
	})
}

func TestLivenessFailureReconnects(t *testing.T) {
	cfg := testConfig()
	cfg.ConfirmationTimeoutMs = 3
	c, port, rec := newTestCommunicator(t, cfg)

	var once sync.Once
	requests := -1
	rec.onDisc = func() {
		once.Do(func() { requests = len(port.SentOfKind(message.KindIDD)) })
	}

	require.NoError(t, c.Connect(testDevice))
	require.Eventually(t, func() bool {
		events := rec.snapshot()
		return len(events) >= 4 && events[2] == "disconnected" && events[3] == "connecting"
	}, 5*time.Second, time.Millisecond)

	assert.Equal(t, []string{"connecting", "connected", "disconnected", "connecting"}, rec.snapshot()[:4])
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, cfg.PingFailureThreshold+1, requests)
}

func TestOpenFailureRetries(t *testing.T) {
	c, port, rec := newTestCommunicator(t, testConfig())
	port.SetResponder(transporttest.AutoAck())
	port.FailOpen(transporttest.ErrInjected, transporttest.ErrInjected)

	require.NoError(t, c.Connect(testDevice))
	waitState(t, c, StateConnected)

	assert.Equal(t, 3, port.Opens())
	assert.Equal(t, []string{
		"connecting", "disconnected",
		"connecting", "disconnected",
		"connecting", "connected",
	}, rec.snapshot()[:6])
}

func TestTransportErrorReconnects(t *testing.T) {
	c, port, rec := newTestCommunicator(t, testConfig())
	port.SetResponder(transporttest.AutoAck())

	require.NoError(t, c.Connect(testDevice))
	waitState(t, c, StateConnected)

	port.FailSend(transporttest.ErrInjected)
	require.Eventually(t, func() bool { return rec.has("disconnected") }, 2*time.Second, time.Millisecond)
	port.FailSend(nil)

	require.Eventually(t, func() bool {
		events := rec.snapshot()
		connected := 0
		for _, e := range events {
			if e == "connected" {
				connected++
			}
		}
		return connected >= 2 && events[len(events)-1] == "connected"
	}, 2*time.Second, time.Millisecond)
	assert.True(t, port.IsOpen())
}

func TestDisconnectStaysDisconnected(t *testing.T) {
	c, port, rec := newTestCommunicator(t, testConfig())
	port.SetResponder(transporttest.AutoAck())

	require.NoError(t, c.Connect(testDevice))
	waitState(t, c, StateConnected)

	c.Disconnect()
	assert.Equal(t, StateDisconnected, c.State())
	assert.False(t, port.IsOpen())
	assert.Equal(t, 1, port.Closes())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, 1, port.Opens())
	assert.Equal(t, []string{"connecting", "connected", "disconnected"}, rec.snapshot())

	c.Disconnect()
	assert.Equal(t, 1, port.Closes())
	assert.Equal(t, []string{"connecting", "connected", "disconnected"}, rec.snapshot())
}

func TestOnDemandSend(t *testing.T) {
	c, port, rec := newTestCommunicator(t, testConfig())
	port.SetResponder(transporttest.AutoAck())

	require.NoError(t, c.Connect(testDevice))
	waitState(t, c, StateConnected)
	c.Disconnect()
	port.ResetSent()
	opens := port.Opens()

	require.NoError(t, c.Send(message.KindLCD, 0x01))
	require.Eventually(t, func() bool { return len(rec.sentEvents()) == 1 }, 2*time.Second, time.Millisecond)
	waitState(t, c, StateDisconnected)

	assert.Equal(t, opens+1, port.Opens())
	assert.False(t, port.IsOpen())
	assert.Empty(t, port.SentOfKind(message.KindIDD))
	assert.Equal(t, [][]byte{codec.Encode(message.KindLCD.Tag(), []byte{0x01})}, port.SentOfKind(message.KindLCD))
}

func TestOnDemandOpenFailureGivesUp(t *testing.T) {
	c, port, _ := newTestCommunicator(t, testConfig())

	require.NoError(t, c.Connect(testDevice))
	waitState(t, c, StateConnected)
	c.Disconnect()
	opens := port.Opens()

	port.FailOpen(transporttest.ErrInjected)
	require.NoError(t, c.Send(message.KindLCD, 0x01))
	waitState(t, c, StateDisconnected)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, opens+1, port.Opens())
	assert.Equal(t, StateDisconnected, c.State())
}

func TestOnDemandFailureEndsConnection(t *testing.T) {
	tests := []struct {
		name  string
		fail  func(port *transporttest.FakePort)
		sends int
	}{
		{
			name:  "delivery exhausted",
			fail:  func(port *transporttest.FakePort) { port.SetResponder(nil) },
			sends: 3,
		},
		{
			name:  "write error",
			fail:  func(port *transporttest.FakePort) { port.FailSend(transporttest.ErrInjected) },
			sends: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.ConfirmationTimeoutMs = 3
			cfg.MaxSendAttempts = 3
			c, port, rec := newTestCommunicator(t, cfg)
			port.SetResponder(transporttest.AutoAck())

			require.NoError(t, c.Connect(testDevice))
			waitState(t, c, StateConnected)
			c.Disconnect()
			tt.fail(port)
			port.ResetSent()
			opens := port.Opens()
			before := len(rec.snapshot())

			require.NoError(t, c.Send(message.KindLCD, 0x01))
			require.Eventually(t, func() bool { return len(rec.snapshot()) >= before+3 },
				2*time.Second, time.Millisecond)
			waitState(t, c, StateDisconnected)

			time.Sleep(50 * time.Millisecond)
			assert.Equal(t, StateDisconnected, c.State())
			assert.Equal(t, opens+1, port.Opens())
			assert.Equal(t, []string{"connecting", "connected", "disconnected"}, rec.snapshot()[before:])
			assert.Len(t, port.SentOfKind(message.KindLCD), tt.sends)
			assert.Empty(t, port.SentOfKind(message.KindIDD))
			assert.Empty(t, rec.sentEvents())
		})
	}
}

func TestIdlePing(t *testing.T) {
	cfg := testConfig()
	cfg.IdlePingPolls = 5
	c, port, rec := newTestCommunicator(t, cfg)
	port.SetResponder(transporttest.Device(0, "Idle"))

	require.NoError(t, c.Connect(testDevice))
	require.Eventually(t, func() bool { return rec.has("ready") }, 2*time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		for _, f := range port.SentOfKind(message.KindIDD) {
			if len(f) == 3 {
				return true
			}
		}
		return false
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, StateConnected, c.State())
}

func TestConnectToOtherDevice(t *testing.T) {
	c, port, rec := newTestCommunicator(t, testConfig())
	port.SetResponder(transporttest.AutoAck())

	require.NoError(t, c.Connect(testDevice))
	waitState(t, c, StateConnected)

	other := transporttest.Descriptor{Name: "fake1"}
	require.NoError(t, c.Connect(other))
	waitState(t, c, StateConnected)

	assert.Equal(t, other, c.Descriptor())
	assert.Equal(t, []string{"connecting", "connected", "disconnected", "connecting", "connected"}, rec.snapshot())
}
