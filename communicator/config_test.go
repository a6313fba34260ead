package communicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubovy/serial-communication/plugin"
)

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{PollIntervalMs: 7}
	cfg.setDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 7*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 500*time.Millisecond, cfg.ConfirmationTimeout())
	assert.Equal(t, time.Second, cfg.ReconnectBackoff())
	assert.Equal(t, 500*time.Millisecond, cfg.ShutdownTimeout())
	assert.Equal(t, 20, cfg.MaxSendAttempts)
	assert.Equal(t, 30, cfg.IdlePingPolls)
	assert.Equal(t, 4, cfg.PingFailureThreshold)
	assert.Equal(t, 5, cfg.IddCooldownTicks)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdlePingPolls = -3
	assert.ErrorContains(t, cfg.Validate(), "idlePingPolls")
}

func TestConfigDecode(t *testing.T) {
	cfg := DefaultConfig()
	dec, err := plugin.NewDecoder(cfg)
	require.NoError(t, err)
	require.NoError(t, dec.Decode(map[string]any{
		"confirmationTimeoutMs": 250,
		"maxSendAttempts":       5,
	}))
	assert.Equal(t, 250, cfg.ConfirmationTimeoutMs)
	assert.Equal(t, 5, cfg.MaxSendAttempts)
	assert.Equal(t, 100, cfg.PollIntervalMs)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "DISCONNECTED", StateDisconnected.String())
	assert.Equal(t, "CONNECTING", StateConnecting.String())
	assert.Equal(t, "CONNECTED", StateConnected.String())
	assert.Equal(t, "DISCONNECTING", StateDisconnecting.String())
	assert.Equal(t, "UNKNOWN", State(9).String())
}

func TestQueue(t *testing.T) {
	var q queue[int]
	_, ok := q.peek()
	assert.False(t, ok)

	assert.Equal(t, 1, q.push(1))
	assert.Equal(t, 2, q.push(2))
	v, _ := q.peek()
	assert.Equal(t, 1, v)

	v, remaining, ok := q.pop()
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, remaining)

	q.clear()
	assert.Equal(t, 0, q.len())
	_, _, ok = q.pop()
	assert.False(t, ok)
}
