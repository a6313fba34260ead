package communicator

import (
	"fmt"
	"time"
)

// Config tunes the protocol timing. Zero values are replaced by the defaults.
type Config struct {
	// ConfirmationTimeoutMs is how long a message waits for its acknowledgment when its
	// kind has no delay of its own.
	ConfirmationTimeoutMs int `mapstructure:"confirmationTimeoutMs"`
	// MaxSendAttempts is how often a message is sent before the connection is considered
	// broken.
	MaxSendAttempts int `mapstructure:"maxSendAttempts"`
	// PollIntervalMs is the idle sleep of every loop.
	PollIntervalMs int `mapstructure:"pollIntervalMs"`
	// IdlePingPolls is the number of idle supervisor polls before a liveness ping.
	IdlePingPolls int `mapstructure:"idlePingPolls"`
	// ReconnectBackoffMs is the pause after a failed open or a transport error.
	ReconnectBackoffMs int `mapstructure:"reconnectBackoffMs"`
	// ShutdownTimeoutMs bounds the wait for each goroutine group on shutdown and reconnect.
	ShutdownTimeoutMs int `mapstructure:"shutdownTimeoutMs"`
	// PingFailureThreshold is the number of unconfirmed identification messages tolerated.
	PingFailureThreshold int `mapstructure:"pingFailureThreshold"`
	// IddCooldownTicks is the number of poll intervals between identification messages.
	IddCooldownTicks int `mapstructure:"iddCooldownTicks"`
}

// DefaultConfig returns the timing the firmware is written against.
func DefaultConfig() *Config {
	return &Config{
		ConfirmationTimeoutMs: 500,
		MaxSendAttempts:       20,
		PollIntervalMs:        100,
		IdlePingPolls:         30,
		ReconnectBackoffMs:    1000,
		ShutdownTimeoutMs:     500,
		PingFailureThreshold:  4,
		IddCooldownTicks:      5,
	}
}

func (c *Config) setDefaults() {
	d := DefaultConfig()
	for _, f := range []struct{ v, def *int }{
		{&c.ConfirmationTimeoutMs, &d.ConfirmationTimeoutMs},
		{&c.MaxSendAttempts, &d.MaxSendAttempts},
		{&c.PollIntervalMs, &d.PollIntervalMs},
		{&c.IdlePingPolls, &d.IdlePingPolls},
		{&c.ReconnectBackoffMs, &d.ReconnectBackoffMs},
		{&c.ShutdownTimeoutMs, &d.ShutdownTimeoutMs},
		{&c.PingFailureThreshold, &d.PingFailureThreshold},
		{&c.IddCooldownTicks, &d.IddCooldownTicks},
	} {
		if *f.v == 0 {
			*f.v = *f.def
		}
	}
}

// Validate reports the first setting that is out of range.
func (c *Config) Validate() error {
	for _, f := range []struct {
		name string
		v    int
	}{
		{"confirmationTimeoutMs", c.ConfirmationTimeoutMs},
		{"maxSendAttempts", c.MaxSendAttempts},
		{"pollIntervalMs", c.PollIntervalMs},
		{"idlePingPolls", c.IdlePingPolls},
		{"reconnectBackoffMs", c.ReconnectBackoffMs},
		{"shutdownTimeoutMs", c.ShutdownTimeoutMs},
		{"pingFailureThreshold", c.PingFailureThreshold},
		{"iddCooldownTicks", c.IddCooldownTicks},
	} {
		if f.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", f.name, f.v)
		}
	}
	return nil
}

func (c *Config) ConfirmationTimeout() time.Duration {
	return time.Duration(c.ConfirmationTimeoutMs) * time.Millisecond
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *Config) ReconnectBackoff() time.Duration {
	return time.Duration(c.ReconnectBackoffMs) * time.Millisecond
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond
}
