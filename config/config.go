// Package config loads the serialctl TOML configuration file.
//
// The file has one table per component:
//
//	transport = "kitchen"        # plugin tag of the transport to use, "default" if omitted
//
//	[log]                        # log.LogCfg
//	[communicator]               # communicator.Config
//	[dispatcher]                 # dispatcher.Config
//	[plugin.transport.usb]       # one table per plugin factory, see plugin.Manager.SetupPlugins
//	[plugin.metrics.prometheus]
//
// Tables are decoded with the same mapstructure decoder the plugin manager uses, so keys
// follow the mapstructure tags of the target structs.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/kubovy/serial-communication/communicator"
	"github.com/kubovy/serial-communication/log"
	"github.com/kubovy/serial-communication/network/dispatcher"
	"github.com/kubovy/serial-communication/plugin"
)

const (
	keyTransport    = "transport"
	keyLog          = "log"
	keyCommunicator = "communicator"
	keyDispatcher   = "dispatcher"
	keyPlugin       = "plugin"
)

var ErrInvalidSection = errors.New("config: invalid section")

// Config is the decoded configuration file.
type Config struct {
	// Transport is the tag of the transport plugin communicators are built on.
	Transport string

	Log          *log.LogCfg
	Communicator *communicator.Config
	Dispatcher   *dispatcher.Config

	// Plugin is the raw [plugin] table handed to plugin.Manager.SetupPlugins.
	Plugin map[string]any
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Transport:    plugin.DefaultInsName,
		Log:          log.DefaultCfg(),
		Communicator: communicator.DefaultConfig(),
		Dispatcher:   dispatcher.DefaultConfig(),
		Plugin:       map[string]any{},
	}
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML data over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	cfg := Default()
	if v, ok := raw[keyTransport]; ok {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("%w: %s must be a non-empty string", ErrInvalidSection, keyTransport)
		}
		cfg.Transport = s
	}

	for _, section := range []struct {
		key    string
		target any
	}{
		{keyLog, cfg.Log},
		{keyCommunicator, cfg.Communicator},
		{keyDispatcher, cfg.Dispatcher},
	} {
		if err := decodeSection(raw, section.key, section.target); err != nil {
			return nil, err
		}
	}

	if v, ok := raw[keyPlugin]; ok {
		table, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: [%s] must be a table", ErrInvalidSection, keyPlugin)
		}
		cfg.Plugin = table
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeSection(raw map[string]any, key string, target any) error {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	table, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: [%s] must be a table", ErrInvalidSection, key)
	}
	decoder, err := plugin.NewDecoder(target)
	if err != nil {
		return err
	}
	if err := decoder.Decode(table); err != nil {
		return fmt.Errorf("%w: [%s]: %v", ErrInvalidSection, key, err)
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("[%s]: %w", keyLog, err)
	}
	if err := c.Communicator.Validate(); err != nil {
		return fmt.Errorf("[%s]: %w", keyCommunicator, err)
	}
	if err := c.Dispatcher.Validate(); err != nil {
		return fmt.Errorf("[%s]: %w", keyDispatcher, err)
	}
	return nil
}
