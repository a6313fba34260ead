package tcp

import (
	"errors"
	"fmt"

	"github.com/kubovy/serial-communication/plugin"
)

const _factoryName = "tcp"

type factory struct{}

var _ plugin.Factory = (*factory)(nil)

// NewFactory creates a TCP transport plugin factory.
func NewFactory() plugin.Factory {
	return &factory{}
}

// Type returns the plugin type.
func (f *factory) Type() plugin.Type {
	return plugin.Transport
}

// Name returns the factory name used by plugin config.
func (f *factory) Name() string {
	return _factoryName
}

// ConfigType returns the config, prefilled with defaults, for mapstructure decoding.
func (f *factory) ConfigType() any {
	return DefaultCfg()
}

// Setup initializes a TCP transport plugin instance.
func (f *factory) Setup(cfgAny any) (plugin.Plugin, error) {
	cfg, ok := cfgAny.(*TCPTransportCfg)
	if !ok {
		return nil, errors.New("tcp setup failed: invalid config type")
	}

	ins, err := NewTCPTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("tcp setup failed: %w", err)
	}
	return ins, nil
}

// Destroy closes the bridge connection.
func (f *factory) Destroy(p plugin.Plugin) {
	if tp, ok := p.(*TCPTransport); ok && tp != nil {
		_ = tp.Close()
	}
}
