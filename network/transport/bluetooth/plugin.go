package bluetooth

import (
	"errors"
	"fmt"

	"github.com/kubovy/serial-communication/plugin"
)

const _factoryName = "bluetooth"

type factory struct{}

var _ plugin.Factory = (*factory)(nil)

// NewFactory creates a bluetooth transport plugin factory.
func NewFactory() plugin.Factory {
	return &factory{}
}

func (f *factory) Type() plugin.Type {
	return plugin.Transport
}

func (f *factory) Name() string {
	return _factoryName
}

func (f *factory) ConfigType() any {
	return &Config{}
}

func (f *factory) Setup(cfgAny any) (plugin.Plugin, error) {
	cfg, ok := cfgAny.(*Config)
	if !ok {
		return nil, errors.New("bluetooth setup failed: invalid config type")
	}
	p, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("bluetooth setup failed: %w", err)
	}
	return p, nil
}

func (f *factory) Destroy(p plugin.Plugin) {
	if up, ok := p.(*Port); ok && up != nil {
		_ = up.Close()
	}
}
