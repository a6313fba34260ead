package prometheus

import (
	"fmt"

	"github.com/kubovy/serial-communication/log"
	"github.com/kubovy/serial-communication/metrics"
	"github.com/kubovy/serial-communication/plugin"
)

const _factoryName = "prometheus"

// Factory sets up a Reporter and installs it as a metrics reporter.
type Factory struct{}

func (f *Factory) Type() plugin.Type {
	return plugin.Metrics
}

func (f *Factory) Name() string {
	return _factoryName
}

func (f *Factory) ConfigType() any {
	return &ReporterConfig{}
}

func (f *Factory) Setup(cfgAny any) (plugin.Plugin, error) {
	cfg, ok := cfgAny.(*ReporterConfig)
	if !ok {
		return nil, fmt.Errorf("prometheus: unexpected config %T", cfgAny)
	}

	r, err := NewReporter(cfg)
	if err != nil {
		return nil, err
	}
	if err := r.Start(); err != nil {
		return nil, err
	}
	metrics.AddReporter(r)
	return r, nil
}

func (f *Factory) Destroy(p plugin.Plugin) {
	r, ok := p.(*Reporter)
	if !ok {
		log.Error().Str("plugin", p.FactoryName()).Msg("prometheus destroy: unexpected plugin")
		return
	}
	metrics.RemoveReporter(r)
	r.Stop()
}
