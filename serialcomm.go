// Package serialcomm assembles a logger, the plugin manager with the built-in transports
// and metrics reporters, and communicators for the configured devices.
package serialcomm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kubovy/serial-communication/communicator"
	"github.com/kubovy/serial-communication/config"
	"github.com/kubovy/serial-communication/log"
	"github.com/kubovy/serial-communication/metrics/prometheus"
	"github.com/kubovy/serial-communication/network/dispatcher"
	"github.com/kubovy/serial-communication/network/transport"
	"github.com/kubovy/serial-communication/network/transport/bluetooth"
	"github.com/kubovy/serial-communication/network/transport/tcp"
	"github.com/kubovy/serial-communication/network/transport/usb"
	"github.com/kubovy/serial-communication/plugin"
	"github.com/kubovy/serial-communication/runtime"
)

var ErrStopped = errors.New("serialcomm: stopped")

// App holds the components shared by every communicator of a process.
type App struct {
	Logger        log.Logger
	PluginManager *plugin.Manager
	Config        *config.Config

	mu            sync.Mutex
	communicators []*communicator.Communicator
	stopped       bool
}

// New initializes logging from cfg, registers the built-in plugin factories and sets up
// the plugins cfg names. A nil cfg means config.Default.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := log.Initialize(cfg.Log); err != nil {
		return nil, fmt.Errorf("initialize log: %w", err)
	}
	logger := log.Default()

	pm := plugin.NewManager()
	for _, f := range []plugin.Factory{
		usb.NewFactory(),
		bluetooth.NewFactory(),
		tcp.NewFactory(),
		&prometheus.Factory{},
	} {
		pm.RegisterFactory(f)
	}
	if err := pm.SetupPlugins(cfg.Plugin); err != nil {
		return nil, err
	}

	logger.Info().Str("build", runtime.String()).Str("transports", fmt.Sprint(pm.Names(plugin.Transport))).
		Str("metrics", fmt.Sprint(pm.Names(plugin.Metrics))).Msg("serialcomm initialized")
	return &App{
		Logger:        logger,
		PluginManager: pm,
		Config:        cfg,
	}, nil
}

// Transport returns the transport plugin tagged tag. An empty tag means the configured
// transport; "default" falls back to the only transport when exactly one is set up.
func (a *App) Transport(tag string) (transport.Configured, error) {
	if tag == "" {
		tag = a.Config.Transport
	}
	port, err := plugin.Get[transport.Configured](a.PluginManager, plugin.Transport, tag)
	if err == nil || tag != plugin.DefaultInsName {
		return port, err
	}
	if names := a.PluginManager.Names(plugin.Transport); len(names) == 1 {
		return plugin.Get[transport.Configured](a.PluginManager, plugin.Transport, names[0])
	}
	return nil, err
}

// NewCommunicator creates a disconnected communicator on the transport tagged tag, using
// the [communicator] and [dispatcher] configuration. Stop shuts it down.
func (a *App) NewCommunicator(tag string, opts ...communicator.Option) (*communicator.Communicator, error) {
	port, err := a.Transport(tag)
	if err != nil {
		return nil, err
	}
	d, err := dispatcher.NewDispatcher(a.Config.Dispatcher)
	if err != nil {
		return nil, err
	}
	cfg := *a.Config.Communicator
	opts = append([]communicator.Option{communicator.WithDispatcher(d)}, opts...)
	c, err := communicator.New(port, &cfg, opts...)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		c.Shutdown()
		return nil, ErrStopped
	}
	a.communicators = append(a.communicators, c)
	return c, nil
}

// Stop shuts down every communicator, then destroys the plugins.
func (a *App) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	communicators := a.communicators
	a.communicators = nil
	a.mu.Unlock()

	a.Logger.Info().Int("communicators", len(communicators)).Msg("serialcomm shutting down")
	for _, c := range communicators {
		c.Shutdown()
	}
	a.PluginManager.DestroyPlugins()
	log.Refresh()
}
