package plugin

// Type is the type of plugin supported by the system.
type Type string

const (
	// Transport plugins open links to a device (usb, bluetooth, tcp).
	Transport Type = "transport"
	// Metrics plugins install metrics reporters (prometheus).
	Metrics Type = "metrics"
)

// Factory is the interface for plugin factories.
type Factory interface {
	// Type returns the plugin type.
	Type() Type
	// Name returns the name of the plugin implementation.
	Name() string
	// ConfigType returns a pointer to an empty configuration struct that the manager
	// fills with mapstructure.
	ConfigType() any
	// Setup initializes a plugin instance based on the configuration.
	Setup(any) (Plugin, error)

	Destroy(Plugin)
}

type Plugin interface {
	FactoryName() string
}
