package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
)

const (
	DefaultInsName = "default"
)

var (
	ErrPluginNotFound      = errors.New("plugin not found")
	ErrDuplicatePlugin     = errors.New("duplicate plugin")
	ErrInvalidConfigFormat = errors.New("invalid config format")
	ErrConfigDecode        = errors.New("config decode error")
	ErrFactorySetup        = errors.New("factory setup error")
	ErrPluginType          = errors.New("plugin has unexpected type")
)

type instance struct {
	plugin  Plugin
	factory Factory
}

// Manager owns plugin factories and the instances set up from configuration.
type Manager struct {
	factories map[Type]map[string]Factory
	plugins   map[Type]map[string]instance
	lock      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		factories: make(map[Type]map[string]Factory),
		plugins:   make(map[Type]map[string]instance),
	}
}

// RegisterFactory makes a factory available to SetupPlugins. A later registration with
// the same type and name replaces the earlier one.
func (m *Manager) RegisterFactory(f Factory) {
	m.lock.Lock()
	defer m.lock.Unlock()

	factories, ok := m.factories[f.Type()]
	if !ok {
		factories = make(map[string]Factory)
		m.factories[f.Type()] = factories
	}
	factories[f.Name()] = f
}

// NewDecoder returns the mapstructure decoder used for every plugin and config section.
// Durations may be written as strings ("500ms") and text-unmarshalable types by name.
func NewDecoder(result any) (*mapstructure.Decoder, error) {
	return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: false,
		Result:           result,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		),
	})
}

// SetupPlugins creates plugin instances from the [plugin] part of the configuration:
//
//	{"<type>": {"<factory name>": {<factory config>}}}
//
// Instances are keyed by their "tag" config value, or by the factory name without one.
// Types without a registered factory are skipped.
func (m *Manager) SetupPlugins(pluginConf map[string]any) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, typeName := range sortedKeys(pluginConf) {
		pluginType := Type(typeName)
		factories, ok := m.factories[pluginType]
		if !ok {
			continue
		}

		pluginsMap, ok := pluginConf[typeName].(map[string]any)
		if !ok {
			return fmt.Errorf("%w for plugin type '%s'", ErrInvalidConfigFormat, pluginType)
		}

		for _, name := range sortedKeys(pluginsMap) {
			if err := m.setupOne(pluginType, factories, name, pluginsMap[name]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) setupOne(pluginType Type, factories map[string]Factory, name string, config any) error {
	factory, ok := factories[name]
	if !ok {
		return fmt.Errorf("%w: plugin factory not found for type '%s' and name '%s'", ErrPluginNotFound, pluginType, name)
	}

	configMap, ok := config.(map[string]any)
	if !ok {
		return fmt.Errorf("%w for plugin '%s':'%s'", ErrInvalidConfigFormat, pluginType, name)
	}

	targetConfig := factory.ConfigType()
	if targetConfig == nil {
		return fmt.Errorf("%w: plugin factory '%s':'%s' did not provide a configuration type", ErrInvalidConfigFormat, pluginType, name)
	}

	decoder, err := NewDecoder(targetConfig)
	if err != nil {
		return fmt.Errorf("%w: failed to create config decoder for plugin '%s':'%s': %v", ErrConfigDecode, pluginType, name, err)
	}
	if err := decoder.Decode(configMap); err != nil {
		return fmt.Errorf("%w: failed to decode config for plugin '%s':'%s': %v", ErrConfigDecode, pluginType, name, err)
	}

	key := name
	if tag, ok := configMap["tag"].(string); ok && tag != "" {
		key = tag
	}
	if _, exists := m.plugins[pluginType][key]; exists {
		return fmt.Errorf("%w: duplicate plugin tag/name '%s' for type '%s'", ErrDuplicatePlugin, key, pluginType)
	}

	ins, err := factory.Setup(targetConfig)
	if err != nil {
		return fmt.Errorf("%w: failed to setup plugin '%s':'%s': %v", ErrFactorySetup, pluginType, name, err)
	}

	if _, ok := m.plugins[pluginType]; !ok {
		m.plugins[pluginType] = make(map[string]instance)
	}
	m.plugins[pluginType][key] = instance{plugin: ins, factory: factory}
	return nil
}

// GetPlugin returns the instance registered under name for the given type.
func (m *Manager) GetPlugin(typ Type, name string) (Plugin, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	plugins, ok := m.plugins[typ]
	if !ok {
		return nil, fmt.Errorf("%w: no plugins found for type '%s'", ErrPluginNotFound, typ)
	}

	ins, ok := plugins[name]
	if !ok {
		return nil, fmt.Errorf("%w: plugin '%s' not found for type '%s'", ErrPluginNotFound, name, typ)
	}
	return ins.plugin, nil
}

// GetDefaultPlugin returns the instance tagged "default".
func (m *Manager) GetDefaultPlugin(typ Type) (Plugin, error) {
	return m.GetPlugin(typ, DefaultInsName)
}

// Names lists the instance keys of a plugin type in lexical order.
func (m *Manager) Names(typ Type) []string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	names := make([]string, 0, len(m.plugins[typ]))
	for name := range m.plugins[typ] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DestroyPlugins hands every instance back to its factory and forgets it.
func (m *Manager) DestroyPlugins() {
	m.lock.Lock()
	defer m.lock.Unlock()
	for typ, plugins := range m.plugins {
		for _, ins := range plugins {
			ins.factory.Destroy(ins.plugin)
		}
		delete(m.plugins, typ)
	}
}

// Get is GetPlugin with a type assertion to T.
func Get[T any](m *Manager, typ Type, name string) (T, error) {
	var zero T
	p, err := m.GetPlugin(typ, name)
	if err != nil {
		return zero, err
	}
	t, ok := p.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s '%s' is %T", ErrPluginType, typ, name, p)
	}
	return t, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
