package message

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrInvalidKindInfo is returned by Register for an entry without a name.
	ErrInvalidKindInfo = errors.New("message: kind info requires a name")

	// ErrKindNotFound is returned by Parse for a name that is not registered.
	ErrKindNotFound = errors.New("message: kind not found")
)

// KindInfo describes a registered message kind.
type KindInfo struct {
	Kind Kind
	Name string

	// Delay is the confirmation timeout used for messages of this kind.
	// Zero means the communicator's global default.
	Delay time.Duration
}

var (
	registryMu sync.RWMutex
	registry   = make(map[Kind]KindInfo)
)

func init() {
	for _, info := range []KindInfo{
		{Kind: KindAck, Name: "CRC"},
		{Kind: KindIDD, Name: "IDD"},
		{Kind: KindConsistencyCheck, Name: "CONSISTENCY_CHECK"},
		{Kind: KindData, Name: "DATA"},
		{Kind: KindPlain, Name: "PLAIN"},
		{Kind: KindIO, Name: "IO"},
		{Kind: KindTemp, Name: "TEMP"},
		{Kind: KindLCD, Name: "LCD"},
		{Kind: KindRegistry, Name: "REGISTRY"},
		{Kind: KindRGB, Name: "RGB"},
		{Kind: KindIndicators, Name: "INDICATORS"},
		{Kind: KindLight, Name: "LIGHT"},
		{Kind: KindBluetooth, Name: "BLUETOOTH"},
		{Kind: KindSMStateAction, Name: "SM_STATE_ACTION"},
		{Kind: KindSMInput, Name: "SM_INPUT"},
		{Kind: KindDebug, Name: "DEBUG"},
		{Kind: KindUnknown, Name: "UNKNOWN"},
	} {
		_ = Register(info)
	}
}

// Register adds or replaces the entry for info.Kind. Applications use it to give a kind a
// custom delay or to name tags private to their firmware.
func Register(info KindInfo) error {
	if info.Name == "" {
		return ErrInvalidKindInfo
	}
	if info.Delay < 0 {
		return fmt.Errorf("message: negative delay %s for %s", info.Delay, info.Name)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[info.Kind] = info
	return nil
}

// Info returns the registry entry for k.
func Info(k Kind) (KindInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[k]
	return info, ok
}

// Lookup maps a tag byte to its kind. Unregistered tags map to KindUnknown.
func Lookup(tag byte) Kind {
	if _, ok := Info(Kind(tag)); ok {
		return Kind(tag)
	}
	return KindUnknown
}

// Delay returns the default confirmation timeout of k, zero when none is set.
func Delay(k Kind) time.Duration {
	info, _ := Info(k)
	return info.Delay
}

// Parse resolves a kind by its registered name (case-insensitive).
func Parse(name string) (Kind, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	registryMu.RLock()
	defer registryMu.RUnlock()
	for k, info := range registry {
		if info.Name == name {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: %s", ErrKindNotFound, name)
}

// All returns every registered kind ordered by tag.
func All() []KindInfo {
	registryMu.RLock()
	list := make([]KindInfo, 0, len(registry))
	for _, info := range registry {
		list = append(list, info)
	}
	registryMu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].Kind < list[j].Kind
	})
	return list
}
