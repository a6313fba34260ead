package dispatcher

import (
	"github.com/kubovy/serial-communication/log"
	"github.com/kubovy/serial-communication/network/codec"
	"github.com/kubovy/serial-communication/network/message"
)

// FilterHandleFunc is the rest of the chain as seen by a filter.
type FilterHandleFunc func(f *codec.Frame) error

// Filter intercepts a frame and either calls next or stops the chain.
type Filter func(f *codec.Frame, next FilterHandleFunc) error

// FilterChain is the ordered processing pipeline for received frames.
type FilterChain []Filter

// Handle executes the chain and finally h.
func (fc FilterChain) Handle(f *codec.Frame, h FilterHandleFunc) error {
	if len(fc) == 0 {
		return h(f)
	}
	return fc[0](f, func(f *codec.Frame) error {
		return fc[1:].Handle(f, h)
	})
}

// reloadKindFilterCfg publishes a fresh deny set. Names were checked by Validate.
func (d *Dispatcher) reloadKindFilterCfg(cfg *KindFilterCfg) {
	deny := make(map[message.Kind]struct{}, len(cfg.Kinds))
	for _, name := range cfg.Kinds {
		if kind, err := message.Parse(name); err == nil {
			deny[kind] = struct{}{}
		}
	}
	d.kindFilterMap.Store(&deny)
}

// kindFilter drops frames whose kind is in the deny set.
func (d *Dispatcher) kindFilter(f *codec.Frame, next FilterHandleFunc) error {
	kind := f.Kind()
	if _, ok := (*d.kindFilterMap.Load())[kind]; !ok {
		return next(f)
	}
	log.Debug().Stringer("kind", kind).Msg("frame filtered")
	dropped(kind, "filtered")
	return nil
}
