// Package dispatcher fans received frames out to the receivers registered for their kind.
// Frames pass a chain of filters first (kind deny list, receive rate limiter), so a noisy
// device cannot starve the rest of the application.
package dispatcher

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kubovy/serial-communication/log"
	"github.com/kubovy/serial-communication/metrics"
	"github.com/kubovy/serial-communication/network/codec"
	"github.com/kubovy/serial-communication/network/message"
)

// ErrNilReceiver is returned when registering a nil receiver.
var ErrNilReceiver = errors.New("dispatcher: receiver is nil")

// Receiver is notified of every frame of the kinds it registered for. It runs on the
// goroutine that called Dispatch.
type Receiver interface {
	OnFrame(f *codec.Frame)
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(f *codec.Frame)

func (fn ReceiverFunc) OnFrame(f *codec.Frame) {
	fn(f)
}

// KindFilterCfg lists kinds, by registry name, whose frames are dropped before dispatch.
type KindFilterCfg struct {
	Kinds []string `mapstructure:"kinds"`
}

func (c *KindFilterCfg) Validate() error {
	for _, name := range c.Kinds {
		if _, err := message.Parse(name); err != nil {
			return fmt.Errorf("kindFilter: %w", err)
		}
	}
	return nil
}

// Limiter modes.
const (
	LimiterToken  = "token"
	LimiterFunnel = "funnel"
)

// Config holds all configurable parameters for the Dispatcher.
type Config struct {
	// RecvRateLimit is the maximum number of frames dispatched per second, 0 for no limit.
	// The limiter blocks the goroutine calling Dispatch; on a communicator that is the
	// inbound worker, so frames behind a throttled one are read late. Acknowledgments for
	// a frame are queued before it is dispatched.
	RecvRateLimit int `mapstructure:"recvRateLimit"`
	// TokenBurst is the bucket size of the token limiter.
	TokenBurst int `mapstructure:"tokenBurst"`
	// Limiter selects "token" (bursts allowed) or "funnel" (evenly spaced).
	Limiter string `mapstructure:"limiter"`
	// KindFilter drops frames of the listed kinds.
	KindFilter KindFilterCfg `mapstructure:"kindFilter"`
}

// DefaultConfig dispatches everything without a rate limit.
func DefaultConfig() *Config {
	return &Config{Limiter: LimiterToken}
}

// Validate checks if the dispatcher configuration parameters are within acceptable ranges.
func (c *Config) Validate() error {
	if c.RecvRateLimit < 0 {
		return errors.New("RecvRateLimit must not be negative")
	}
	if c.RecvRateLimit > 1000000 {
		return errors.New("RecvRateLimit cannot exceed 1,000,000 frames per second")
	}
	switch c.Limiter {
	case "", LimiterToken:
		if c.RecvRateLimit > 0 && c.TokenBurst <= 0 {
			return errors.New("TokenBurst must be positive when RecvRateLimit is set")
		}
		if c.TokenBurst > c.RecvRateLimit*10 && c.RecvRateLimit > 0 {
			return errors.New("TokenBurst cannot exceed 10 times RecvRateLimit")
		}
	case LimiterFunnel:
	default:
		return fmt.Errorf("unknown limiter %q", c.Limiter)
	}
	return c.KindFilter.Validate()
}

type registration struct {
	kind     message.Kind
	anyKind  bool
	receiver Receiver
}

// Dispatcher routes frames to receivers in registration order.
type Dispatcher struct {
	lock          sync.RWMutex
	registrations []registration

	filters       FilterChain
	kindFilterMap atomic.Pointer[map[message.Kind]struct{}]
	recvLimiter   atomic.Pointer[recvLimiter]
}

// NewDispatcher creates a dispatcher. A nil cfg means DefaultConfig.
func NewDispatcher(cfg *Config) (*Dispatcher, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	d := &Dispatcher{}
	if err := d.Reload(cfg); err != nil {
		return nil, err
	}

	// The filter chain is processed in the order filters are added.
	d.filters = append(d.filters, d.kindFilter)
	d.filters = append(d.filters, d.recvLimiterFilter)
	return d, nil
}

// Reload validates cfg and swaps the kind filter and the limiter in place.
func (d *Dispatcher) Reload(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid dispatcher configuration: %w", err)
	}
	d.reloadKindFilterCfg(&cfg.KindFilter)

	var l recvLimiter
	switch {
	case cfg.RecvRateLimit == 0:
		d.recvLimiter.Store(nil)
		return nil
	case cfg.Limiter == LimiterFunnel:
		l = NewFunnelRecvLimiter(cfg.RecvRateLimit)
	default:
		l = NewTokenRecvLimiter(cfg.RecvRateLimit, cfg.TokenBurst)
	}
	d.recvLimiter.Store(&l)
	return nil
}

// Register adds r for frames of kind.
func (d *Dispatcher) Register(kind message.Kind, r Receiver) error {
	if r == nil {
		return ErrNilReceiver
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	d.registrations = append(d.registrations, registration{kind: kind, receiver: r})
	return nil
}

// RegisterAll adds r for frames of every kind.
func (d *Dispatcher) RegisterAll(r Receiver) error {
	if r == nil {
		return ErrNilReceiver
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	d.registrations = append(d.registrations, registration{anyKind: true, receiver: r})
	return nil
}

// Dispatch runs f through the filter chain and hands it to the matching receivers.
func (d *Dispatcher) Dispatch(f *codec.Frame) error {
	return d.filters.Handle(f, d.dispatchImpl)
}

// dispatchImpl is the final step in the filter chain.
func (d *Dispatcher) dispatchImpl(f *codec.Frame) error {
	kind := f.Kind()

	d.lock.RLock()
	regs := d.registrations
	d.lock.RUnlock()

	for _, reg := range regs {
		if reg.anyKind || reg.kind == kind {
			d.call(reg.receiver, f)
		}
	}
	return nil
}

func (d *Dispatcher) call(r Receiver, f *codec.Frame) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Stringer("kind", f.Kind()).Hex("frame", f.Raw).Any("panic", p).Msg("receiver panicked")
		}
	}()
	r.OnFrame(f)
}

func dropped(kind message.Kind, reason string) {
	metrics.IncrCounterWithDimGroup(metrics.NameDispatchDroppedTotal, metrics.GroupDispatch, 1, metrics.Dimension{
		metrics.DimKind:   kind.String(),
		metrics.DimReason: reason,
	})
}
