package dispatcher

import (
	"context"
	"sync/atomic"

	"go.uber.org/ratelimit"
	"golang.org/x/time/rate"

	"github.com/kubovy/serial-communication/network/codec"
)

type recvLimiter interface {
	Take() error
}

// DispatcherRecvLimiter is a token bucket: bursts up to the bucket size pass at once, the
// steady rate is limit frames per second.
type DispatcherRecvLimiter struct {
	limiter atomic.Pointer[rate.Limiter]
}

// NewTokenRecvLimiter creates a token bucket limiter.
func NewTokenRecvLimiter(limit int, burst int) *DispatcherRecvLimiter {
	self := &DispatcherRecvLimiter{}
	self.limiter.Store(rate.NewLimiter(rate.Limit(limit), burst))
	return self
}

// Take blocks until a token is available.
func (l *DispatcherRecvLimiter) Take() error {
	return l.limiter.Load().Wait(context.Background())
}

// Allow takes a token if one is available right now.
func (l *DispatcherRecvLimiter) Allow() bool {
	return l.limiter.Load().Allow()
}

// Reload swaps in a limiter with new parameters.
func (l *DispatcherRecvLimiter) Reload(limit int, burst int) {
	l.limiter.Store(rate.NewLimiter(rate.Limit(limit), burst))
}

// FunnelRecvLimiter is a leaky bucket that spaces frames evenly.
type FunnelRecvLimiter struct {
	limiter atomic.Pointer[ratelimit.Limiter]
}

// NewFunnelRecvLimiter creates a leaky bucket passing limit frames per second.
func NewFunnelRecvLimiter(limit int) *FunnelRecvLimiter {
	limiter := ratelimit.New(limit)
	self := &FunnelRecvLimiter{}
	self.limiter.Store(&limiter)
	return self
}

// Take blocks until the next frame may pass.
func (l *FunnelRecvLimiter) Take() error {
	(*l.limiter.Load()).Take()
	return nil
}

// Reload swaps in a limiter with a new rate.
func (l *FunnelRecvLimiter) Reload(limit int) {
	limiter := ratelimit.New(limit)
	l.limiter.Store(&limiter)
}

// recvLimiterFilter blocks the dispatching goroutine while the configured rate is exceeded.
// Nothing is dropped; the caller's next read waits instead.
func (d *Dispatcher) recvLimiterFilter(f *codec.Frame, next FilterHandleFunc) error {
	if l := d.recvLimiter.Load(); l != nil {
		if err := (*l).Take(); err != nil {
			dropped(f.Kind(), "limiter")
			return err
		}
	}
	return next(f)
}
