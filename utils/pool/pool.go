// Package pool wraps sync.Pool with typed access and a metric counting how often the pool
// had to allocate.
package pool

import (
	"sync"

	"github.com/kubovy/serial-communication/metrics"
)

// Pool is a typed, instrumented sync.Pool.
type Pool[T any] struct {
	Name string
	pool sync.Pool
}

// NewPool creates a pool. name is the poolname dimension of the allocation counter.
func NewPool[T any](name string, newFunc func() T) *Pool[T] {
	p := &Pool[T]{Name: name}
	p.pool.New = func() any {
		metrics.IncrCounterWithDimGroup(metrics.NamePoolCreateTotal, metrics.GroupTransport, 1, metrics.Dimension{
			metrics.DimPoolName: name,
		})
		return newFunc()
	}
	return p
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(x T) {
	p.pool.Put(x)
}

// NewBufferPool pools byte slices of a fixed size. Slices are handed out as pointers so
// Put does not allocate.
func NewBufferPool(name string, size int) *Pool[*[]byte] {
	return NewPool(name, func() *[]byte {
		b := make([]byte, size)
		return &b
	})
}
