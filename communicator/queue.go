package communicator

import "sync"

// queue is an unbounded FIFO safe for many producers.
type queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// push appends v and returns the new length.
func (q *queue[T]) push(v T) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, v)
	return len(q.items)
}

func (q *queue[T]) peek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	return q.items[0], true
}

// pop removes the head and returns it together with the remaining length.
func (q *queue[T]) pop() (T, int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, 0, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, len(q.items), true
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue[T]) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}
