// Package broadcast republishes values to any number of subscribers. Late
// subscribers see the current value first; slow subscribers only ever see the
// latest one, and publishers never block.
package broadcast

import "sync"

// Value is a last-value-cached broadcast of T.
type Value[T any] struct {
	mu     sync.Mutex
	cur    T
	subs   map[uint64]chan T
	next   uint64
	closed bool
}

// NewValue creates a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		cur:  initial,
		subs: make(map[uint64]chan T),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur
}

// Set stores x and offers it to every subscriber. A subscriber that has not
// consumed the previous value has it replaced by x.
func (v *Value[T]) Set(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.cur = x
	for _, ch := range v.subs {
		offer(ch, x)
	}
}

// Subscribe returns a channel that receives the current value immediately and
// every later one, coalesced. cancel closes the channel; it is safe to call
// more than once.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)

	v.mu.Lock()
	defer v.mu.Unlock()
	ch <- v.cur
	if v.closed {
		close(ch)
		return ch, func() {}
	}
	id := v.next
	v.next++
	v.subs[id] = ch

	return ch, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if c, ok := v.subs[id]; ok {
			delete(v.subs, id)
			close(c)
		}
	}
}

// Close closes every subscriber channel. Later Sets are ignored.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	for id, ch := range v.subs {
		delete(v.subs, id)
		close(ch)
	}
}

// offer replaces whatever ch is holding with x. Callers hold the Value lock,
// so this is the only sender on ch.
func offer[T any](ch chan T, x T) {
	for {
		select {
		case ch <- x:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
