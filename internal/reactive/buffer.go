package reactive

import (
	"iter"
	"sync"
)

// Buffer shares one upstream sequence between many readers.
//
// Items are pulled from upstream only when a reader asks for one past the
// end of what has been buffered, and each item is pulled once no matter
// how many readers consume it. Readers are Multi-registry receivers of the
// buffer. A Buffer is safe for concurrent use.
type Buffer[T any] struct {
	mu      sync.Mutex
	next    func() (T, error, bool)
	stop    func()
	items   []T
	err     error
	done    bool
	readers *Multi[*Cursor[T]]
	pulled  int
}

// NewBuffer wraps an upstream sequence. Nothing is read until a cursor
// pulls.
func NewBuffer[T any](upstream iter.Seq2[T, error]) *Buffer[T] {
	next, stop := iter.Pull2(upstream)
	return &Buffer[T]{
		next:    next,
		stop:    stop,
		readers: NewMulti[*Cursor[T]](),
	}
}

// Completed returns a buffer that already holds all of its items.
func Completed[T any](items []T) *Buffer[T] {
	return &Buffer[T]{
		items:   append([]T(nil), items...),
		done:    true,
		readers: NewMulti[*Cursor[T]](),
	}
}

// Cursor registers a new reader positioned at the first item.
func (b *Buffer[T]) Cursor() *Cursor[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := &Cursor[T]{buf: b}
	b.readers.AddReceiver(c)
	return c
}

// Snapshot returns the items buffered so far.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]T(nil), b.items...)
}

// Done reports whether upstream is exhausted.
func (b *Buffer[T]) Done() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// Err returns the upstream error, if any.
func (b *Buffer[T]) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Pulled returns how many items were read from upstream.
func (b *Buffer[T]) Pulled() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pulled
}

// Drain reads the rest of upstream and returns every item.
func (b *Buffer[T]) Drain() ([]T, error) {
	c := b.Cursor()
	for {
		_, ok, err := c.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return b.Snapshot(), nil
		}
	}
}

// Close releases upstream. Buffered items stay readable.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finish(nil)
}

func (b *Buffer[T]) finish(err error) {
	if b.stop != nil {
		b.stop()
		b.stop = nil
		b.next = nil
	}
	b.done = true
	if err != nil && b.err == nil {
		b.err = err
	}
}

// advance pulls one item from upstream for the waiting readers. The
// caller holds mu.
func (b *Buffer[T]) advance() {
	if b.done || !b.readers.AnyPulling() {
		return
	}
	item, err, ok := b.next()
	switch {
	case !ok:
		b.finish(nil)
	case err != nil:
		b.finish(err)
	default:
		b.pulled++
		b.items = append(b.items, item)
	}
}

// Cursor is one reader's position in a Buffer.
type Cursor[T any] struct {
	buf *Buffer[T]
	pos int
}

// Next returns the reader's next item. It returns false when upstream is
// exhausted, and the upstream error once the buffered items are consumed.
func (c *Cursor[T]) Next() (T, bool, error) {
	b := c.buf
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	b.readers.RecordPull(c)
	defer b.readers.SetNotPulling(c)

	if c.pos >= len(b.items) {
		b.advance()
	}
	if c.pos < len(b.items) {
		item := b.items[c.pos]
		c.pos++
		return item, true, nil
	}
	return zero, false, b.err
}

// Position returns how many items the reader has consumed.
func (c *Cursor[T]) Position() int {
	return c.pos
}
