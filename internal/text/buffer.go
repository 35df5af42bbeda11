package text

import "sync"

// Listener receives a snapshot and the change that produced it.
type Listener func(snap *Snapshot, change Change)

// Buffer is a thread-safe line buffer with a monotonic version.
//
// Listeners are invoked after the edit is committed, outside the state
// lock, in the order edits were applied. A listener must not call Apply
// on the same buffer synchronously.
type Buffer struct {
	mu   sync.RWMutex
	snap *Snapshot

	// notifyMu serializes delivery so concurrent Apply calls reach
	// listeners in commit order.
	notifyMu  sync.Mutex
	listeners []listenerEntry
	nextID    uint64
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithVersion sets the version of the initial snapshot. The default is 1.
func WithVersion(v uint64) Option {
	return func(b *Buffer) {
		b.snap.version = v
	}
}

// NewBuffer creates a buffer holding text.
func NewBuffer(text string, opts ...Option) *Buffer {
	b := &Buffer{snap: NewSnapshot(text, 1)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Snapshot returns the current snapshot.
func (b *Buffer) Snapshot() *Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap
}

// Version returns the current version.
func (b *Buffer) Version() uint64 {
	return b.Snapshot().Version()
}

// Text returns the current content.
func (b *Buffer) Text() string {
	return b.Snapshot().Text()
}

// Apply applies edits in order. Each edit's range refers to the document
// as left by the preceding edits. Either all edits are applied or none
// are. Each applied edit bumps the version and yields one Change.
func (b *Buffer) Apply(edits ...Edit) (*Snapshot, []Change, error) {
	b.mu.Lock()
	cur := b.snap
	type step struct {
		snap   *Snapshot
		change Change
	}
	steps := make([]step, 0, len(edits))
	for _, e := range edits {
		if e.IsNoOp() {
			continue
		}
		next, change, err := cur.apply(e, cur.version+1)
		if err != nil {
			b.mu.Unlock()
			return nil, nil, err
		}
		steps = append(steps, step{snap: next, change: change})
		cur = next
	}
	b.snap = cur

	// Take the delivery lock before releasing the state lock so the
	// next Apply cannot overtake this one.
	b.notifyMu.Lock()
	b.mu.Unlock()
	defer b.notifyMu.Unlock()

	changes := make([]Change, len(steps))
	for i, s := range steps {
		changes[i] = s.change
		for _, l := range b.listeners {
			l.fn(s.snap, s.change)
		}
	}
	return cur, changes, nil
}

// Replace replaces the whole content with text.
func (b *Buffer) Replace(text string) (*Snapshot, []Change, error) {
	cur := b.Snapshot()
	return b.Apply(NewEdit(Range{Start: Point{}, End: cur.End()}, text))
}

// Subscribe registers fn for every future change. The returned function
// removes the subscription.
func (b *Buffer) Subscribe(fn Listener) (unsubscribe func()) {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()

	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, listenerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.notifyMu.Lock()
			defer b.notifyMu.Unlock()
			for i, l := range b.listeners {
				if l.id == id {
					b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
					return
				}
			}
		})
	}
}
