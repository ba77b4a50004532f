package recognition

import "sync"

// Mailbox is a single-slot queue. Put never blocks: an unread value is
// replaced, so a reader always gets the newest one.
type Mailbox[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	value  T
	full   bool
	closed bool
}

func NewMailbox[T any]() *Mailbox[T] {
	m := &Mailbox[T]{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Put stores v and reports whether an unread value was dropped
func (m *Mailbox[T]) Put(v T) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	dropped := m.full
	m.value = v
	m.full = true
	m.cond.Signal()
	return dropped
}

// Take blocks until a value is available. It returns false once the
// mailbox is closed.
func (m *Mailbox[T]) Take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for !m.full && !m.closed {
		m.cond.Wait()
	}
	var zero T
	if m.closed {
		return zero, false
	}
	v := m.value
	m.value = zero
	m.full = false
	return v, true
}

// Close wakes every waiting Take
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}
