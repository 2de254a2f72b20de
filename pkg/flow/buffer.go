package flow

import (
	"slices"
	"sync"
)

// WindowBuffer holds the contexts buffered per window id. It is owned by one runner
// invocation; the lock only guards against accidental sharing.
type WindowBuffer[T any] struct {
	mu      sync.Mutex
	order   []string
	windows map[string][]*Context[T]
	fresh   map[string]int
}

// NewWindowBuffer creates an empty buffer.
func NewWindowBuffer[T any]() *WindowBuffer[T] {
	return &WindowBuffer[T]{
		windows: make(map[string][]*Context[T]),
		fresh:   make(map[string]int),
	}
}

// Add appends fc to the window and returns the buffered contexts.
func (b *WindowBuffer[T]) Add(windowID string, fc *Context[T]) []*Context[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.windows[windowID]; !ok {
		b.order = append(b.order, windowID)
	}

	b.windows[windowID] = append(b.windows[windowID], fc)
	b.fresh[windowID]++

	return slices.Clone(b.windows[windowID])
}

// Get returns the buffered contexts of a window.
func (b *WindowBuffer[T]) Get(windowID string) []*Context[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	return slices.Clone(b.windows[windowID])
}

// Set replaces the buffered contexts of a window.
func (b *WindowBuffer[T]) Set(windowID string, buffered []*Context[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.windows[windowID]; !ok {
		b.order = append(b.order, windowID)
	}

	b.windows[windowID] = slices.Clone(buffered)
}

// Clear empties a window.
func (b *WindowBuffer[T]) Clear(windowID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.windows[windowID]; ok {
		b.windows[windowID] = nil
	}

	b.fresh[windowID] = 0
}

// Triggered marks every context buffered so far as aggregated. Contexts a sliding
// window retains after a trigger do not make it pending again.
func (b *WindowBuffer[T]) Triggered(windowID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.fresh[windowID] = 0
}

// Len returns the number of contexts buffered in a window.
func (b *WindowBuffer[T]) Len(windowID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.windows[windowID])
}

// Pending returns, in first-buffered order, the ids of windows holding contexts
// added since their last trigger.
func (b *WindowBuffer[T]) Pending() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ids []string

	for _, id := range b.order {
		if len(b.windows[id]) > 0 && b.fresh[id] > 0 {
			ids = append(ids, id)
		}
	}

	return ids
}
