package flow

import (
	"context"
	"sync"
)

type checkpoint struct {
	item  int
	pipe  int
	state State
}

// memoryStateManager is an in-memory StateManager recording every save.
type memoryStateManager struct {
	mu          sync.Mutex
	checkpoints map[string]checkpoint
	chunks      map[string]map[string]bool
	saves       []checkpoint
	saveErr     error
}

func newMemoryStateManager() *memoryStateManager {
	return &memoryStateManager{
		checkpoints: make(map[string]checkpoint),
		chunks:      make(map[string]map[string]bool),
	}
}

func (m *memoryStateManager) seed(key string, cp checkpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoints[key] = cp
}

func (m *memoryStateManager) current(key string) (checkpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp, ok := m.checkpoints[key]

	return cp, ok
}

func (m *memoryStateManager) LastProcessedItemIndex(_ context.Context, meta Metadata) (int, error) {
	cp, _ := m.current(CheckpointKey(meta))

	return cp.item, nil
}

func (m *memoryStateManager) LastProcessorIndex(_ context.Context, meta Metadata) (int, error) {
	cp, _ := m.current(CheckpointKey(meta))

	return cp.pipe, nil
}

func (m *memoryStateManager) LastState(_ context.Context, meta Metadata) (State, error) {
	cp, _ := m.current(CheckpointKey(meta))

	return cp.state, nil
}

func (m *memoryStateManager) SaveState(_ context.Context, meta Metadata, itemIndex, pipeIndex int, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}

	cp := checkpoint{item: itemIndex, pipe: pipeIndex, state: state}
	m.checkpoints[CheckpointKey(meta)] = cp
	m.saves = append(m.saves, cp)

	return nil
}

func (m *memoryStateManager) IsChunkProcessed(_ context.Context, meta Metadata, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.chunks[JobKey(meta)][hash], nil
}

func (m *memoryStateManager) MarkChunkProcessed(_ context.Context, meta Metadata, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := JobKey(meta)
	if m.chunks[key] == nil {
		m.chunks[key] = make(map[string]bool)
	}

	m.chunks[key][hash] = true

	return nil
}

func (m *memoryStateManager) processed(jobKey string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.chunks[jobKey])
}

// recorder collects values from pipes and hooks.
type recorder[V any] struct {
	mu     sync.Mutex
	values []V
}

func (r *recorder[V]) add(v V) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.values = append(r.values, v)
}

func (r *recorder[V]) all() []V {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]V(nil), r.values...)
}

func identity[T any](_ context.Context, fc *Context[T]) (*Context[T], error) {
	return fc, nil
}
