package transport

import (
	"fmt"
	"sync"

	"github.com/starford/raido/internal/apperr"
)

// Memory keeps frames in process. It backs tests and the "memory" kind. Like
// the shared file it holds only the latest frame unless WithHistory asks for
// more.
type Memory struct {
	mu       sync.Mutex
	capacity int
	history  int
	frames   [][]byte
	failNext error
	closed   bool
}

// MemoryOption configures a Memory transport.
type MemoryOption func(*Memory)

// WithHistory keeps the n most recent frames instead of only the last one.
func WithHistory(n int) MemoryOption {
	return func(m *Memory) {
		if n > 1 {
			m.history = n
		}
	}
}

func NewMemory(capacity int, opts ...MemoryOption) *Memory {
	if capacity < MinCapacity {
		capacity = MinCapacity
	}
	m := &Memory{capacity: capacity, history: 1}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Write(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("transport: memory: %w", apperr.ErrClosed)
	}
	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}
	if len(frame) > m.capacity {
		return fmt.Errorf("transport: memory: %d > %d: %w", len(frame), m.capacity, apperr.ErrFrameTooLarge)
	}
	if len(m.frames) >= m.history {
		n := copy(m.frames, m.frames[len(m.frames)-m.history+1:])
		clear(m.frames[n:])
		m.frames = m.frames[:n]
	}
	m.frames = append(m.frames, append([]byte(nil), frame...))
	return nil
}

func (m *Memory) Capacity() int { return m.capacity }

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// FailNext makes the next Write return err.
func (m *Memory) FailNext(err error) {
	m.mu.Lock()
	m.failNext = err
	m.mu.Unlock()
}

// Frames returns copies of the retained frames, oldest first.
func (m *Memory) Frames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.frames))
	for i, f := range m.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Last returns the most recent frame.
func (m *Memory) Last() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.frames) == 0 {
		return nil, false
	}
	return append([]byte(nil), m.frames[len(m.frames)-1]...), true
}
