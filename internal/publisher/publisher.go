// Package publisher runs the goroutine that turns stored snapshots into frames
// on the transport.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/frame"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/snapshot"
	"github.com/starford/raido/internal/transport"
)

// State is the position of the publish loop.
type State int32

const (
	StateIdle State = iota
	StateWoken
	StateSerializing
	StateWriting
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWoken:
		return "woken"
	case StateSerializing:
		return "serializing"
	case StateWriting:
		return "writing"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Stats is a point-in-time view of publisher counters.
type Stats struct {
	Published   uint64 `json:"published"`
	Oversize    uint64 `json:"oversize"`
	WriteErrors uint64 `json:"write_errors"`
	Bytes       uint64 `json:"bytes"`
	LastFrame   uint64 `json:"last_frame_bytes"`
	State       string `json:"state"`
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithObserver registers fn to run after every successful non-final write.
// Observers run on the publisher goroutine with no locks held.
func WithObserver(fn func(models.Snapshot)) Option {
	return func(p *Publisher) { p.observers = append(p.observers, fn) }
}

// WithTerminated registers fn to run once after the final frame is written.
func WithTerminated(fn func()) Option {
	return func(p *Publisher) { p.onTerminated = append(p.onTerminated, fn) }
}

// Publisher owns the publish goroutine.
type Publisher struct {
	store        *snapshot.Store
	tr           transport.Transport
	logger       *slog.Logger
	observers    []func(models.Snapshot)
	onTerminated []func()

	state     atomic.Int32
	startOnce sync.Once
	termOnce  sync.Once
	done      chan struct{}

	lastMu  sync.RWMutex
	last    models.Snapshot
	hasLast bool

	published   atomic.Uint64
	oversize    atomic.Uint64
	writeErrors atomic.Uint64
	bytes       atomic.Uint64
	lastFrame   atomic.Uint64
}

// New builds a publisher reading from store and writing to tr. Call Start to
// run it.
func New(store *snapshot.Store, tr transport.Transport, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		tr:     tr,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start launches the publish goroutine. Further calls do nothing.
func (p *Publisher) Start() {
	p.startOnce.Do(func() { go p.run() })
}

// Terminate closes the store, waits for the final terminated frame and for
// the goroutine to exit. It is safe to call more than once.
func (p *Publisher) Terminate(ctx context.Context) error {
	p.termOnce.Do(func() {
		p.state.Store(int32(StateShuttingDown))
		p.store.Close()
		p.Start()
	})
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publisher: terminate: %w", ctx.Err())
	}
}

// Done is closed once the goroutine has exited.
func (p *Publisher) Done() <-chan struct{} { return p.done }

func (p *Publisher) State() State { return State(p.state.Load()) }

// Last returns a copy of the most recently published snapshot.
func (p *Publisher) Last() (models.Snapshot, bool) {
	p.lastMu.RLock()
	defer p.lastMu.RUnlock()
	if !p.hasLast {
		return models.EmptySnapshot(), false
	}
	return p.last.Clone(), true
}

func (p *Publisher) Stats() Stats {
	return Stats{
		Published:   p.published.Load(),
		Oversize:    p.oversize.Load(),
		WriteErrors: p.writeErrors.Load(),
		Bytes:       p.bytes.Load(),
		LastFrame:   p.lastFrame.Load(),
		State:       p.State().String(),
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	p.logger.Info("publisher: started", slog.Int("capacity", p.tr.Capacity()))

	for {
		p.setState(StateIdle)
		snap, open := p.store.Wait()
		if !open {
			p.setState(StateShuttingDown)
			p.final(snap)
			p.logger.Info("publisher: stopped", slog.Uint64("published", p.published.Load()))
			return
		}
		p.setState(StateWoken)
		if snap.IsEmpty() {
			continue
		}

		p.setState(StateSerializing)
		buf := frame.Encode(frame.EncodeSnapshot(snap), false)

		p.setState(StateWriting)
		if err := p.write(buf); err != nil {
			continue
		}
		p.remember(snap)
		for _, fn := range p.observers {
			fn(snap)
		}
	}
}

// final writes the end-of-stream frame. When the held snapshot does not fit,
// a header-only frame still marks the end.
func (p *Publisher) final(snap models.Snapshot) {
	buf := frame.Encode(frame.EncodeSnapshot(snap), true)
	if len(buf) > p.tr.Capacity() {
		buf = frame.Encode(nil, true)
	}
	if err := p.write(buf); err == nil && !snap.IsEmpty() {
		p.remember(snap)
	}
	for _, fn := range p.onTerminated {
		fn()
	}
}

func (p *Publisher) write(buf []byte) error {
	if len(buf) > p.tr.Capacity() {
		p.oversize.Add(1)
		p.logger.Warn("publisher: frame too large",
			slog.Int("size", len(buf)),
			slog.Int("capacity", p.tr.Capacity()))
		return apperr.ErrFrameTooLarge
	}
	if err := p.tr.Write(buf); err != nil {
		if errors.Is(err, apperr.ErrFrameTooLarge) {
			p.oversize.Add(1)
		} else {
			p.writeErrors.Add(1)
		}
		p.logger.Warn("publisher: write failed", slog.String("error", err.Error()))
		return err
	}
	p.published.Add(1)
	p.bytes.Add(uint64(len(buf)))
	p.lastFrame.Store(uint64(len(buf)))
	return nil
}

func (p *Publisher) remember(snap models.Snapshot) {
	p.lastMu.Lock()
	p.last = snap
	p.hasLast = true
	p.lastMu.Unlock()
}

// setState leaves ShuttingDown sticky once Terminate has been called.
func (p *Publisher) setState(s State) {
	for {
		cur := p.state.Load()
		if State(cur) == StateShuttingDown && s != StateShuttingDown {
			return
		}
		if p.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}
