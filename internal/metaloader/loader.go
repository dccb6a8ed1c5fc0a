// Package metaloader loads aircraft model metadata on a single background
// worker and installs the results into the metadata cache.
//
// Concurrency model: one mutex guards both the job queue and the set of keys
// currently loading, and a sync.Cond wakes the worker. Submit never blocks on
// I/O; only Drain and Close wait.
package metaloader

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/starford/raido/internal/metacache"
	"github.com/starford/raido/internal/parser"
)

// DefaultQueueSize bounds the number of queued jobs.
const DefaultQueueSize = 64

// Sink holds the outcome of loads. Submit consults it under the loader lock,
// so a key that was installed or marked negative after the caller's own
// cache check is not loaded twice. Results land only if the key's
// generation is unchanged since Submit.
type Sink interface {
	Contains(key metacache.Key) bool
	IsNegative(key metacache.Key) bool
	Generation(key metacache.Key) uint64
	InstallIfCurrent(key metacache.Key, gen uint64, rec metacache.Record) bool
	MarkNegativeIfCurrent(key metacache.Key, gen uint64) bool
}

// ParseFunc reads the requested fields of a metadata file.
type ParseFunc func(path string, fields []string) (map[string]string, error)

// Event reports the outcome of one job.
type Event struct {
	Key   metacache.Key
	Path  string
	Found bool
	// Stale is set when the key was invalidated while it loaded and the
	// result was dropped.
	Stale bool
	Err   error
}

// Stats is a point-in-time view of loader counters.
type Stats struct {
	Submitted    uint64 `json:"submitted"`
	Deduplicated uint64 `json:"deduplicated"`
	Rejected     uint64 `json:"rejected"`
	Loaded       uint64 `json:"loaded"`
	Failed       uint64 `json:"failed"`
	Discarded    uint64 `json:"discarded"`
	Queued       int    `json:"queued"`
	Loading      int    `json:"loading"`
}

type job struct {
	key    metacache.Key
	path   string
	fields []string
	gen    uint64
}

// Option configures a Loader.
type Option func(*Loader)

// WithQueueSize sets the maximum number of queued jobs.
func WithQueueSize(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.queueSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithParseFunc replaces the file parser.
func WithParseFunc(fn ParseFunc) Option {
	return func(l *Loader) { l.parse = fn }
}

// WithNotify registers a callback run on the worker after each job.
func WithNotify(fn func(Event)) Option {
	return func(l *Loader) { l.notify = fn }
}

// Loader is a bounded job queue drained by exactly one worker goroutine.
type Loader struct {
	sink      Sink
	parse     ParseFunc
	notify    func(Event)
	logger    *slog.Logger
	queueSize int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []job
	loading map[metacache.Key]struct{}
	busy    bool
	closed  bool
	stats   Stats

	done chan struct{}
}

// New creates a Loader and starts its worker.
func New(sink Sink, opts ...Option) *Loader {
	l := &Loader{
		sink:      sink,
		parse:     parseFile,
		logger:    slog.Default(),
		queueSize: DefaultQueueSize,
		loading:   make(map[metacache.Key]struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.cond = sync.NewCond(&l.mu)

	go l.run()
	return l
}

func parseFile(path string, fields []string) (map[string]string, error) {
	res, err := parser.ParseFile(path, fields)
	if err != nil {
		return nil, err
	}
	return res.Values, nil
}

// Submit queues a load for key unless one is already in flight or the sink
// already holds a positive or negative entry for it. It never blocks on I/O
// and reports whether a job was queued.
func (l *Loader) Submit(key metacache.Key, path string, fields []string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		l.stats.Rejected++
		return false
	}
	if _, ok := l.loading[key]; ok {
		l.stats.Deduplicated++
		return false
	}
	if l.sink.Contains(key) || l.sink.IsNegative(key) {
		l.stats.Deduplicated++
		return false
	}
	if len(l.queue) >= l.queueSize {
		l.stats.Rejected++
		return false
	}

	l.loading[key] = struct{}{}
	l.queue = append(l.queue, job{key: key, path: path, fields: fields, gen: l.sink.Generation(key)})
	l.stats.Submitted++
	l.cond.Broadcast()
	return true
}

// IsLoading reports whether key is queued or being parsed.
func (l *Loader) IsLoading(key metacache.Key) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.loading[key]
	return ok
}

func (l *Loader) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if l.closed {
			l.mu.Unlock()
			return
		}
		j := l.queue[0]
		l.queue[0] = job{}
		l.queue = l.queue[1:]
		l.busy = true
		l.mu.Unlock()

		ev := l.load(j)

		l.mu.Lock()
		delete(l.loading, j.key)
		l.busy = false
		switch {
		case ev.Stale:
			l.stats.Discarded++
		case ev.Found:
			l.stats.Loaded++
		default:
			l.stats.Failed++
		}
		l.cond.Broadcast()
		l.mu.Unlock()

		if l.notify != nil {
			l.notify(ev)
		}
	}
}

// load parses one file and hands the outcome to the sink. The sink is updated
// before the key leaves the loading set so a concurrent miss cannot resubmit.
func (l *Loader) load(j job) Event {
	ev := Event{Key: j.key, Path: j.path}

	values, err := l.parse(j.path, j.fields)
	var landed bool
	switch {
	case err != nil:
		ev.Err = err
		landed = l.sink.MarkNegativeIfCurrent(j.key, j.gen)
		l.logger.Debug("metaloader: load failed",
			slog.String("path", j.path),
			slog.String("error", err.Error()))
	case len(values) == 0:
		ev.Err = errNoFields
		landed = l.sink.MarkNegativeIfCurrent(j.key, j.gen)
		l.logger.Debug("metaloader: no fields found", slog.String("path", j.path))
	default:
		ev.Found = true
		landed = l.sink.InstallIfCurrent(j.key, j.gen, metacache.NewRecord(values))
		l.logger.Debug("metaloader: loaded",
			slog.String("path", j.path),
			slog.Int("fields", len(values)))
	}
	if !landed {
		ev.Stale = true
		ev.Found = false
		l.logger.Debug("metaloader: discarded result for invalidated key", slog.String("path", j.path))
	}
	return ev
}

var errNoFields = errors.New("metaloader: no requested fields found")

// Drain blocks until the queue is empty and the worker is idle, or ctx ends.
func (l *Loader) Drain(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		l.mu.Lock()
		l.cond.Broadcast()
		l.mu.Unlock()
	})
	defer stop()

	l.mu.Lock()
	defer l.mu.Unlock()
	for (len(l.queue) > 0 || l.busy) && !l.closed {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.cond.Wait()
	}
	return nil
}

// Close stops accepting jobs, drops queued ones and waits for the job in
// flight to finish. It is safe to call more than once.
func (l *Loader) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		for _, j := range l.queue {
			delete(l.loading, j.key)
		}
		if n := len(l.queue); n > 0 {
			l.logger.Debug("metaloader: dropped queued jobs", slog.Int("count", n))
		}
		l.queue = nil
		l.cond.Broadcast()
	}
	l.mu.Unlock()

	<-l.done
}

// Stats returns the current counters.
func (l *Loader) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.stats
	st.Queued = len(l.queue)
	st.Loading = len(l.loading)
	return st
}
