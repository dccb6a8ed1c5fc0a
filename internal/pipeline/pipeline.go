// Package pipeline wires the sampler, metadata cache, loader, snapshot store
// and publisher into one owned unit with an explicit lifecycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/raido/internal/metacache"
	"github.com/starford/raido/internal/metaloader"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/publisher"
	"github.com/starford/raido/internal/sampler"
	"github.com/starford/raido/internal/snapshot"
	"github.com/starford/raido/internal/transport"
)

// Config holds everything New needs. Source and Transport are required.
type Config struct {
	Source    sampler.Source
	Transport transport.Transport
	Logger    *slog.Logger

	CacheCapacity int
	QueueSize     int
	Fields        []string

	FetchAI     bool
	FetchAIInfo bool
	Verbose     bool

	// Hooks run on the publisher or loader goroutine. OnEvict runs while
	// the cache's write lock is held and must not call back into the cache.
	OnPublish    []func(models.Snapshot)
	OnLoad       []func(metaloader.Event)
	OnEvict      []func(metacache.Key)
	OnTerminated []func()
}

// Stats aggregates the counters of every component.
type Stats struct {
	Cache     metacache.Stats  `json:"cache"`
	Loader    metaloader.Stats `json:"loader"`
	Store     snapshot.Stats   `json:"store"`
	Publisher publisher.Stats  `json:"publisher"`
	Sampler   sampler.Stats    `json:"sampler"`
}

// Pipeline owns one instance of every component.
type Pipeline struct {
	cache     *metacache.Cache
	loader    *metaloader.Loader
	store     *snapshot.Store
	publisher *publisher.Publisher
	sampler   *sampler.Sampler
	enricher  *metaloader.Enricher
	tr        transport.Transport
	logger    *slog.Logger
}

// New builds the pipeline and starts the loader worker and the publisher.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Source == nil {
		return nil, errors.New("pipeline: source is required")
	}
	if cfg.Transport == nil {
		return nil, errors.New("pipeline: transport is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := metacache.New(cfg.CacheCapacity, metacache.WithEvictFunc(func(k metacache.Key) {
		for _, fn := range cfg.OnEvict {
			fn(k)
		}
	}))
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	loader := metaloader.New(cache,
		metaloader.WithQueueSize(cfg.QueueSize),
		metaloader.WithLogger(logger),
		metaloader.WithNotify(func(ev metaloader.Event) {
			for _, fn := range cfg.OnLoad {
				fn(ev)
			}
		}))

	store := snapshot.NewStore()

	pubOpts := []publisher.Option{publisher.WithLogger(logger)}
	for _, fn := range cfg.OnPublish {
		pubOpts = append(pubOpts, publisher.WithObserver(fn))
	}
	for _, fn := range cfg.OnTerminated {
		pubOpts = append(pubOpts, publisher.WithTerminated(fn))
	}
	pub := publisher.New(store, cfg.Transport, pubOpts...)

	enricher := metaloader.NewEnricher(cache, loader, cfg.Source, cfg.Fields)
	smp := sampler.New(cfg.Source, store,
		sampler.WithLogger(logger),
		sampler.WithEnricher(enricher),
		sampler.WithFetchAI(cfg.FetchAI, cfg.FetchAIInfo),
		sampler.WithVerbose(cfg.Verbose))

	pub.Start()
	logger.Info("pipeline: started",
		slog.Int("cache_capacity", cfg.CacheCapacity),
		slog.Int("transport_capacity", cfg.Transport.Capacity()))

	return &Pipeline{
		cache:     cache,
		loader:    loader,
		store:     store,
		publisher: pub,
		sampler:   smp,
		enricher:  enricher,
		tr:        cfg.Transport,
		logger:    logger,
	}, nil
}

// Sample runs one sampling cycle. It never blocks on I/O.
func (p *Pipeline) Sample() bool { return p.sampler.Sample() }

// Run samples every period until ctx is done.
func (p *Pipeline) Run(ctx context.Context, period time.Duration) error {
	return p.sampler.Run(ctx, period)
}

// Shutdown writes the final frame, stops the loader and closes the
// transport. The sampler must be stopped first.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	var errs []error
	if err := p.publisher.Terminate(ctx); err != nil {
		errs = append(errs, err)
	}
	p.loader.Close()
	if err := p.tr.Close(); err != nil {
		errs = append(errs, fmt.Errorf("pipeline: close transport: %w", err))
	}
	p.logger.Info("pipeline: stopped")
	return errors.Join(errs...)
}

func (p *Pipeline) Cache() *metacache.Cache         { return p.cache }
func (p *Pipeline) Loader() *metaloader.Loader      { return p.loader }
func (p *Pipeline) Store() *snapshot.Store          { return p.store }
func (p *Pipeline) Publisher() *publisher.Publisher { return p.publisher }

// Fields returns the metadata fields requested from model files.
func (p *Pipeline) Fields() []string { return p.enricher.Fields() }

func (p *Pipeline) Stats() Stats {
	return Stats{
		Cache:     p.cache.Stats(),
		Loader:    p.loader.Stats(),
		Store:     p.store.Stats(),
		Publisher: p.publisher.Stats(),
		Sampler:   p.sampler.Stats(),
	}
}
