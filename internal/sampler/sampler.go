// Package sampler reads one telemetry snapshot per tick from the simulator
// source and hands it to the snapshot store.
package sampler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/starford/raido/internal/models"
)

const (
	MinPeriod     = 50 * time.Millisecond
	DefaultPeriod = 200 * time.Millisecond

	reportInterval = 10 * time.Second
)

// Store receives sampled snapshots without blocking.
type Store interface {
	TryUpdate(snap models.Snapshot) bool
}

// Enricher applies cached model metadata to an aircraft.
type Enricher interface {
	Enrich(ac *models.Aircraft, index int) bool
}

// Stats is a point-in-time view of sampler counters.
type Stats struct {
	Samples uint64 `json:"samples"`
	Invalid uint64 `json:"invalid"`
	Drops   uint64 `json:"drops"`
}

// Option configures a Sampler.
type Option func(*Sampler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sampler) { s.logger = logger }
}

// WithEnricher enables metadata enrichment of the user and, with
// WithFetchAI(true, true), of traffic.
func WithEnricher(e Enricher) Option {
	return func(s *Sampler) { s.enricher = e }
}

// WithFetchAI controls whether traffic is read and whether traffic is
// enriched from model files.
func WithFetchAI(fetch, info bool) Option {
	return func(s *Sampler) {
		s.fetchAI = fetch
		s.fetchAIInfo = fetch && info
	}
}

// WithVerbose turns on the periodic aircraft report.
func WithVerbose(v bool) Option {
	return func(s *Sampler) { s.verbose = v }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

// Sampler fills snapshots. Sample must not be called concurrently.
type Sampler struct {
	src      Source
	store    Store
	enricher Enricher
	logger   *slog.Logger
	now      func() time.Time

	fetchAI     bool
	fetchAIInfo bool
	verbose     bool
	lastReport  time.Time

	samples atomic.Uint64
	invalid atomic.Uint64
	drops   atomic.Uint64
}

func New(src Source, store Store, opts ...Option) *Sampler {
	s := &Sampler{
		src:     src,
		store:   store,
		logger:  slog.Default(),
		now:     time.Now,
		fetchAI: true,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ClampPeriod keeps a configured period at or above MinPeriod. Zero selects
// DefaultPeriod.
func ClampPeriod(d time.Duration) time.Duration {
	if d == 0 {
		return DefaultPeriod
	}
	return max(d, MinPeriod)
}

// Fill reads the current snapshot. The result is the empty sentinel when the
// user aircraft has no valid position.
func (s *Sampler) Fill() models.Snapshot {
	if a, ok := s.src.(Advancer); ok {
		a.Advance()
	}

	xp12 := isXPlane12(s.src)
	user, ok := s.fillUser(xp12)
	if !ok {
		return models.EmptySnapshot()
	}
	if s.enricher != nil {
		s.enricher.Enrich(&user.Aircraft, 0)
	}

	snap := models.Snapshot{User: user}
	if !s.fetchAI {
		return snap
	}

	flags := simFlag(xp12)
	nextID := uint32(1)
	if b, ok := s.boat(carrierIndex, RefCarrierDeck, models.CategoryCarrier, flags); ok {
		b.ObjectID = nextID
		snap.AI = append(snap.AI, b)
		nextID++
	}
	if b, ok := s.boat(frigateIndex, RefFrigateDeck, models.CategoryFrigate, flags); ok {
		b.ObjectID = nextID
		snap.AI = append(snap.AI, b)
		nextID++
	}

	// The TCAS count includes the user.
	if count := s.src.Int(RefTCASCount); s.src.Has(RefTCASModeC) && count > 1 {
		snap.AI = s.tcasTraffic(count, flags, &nextID, snap.AI)
	} else {
		snap.AI = s.legacyTraffic(flags, &nextID, snap.AI)
	}
	return snap
}

// Sample fills one snapshot and offers it to the store. It reports whether
// a valid snapshot was stored.
func (s *Sampler) Sample() bool {
	s.samples.Add(1)
	snap := s.Fill()
	valid := !snap.IsEmpty()
	if !valid {
		s.invalid.Add(1)
	}

	if !s.store.TryUpdate(snap) {
		s.drops.Add(1)
		return false
	}
	if valid && s.verbose {
		s.report(snap)
	}
	return valid
}

// Run samples every period until ctx is done.
func (s *Sampler) Run(ctx context.Context, period time.Duration) error {
	period = ClampPeriod(period)
	s.logger.Info("sampler: started", slog.Duration("period", period))

	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sampler: stopped", slog.Uint64("samples", s.samples.Load()))
			return nil
		case <-t.C:
			s.Sample()
		}
	}
}

func (s *Sampler) Stats() Stats {
	return Stats{
		Samples: s.samples.Load(),
		Invalid: s.invalid.Load(),
		Drops:   s.drops.Load(),
	}
}

func (s *Sampler) report(snap models.Snapshot) {
	now := s.now()
	if now.Sub(s.lastReport) < reportInterval {
		return
	}
	s.lastReport = now

	u := snap.User
	s.logger.Info("sampler: user aircraft",
		slog.Uint64("id", uint64(u.ObjectID)),
		slog.String("model", u.Model),
		slog.String("registration", u.Registration),
		slog.Any("position", u.Position))

	if len(snap.AI) == 0 {
		s.logger.Info("sampler: no traffic")
		return
	}
	for _, ac := range snap.AI {
		s.logger.Info("sampler: traffic",
			slog.Uint64("id", uint64(ac.ObjectID)),
			slog.String("category", ac.Category.String()),
			slog.String("model", ac.Model),
			slog.String("registration", ac.Registration),
			slog.Any("position", ac.Position))
	}
}
