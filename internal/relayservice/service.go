// Package relayservice exposes read and maintenance operations over a running
// pipeline to the HTTP and MCP front ends.
package relayservice

import (
	"context"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/archive"
	"github.com/starford/raido/internal/metacache"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/pipeline"
)

// Metadata status values.
const (
	StatusCached  = "cached"
	StatusMissing = "missing"
	StatusLoading = "loading"
	StatusQueued  = "queued"
)

// MetadataDetail describes what the cache knows about one model file.
type MetadataDetail struct {
	Path   string            `json:"path"`
	Key    string            `json:"key"`
	Status string            `json:"status"`
	Fields map[string]string `json:"fields,omitempty"`
}

// SnapshotDetail is the last published snapshot with its summary counts.
type SnapshotDetail struct {
	Traffic  int             `json:"traffic"`
	State    string          `json:"publisher_state"`
	Snapshot models.Snapshot `json:"snapshot"`
}

// Service coordinates pipeline and archive access.
type Service struct {
	p  *pipeline.Pipeline
	db *archive.DB
}

// NewService creates a Service. db may be nil when archiving is disabled.
func NewService(p *pipeline.Pipeline, db *archive.DB) *Service {
	return &Service{p: p, db: db}
}

// Snapshot returns the last successfully published snapshot.
func (s *Service) Snapshot(_ context.Context) (*SnapshotDetail, error) {
	snap, ok := s.p.Publisher().Last()
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &SnapshotDetail{
		Traffic:  len(snap.AI),
		State:    s.p.Publisher().State().String(),
		Snapshot: snap,
	}, nil
}

// Stats returns the pipeline counters.
func (s *Service) Stats(_ context.Context) pipeline.Stats {
	return s.p.Stats()
}

// Metadata reports the cache state for a model file path without counting a
// cache hit or miss. With load set, an unknown path is queued for a background
// load.
func (s *Service) Metadata(_ context.Context, path string, load bool) (*MetadataDetail, error) {
	key := metacache.KeyFor(path)
	if key == "" {
		return nil, apperr.ErrNotFound
	}
	detail := &MetadataDetail{Path: path, Key: string(key)}

	cache := s.p.Cache()
	if rec, ok := cache.Peek(key); ok {
		detail.Status = StatusCached
		detail.Fields = rec.Map()
		return detail, nil
	}
	if cache.IsNegative(key) {
		detail.Status = StatusMissing
		return detail, nil
	}
	if s.p.Loader().IsLoading(key) {
		detail.Status = StatusLoading
		return detail, nil
	}
	if !load || !s.p.Loader().Submit(key, path, s.p.Fields()) {
		return nil, apperr.ErrNotFound
	}
	detail.Status = StatusQueued
	return detail, nil
}

// Invalidate drops the cached record or missing marker for path.
func (s *Service) Invalidate(_ context.Context, path string) error {
	key := metacache.KeyFor(path)
	if key == "" {
		return apperr.ErrNotFound
	}
	s.p.Cache().Invalidate(key)
	return nil
}

// ForgetMissing clears every missing marker and returns how many were held.
func (s *Service) ForgetMissing(_ context.Context) int {
	return s.p.Cache().InvalidateNegative()
}

// Track returns archived positions for a registration; empty selects the user
// aircraft.
func (s *Service) Track(_ context.Context, registration string, limit int) ([]archive.TrackPoint, error) {
	if s.db == nil {
		return nil, apperr.ErrDisabled
	}
	pts, err := s.db.Track(registration, limit)
	if err != nil {
		return nil, err
	}
	if pts == nil {
		pts = []archive.TrackPoint{}
	}
	return pts, nil
}

// ModelFiles lists the recorded load outcomes of model files.
func (s *Service) ModelFiles(_ context.Context, limit int) ([]archive.ModelFile, error) {
	if s.db == nil {
		return nil, apperr.ErrDisabled
	}
	files, err := s.db.ModelFiles(limit)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []archive.ModelFile{}
	}
	return files, nil
}
