package api

import (
	"github.com/starford/raido/internal/archive"
	"github.com/starford/raido/internal/relayservice"
)

// SnapshotDetail is the last published snapshot (aliased from the service layer).
type SnapshotDetail = relayservice.SnapshotDetail

// MetadataDetail is the cache state of one model file (aliased from the service layer).
type MetadataDetail = relayservice.MetadataDetail

// TrackResponse wraps archived positions.
type TrackResponse struct {
	Registration string               `json:"registration"`
	Points       []archive.TrackPoint `json:"points" validate:"required"`
}

// ModelFilesResponse wraps recorded model file outcomes.
type ModelFilesResponse struct {
	Files []archive.ModelFile `json:"files" validate:"required"`
}

// ForgetMissingResponse reports how many missing markers were cleared.
type ForgetMissingResponse struct {
	Cleared int `json:"cleared" example:"3"`
}
