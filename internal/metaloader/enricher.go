package metaloader

import (
	"strings"

	"github.com/starford/raido/internal/metacache"
	"github.com/starford/raido/internal/models"
)

// Metadata fields read from aircraft model files.
const (
	FieldName       = "acf/_name"
	FieldICAO       = "acf/_ICAO"
	FieldTailNumber = "acf/_tailnum"
	FieldHelicopter = "acf/_is_helicopter"
	FieldEngineType = "_engn/0/_type"
)

// DefaultFields is the field set requested when none is configured.
var DefaultFields = []string{FieldName, FieldICAO, FieldTailNumber, FieldHelicopter, FieldEngineType}

// PathResolver maps a subject index to its model file path. Index 0 is the
// user aircraft. An empty path means the subject has no model file.
type PathResolver interface {
	ModelPath(index int) string
}

// Cache is the read side of the metadata cache used on the sampling path.
type Cache interface {
	Lookup(key metacache.Key) (metacache.Record, bool)
	IsNegative(key metacache.Key) bool
}

// Submitter queues background loads.
type Submitter interface {
	Submit(key metacache.Key, path string, fields []string) bool
}

// Enricher merges cached model metadata into aircraft records. It never
// blocks: on a miss it queues a load and leaves the record untouched.
type Enricher struct {
	cache  Cache
	loader Submitter
	paths  PathResolver
	fields []string
}

// NewEnricher creates an Enricher. A nil or empty fields slice selects
// DefaultFields.
func NewEnricher(cache Cache, loader Submitter, paths PathResolver, fields []string) *Enricher {
	if len(fields) == 0 {
		fields = DefaultFields
	}
	return &Enricher{cache: cache, loader: loader, paths: paths, fields: fields}
}

// Fields returns the requested field set.
func (e *Enricher) Fields() []string { return e.fields }

// Enrich applies metadata for the subject at index to ac. It reports whether
// cached metadata was applied.
func (e *Enricher) Enrich(ac *models.Aircraft, index int) bool {
	path := e.paths.ModelPath(index)
	if path == "" {
		return false
	}
	key := metacache.KeyFor(path)

	if rec, ok := e.cache.Lookup(key); ok {
		Apply(ac, rec)
		return true
	}
	if e.cache.IsNegative(key) {
		return false
	}
	e.loader.Submit(key, path, e.fields)
	return false
}

// Apply overwrites the identity fields of ac with values from rec. The
// registration is only filled when the simulator did not provide one.
func Apply(ac *models.Aircraft, rec metacache.Record) {
	ac.Title = rec.Value(FieldName)
	ac.Model = rec.Value(FieldICAO)

	if ac.Registration == "" {
		ac.Registration = rec.Value(FieldTailNumber)
	}

	ac.EngineType = EngineTypeFor(rec.Value(FieldEngineType))

	if strings.TrimSpace(rec.Value(FieldHelicopter)) == "1" {
		ac.Category = models.CategoryHelicopter
	} else {
		ac.Category = models.CategoryAirplane
	}
}

// EngineTypeFor maps the first-engine type token of a model file, e.g.
// "JET_HIB", "TRB_FIX" or "RCP_INJ".
func EngineTypeFor(token string) models.EngineType {
	switch {
	case strings.HasPrefix(token, "JET"), strings.HasPrefix(token, "ROC"):
		return models.EngineJet
	case strings.HasPrefix(token, "RCP"):
		return models.EnginePiston
	case strings.HasPrefix(token, "TRB"):
		return models.EngineTurboprop
	default:
		return models.EngineUnsupported
	}
}
