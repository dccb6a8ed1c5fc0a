// Package pipelinetest builds small running pipelines for front-end tests.
package pipelinetest

import (
	"context"
	"testing"
	"time"

	"github.com/starford/raido/internal/pipeline"
	"github.com/starford/raido/internal/sampler"
	"github.com/starford/raido/internal/source"
	"github.com/starford/raido/internal/testutil"
	"github.com/starford/raido/internal/transport"
)

// Values returns a source with a valid user position and the given model
// path for the user aircraft.
func Values(modelPath string) *source.Values {
	return source.NewValues().
		SetFloat(sampler.RefLat, 48.35).
		SetFloat(sampler.RefLon, 11.78).
		SetFloat(sampler.RefElevation, 450).
		SetString(sampler.RefTailNumber, "D-EABC").
		SetModelPath(0, modelPath)
}

// New starts a pipeline over src writing to an in-memory transport. It is
// shut down when the test ends.
func New(t *testing.T, src sampler.Source) (*pipeline.Pipeline, *transport.Memory) {
	t.Helper()
	mem := transport.NewMemory(1 << 16)
	p, err := pipeline.New(pipeline.Config{
		Source:        src,
		Transport:     mem,
		Logger:        testutil.QuietLogger(),
		CacheCapacity: 8,
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	t.Cleanup(func() { p.Shutdown(context.Background()) })
	return p, mem
}

// Publish samples until a snapshot has been published.
func Publish(t *testing.T, p *pipeline.Pipeline) {
	t.Helper()
	testutil.Eventually(t, 2*time.Second, 5*time.Millisecond, func() bool {
		p.Sample()
		_, ok := p.Publisher().Last()
		return ok
	}, "no snapshot was published")
}

// Drain waits for queued metadata loads.
func Drain(t *testing.T, p *pipeline.Pipeline) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Loader().Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}
