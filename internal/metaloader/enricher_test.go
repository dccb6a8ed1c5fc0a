package metaloader

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/raido/internal/metacache"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/testutil"
)

type pathMap map[int]string

func (p pathMap) ModelPath(i int) string { return p[i] }

// countingSubmitter wraps a Loader and counts Submit calls.
type countingSubmitter struct {
	l     *Loader
	calls atomic.Int32
}

func (c *countingSubmitter) Submit(key metacache.Key, path string, fields []string) bool {
	c.calls.Add(1)
	return c.l.Submit(key, path, fields)
}

func enricherEnv(t *testing.T, paths pathMap) (*Enricher, *metacache.Cache, *countingSubmitter) {
	t.Helper()
	cache, err := metacache.New(8)
	if err != nil {
		t.Fatal(err)
	}
	l := New(cache, WithLogger(testutil.QuietLogger()))
	t.Cleanup(l.Close)
	sub := &countingSubmitter{l: l}
	return NewEnricher(cache, sub, paths, nil), cache, sub
}

func waitIdle(t *testing.T, s *countingSubmitter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.l.Drain(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestEnrich_MissThenWarmHit(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteModelFile(t, dir, "Laminar Research/KingAir C90B/C90B.acf", map[string]string{
		FieldName:       "King Air C90B",
		FieldICAO:       "BE9L",
		FieldTailNumber: "N90KA",
		FieldHelicopter: "0",
		FieldEngineType: "TRB_FRE",
	})
	e, cache, sub := enricherEnv(t, pathMap{0: path})

	var ac models.Aircraft
	if e.Enrich(&ac, 0) {
		t.Fatal("first call should miss")
	}
	if ac.Title != "" || ac.Model != "" {
		t.Errorf("record changed on miss: %+v", ac)
	}
	waitIdle(t, sub)

	if !cache.Contains(metacache.KeyFor(path)) {
		t.Fatal("record should be cached after load")
	}
	if !e.Enrich(&ac, 0) {
		t.Fatal("second call should hit")
	}
	if ac.Title != "King Air C90B" || ac.Model != "BE9L" || ac.Registration != "N90KA" {
		t.Errorf("identity = %q/%q/%q", ac.Title, ac.Model, ac.Registration)
	}
	if ac.EngineType != models.EngineTurboprop {
		t.Errorf("engine = %v, want turboprop", ac.EngineType)
	}
	if ac.Category != models.CategoryAirplane {
		t.Errorf("category = %v, want airplane", ac.Category)
	}
	if got := sub.calls.Load(); got != 1 {
		t.Errorf("submits = %d, want 1", got)
	}
}

func TestEnrich_MissingFileSubmittedOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Missing", "missing.acf")
	e, cache, sub := enricherEnv(t, pathMap{3: path})

	var ac models.Aircraft
	e.Enrich(&ac, 3)
	waitIdle(t, sub)

	if !cache.IsNegative(metacache.KeyFor(path)) {
		t.Fatal("missing file should be negatively cached")
	}
	for i := 0; i < 20; i++ {
		if e.Enrich(&ac, 3) {
			t.Fatal("missing file should never hit")
		}
	}
	if got := sub.calls.Load(); got != 1 {
		t.Errorf("submits = %d, want 1", got)
	}
}

func TestEnrich_SharedModelFileLoadedOnce(t *testing.T) {
	path := testutil.WriteModelFile(t, t.TempDir(), "B738.acf", map[string]string{FieldICAO: "B738"})
	paths := pathMap{}
	for i := 1; i <= 19; i++ {
		paths[i] = path
	}
	e, _, sub := enricherEnv(t, paths)

	for i := 1; i <= 19; i++ {
		var ac models.Aircraft
		e.Enrich(&ac, i)
	}
	waitIdle(t, sub)

	if st := sub.l.Stats(); st.Submitted != 1 || st.Loaded != 1 {
		t.Errorf("stats = %+v, want one submitted and loaded job", st)
	}
}

func TestEnrich_NoModelPath(t *testing.T) {
	e, _, sub := enricherEnv(t, pathMap{})
	var ac models.Aircraft
	if e.Enrich(&ac, 5) {
		t.Error("subject without model file should not hit")
	}
	if sub.calls.Load() != 0 {
		t.Error("no load should be submitted without a path")
	}
}

func TestApply_KeepsSimulatorRegistration(t *testing.T) {
	ac := models.Aircraft{Registration: "D-EABC"}
	Apply(&ac, metacache.NewRecord(map[string]string{
		FieldTailNumber: "N12345",
		FieldHelicopter: "1",
		FieldEngineType: "JET_HIB",
	}))
	if ac.Registration != "D-EABC" {
		t.Errorf("registration = %q, want simulator value", ac.Registration)
	}
	if ac.Category != models.CategoryHelicopter {
		t.Errorf("category = %v, want helicopter", ac.Category)
	}
	if ac.EngineType != models.EngineJet {
		t.Errorf("engine = %v, want jet", ac.EngineType)
	}
}

func TestEngineTypeFor(t *testing.T) {
	cases := map[string]models.EngineType{
		"JET":     models.EngineJet,
		"JET_HIB": models.EngineJet,
		"ROC":     models.EngineJet,
		"RCP_CRB": models.EnginePiston,
		"RCP_INJ": models.EnginePiston,
		"TRB_FIX": models.EngineTurboprop,
		"ELE":     models.EngineUnsupported,
		"":        models.EngineUnsupported,
	}
	for token, want := range cases {
		if got := EngineTypeFor(token); got != want {
			t.Errorf("EngineTypeFor(%q) = %v, want %v", token, got, want)
		}
	}
}

// gapCache runs gap after its negative check, before the caller reaches
// Submit.
type gapCache struct {
	*metacache.Cache
	gap func()
}

func (g *gapCache) IsNegative(key metacache.Key) bool {
	neg := g.Cache.IsNegative(key)
	if g.gap != nil {
		g.gap()
	}
	return neg
}

func TestEnrich_LoadFinishingAfterCacheCheckIsNotRepeated(t *testing.T) {
	cache, err := metacache.New(8)
	if err != nil {
		t.Fatal(err)
	}
	var parses atomic.Int32
	release := make(chan struct{})
	parse := func(string, []string) (map[string]string, error) {
		parses.Add(1)
		<-release
		return map[string]string{}, nil
	}
	l := New(cache, WithParseFunc(parse), WithLogger(testutil.QuietLogger()))
	t.Cleanup(l.Close)

	gc := &gapCache{Cache: cache}
	e := NewEnricher(gc, l, pathMap{0: "/sim/empty/empty.acf"}, nil)

	var ac models.Aircraft
	e.Enrich(&ac, 0)

	// The second call sees a miss while the load is still running; the load
	// then finishes and leaves the loading set before Submit is reached.
	gc.gap = func() {
		close(release)
		drain(t, l)
	}
	e.Enrich(&ac, 0)
	gc.gap = nil
	drain(t, l)

	if got := parses.Load(); got != 1 {
		t.Errorf("parse calls = %d, want 1", got)
	}
	if st := l.Stats(); st.Submitted != 1 || st.Deduplicated != 1 {
		t.Errorf("stats = %+v, want submitted=1 deduplicated=1", st)
	}
	if !cache.IsNegative(metacache.KeyFor("/sim/empty/empty.acf")) {
		t.Error("key should be marked negative")
	}
}
