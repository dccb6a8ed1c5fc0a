package metaloader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/metacache"
	"github.com/starford/raido/internal/testutil"
)

// recordingSink captures sink calls.
type recordingSink struct {
	mu        sync.Mutex
	installed map[metacache.Key]metacache.Record
	negative  map[metacache.Key]int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		installed: make(map[metacache.Key]metacache.Record),
		negative:  make(map[metacache.Key]int),
	}
}

func (s *recordingSink) Contains(key metacache.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.installed[key]
	return ok
}

func (s *recordingSink) IsNegative(key metacache.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.negative[key] > 0
}

func (s *recordingSink) Generation(metacache.Key) uint64 { return 0 }

func (s *recordingSink) InstallIfCurrent(key metacache.Key, _ uint64, rec metacache.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installed[key] = rec
	return true
}

func (s *recordingSink) MarkNegativeIfCurrent(key metacache.Key, _ uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.negative[key]++
	return true
}

func (s *recordingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.installed), len(s.negative)
}

func drain(t *testing.T, l *Loader) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}

func TestSubmit_AtMostOneLoadPerKey(t *testing.T) {
	gate := make(chan struct{})
	var calls atomic.Int32
	parse := func(string, []string) (map[string]string, error) {
		calls.Add(1)
		<-gate
		return map[string]string{FieldName: "B738"}, nil
	}

	sink := newRecordingSink()
	l := New(sink, WithParseFunc(parse), WithLogger(testutil.QuietLogger()))
	defer l.Close()

	const n = 50
	var wg sync.WaitGroup
	var queued atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Submit("key", "/a/b.acf", DefaultFields) {
				queued.Add(1)
			}
		}()
	}
	wg.Wait()
	close(gate)
	drain(t, l)

	if got := calls.Load(); got != 1 {
		t.Errorf("parse calls = %d, want 1", got)
	}
	if got := queued.Load(); got != 1 {
		t.Errorf("queued submissions = %d, want 1", got)
	}
	st := l.Stats()
	if st.Deduplicated != n-1 {
		t.Errorf("deduplicated = %d, want %d", st.Deduplicated, n-1)
	}
	if installed, _ := sink.counts(); installed != 1 {
		t.Errorf("installed = %d, want 1", installed)
	}
	if l.IsLoading("key") {
		t.Error("key should leave the loading set after completion")
	}
}

func TestWorker_ProcessesOneJobAtATime(t *testing.T) {
	var active, maxActive atomic.Int32
	parse := func(string, []string) (map[string]string, error) {
		cur := active.Add(1)
		for {
			old := maxActive.Load()
			if cur <= old || maxActive.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		active.Add(-1)
		return map[string]string{FieldICAO: "C172"}, nil
	}

	sink := newRecordingSink()
	l := New(sink, WithParseFunc(parse), WithLogger(testutil.QuietLogger()))
	defer l.Close()

	for i := 0; i < 10; i++ {
		l.Submit(metacache.Key(string(rune('a'+i))), "p", DefaultFields)
	}
	drain(t, l)

	if got := maxActive.Load(); got != 1 {
		t.Errorf("max concurrent parses = %d, want 1", got)
	}
	if installed, _ := sink.counts(); installed != 10 {
		t.Errorf("installed = %d, want 10", installed)
	}
}

func TestFailedParse_MarksNegativeAndReleasesKey(t *testing.T) {
	parse := func(string, []string) (map[string]string, error) {
		return nil, apperr.ErrNotFound
	}
	var events []Event
	var mu sync.Mutex
	sink := newRecordingSink()
	l := New(sink, WithParseFunc(parse), WithLogger(testutil.QuietLogger()),
		WithNotify(func(ev Event) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		}))
	defer l.Close()

	l.Submit("gone", "/gone.acf", DefaultFields)
	drain(t, l)

	installed, negative := sink.counts()
	if installed != 0 || negative != 1 {
		t.Errorf("installed=%d negative=%d, want 0 and 1", installed, negative)
	}
	if l.IsLoading("gone") {
		t.Error("failed key must not stay in the loading set")
	}
	if st := l.Stats(); st.Failed != 1 {
		t.Errorf("failed = %d, want 1", st.Failed)
	}

	testutil.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1
	}, "expected one notify event")
	mu.Lock()
	defer mu.Unlock()
	if len(events) == 1 && (events[0].Found || !errors.Is(events[0].Err, apperr.ErrNotFound)) {
		t.Errorf("event = %+v, want not found", events[0])
	}
}

func TestEmptyRecord_MarksNegative(t *testing.T) {
	parse := func(string, []string) (map[string]string, error) {
		return map[string]string{}, nil
	}
	sink := newRecordingSink()
	l := New(sink, WithParseFunc(parse), WithLogger(testutil.QuietLogger()))
	defer l.Close()

	l.Submit("k", "/k.acf", DefaultFields)
	drain(t, l)

	if installed, negative := sink.counts(); installed != 0 || negative != 1 {
		t.Errorf("installed=%d negative=%d, want 0 and 1", installed, negative)
	}
}

func TestSubmit_RejectsWhenQueueFull(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	parse := func(string, []string) (map[string]string, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-gate
		return map[string]string{FieldName: "x"}, nil
	}
	l := New(newRecordingSink(), WithParseFunc(parse), WithQueueSize(2), WithLogger(testutil.QuietLogger()))
	defer l.Close()
	defer close(gate)

	if !l.Submit("a", "a", DefaultFields) {
		t.Fatal("first submit should be queued")
	}
	<-started
	if !l.Submit("b", "b", DefaultFields) || !l.Submit("c", "c", DefaultFields) {
		t.Fatal("queue should hold two jobs")
	}
	if l.Submit("d", "d", DefaultFields) {
		t.Error("submit beyond queue size should be rejected")
	}
	if l.IsLoading("d") {
		t.Error("rejected key must not be marked loading")
	}
	if st := l.Stats(); st.Rejected != 1 || st.Queued != 2 {
		t.Errorf("stats = %+v, want rejected=1 queued=2", st)
	}
}

func TestClose_WaitsForInFlightAndDropsQueued(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	parse := func(path string, _ []string) (map[string]string, error) {
		if path == "slow" {
			close(started)
			<-release
			finished.Store(true)
		}
		return map[string]string{FieldName: path}, nil
	}
	sink := newRecordingSink()
	l := New(sink, WithParseFunc(parse), WithLogger(testutil.QuietLogger()))

	l.Submit("slow", "slow", DefaultFields)
	<-started
	l.Submit("queued", "queued", DefaultFields)

	closed := make(chan struct{})
	go func() {
		l.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a job was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after in-flight job finished")
	}
	if !finished.Load() {
		t.Error("in-flight job should complete")
	}
	if installed, _ := sink.counts(); installed != 1 {
		t.Errorf("installed = %d, want only the in-flight job", installed)
	}
	if l.IsLoading("queued") {
		t.Error("dropped job key should be released")
	}
	if l.Submit("late", "late", DefaultFields) {
		t.Error("submit after close should be rejected")
	}
	l.Close()
}

func TestDrain_HonoursContext(t *testing.T) {
	gate := make(chan struct{})
	parse := func(string, []string) (map[string]string, error) {
		<-gate
		return nil, apperr.ErrNotFound
	}
	l := New(newRecordingSink(), WithParseFunc(parse), WithLogger(testutil.QuietLogger()))
	defer l.Close()
	defer close(gate)

	l.Submit("k", "k", DefaultFields)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain err = %v, want deadline exceeded", err)
	}
}

func TestSubmit_SkipsKeysTheSinkAlreadyHolds(t *testing.T) {
	var calls atomic.Int32
	parse := func(path string, _ []string) (map[string]string, error) {
		calls.Add(1)
		if path == "empty" {
			return map[string]string{}, nil
		}
		return map[string]string{FieldName: path}, nil
	}
	sink := newRecordingSink()
	l := New(sink, WithParseFunc(parse), WithLogger(testutil.QuietLogger()))
	defer l.Close()

	l.Submit("full", "full", DefaultFields)
	l.Submit("empty", "empty", DefaultFields)
	drain(t, l)

	if l.Submit("full", "full", DefaultFields) {
		t.Error("submit for an installed key should be skipped")
	}
	if l.Submit("empty", "empty", DefaultFields) {
		t.Error("submit for a negative key should be skipped")
	}
	drain(t, l)

	if got := calls.Load(); got != 2 {
		t.Errorf("parse calls = %d, want 2", got)
	}
	if st := l.Stats(); st.Submitted != 2 || st.Deduplicated != 2 {
		t.Errorf("stats = %+v, want submitted=2 deduplicated=2", st)
	}
}

func TestInvalidateDuringLoad_DropsResult(t *testing.T) {
	cache, err := metacache.New(8)
	if err != nil {
		t.Fatal(err)
	}
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	parse := func(string, []string) (map[string]string, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return map[string]string{FieldName: "old contents"}, nil
	}
	events := make(chan Event, 2)
	l := New(cache, WithParseFunc(parse), WithLogger(testutil.QuietLogger()),
		WithNotify(func(ev Event) { events <- ev }))
	defer l.Close()

	const key = metacache.Key("/sim/c172.acf")
	if !l.Submit(key, string(key), DefaultFields) {
		t.Fatal("submit should be queued")
	}
	<-started
	cache.Invalidate(key)
	close(release)
	drain(t, l)

	if cache.Contains(key) {
		t.Error("result parsed before the invalidation must not be installed")
	}
	if ev := <-events; !ev.Stale || ev.Found {
		t.Errorf("event = %+v, want stale and not found", ev)
	}
	if st := l.Stats(); st.Discarded != 1 || st.Loaded != 0 {
		t.Errorf("stats = %+v, want discarded=1 loaded=0", st)
	}

	if !l.Submit(key, string(key), DefaultFields) {
		t.Fatal("resubmit after a discarded load should be queued")
	}
	drain(t, l)
	if !cache.Contains(key) {
		t.Error("fresh load should be installed")
	}
}
