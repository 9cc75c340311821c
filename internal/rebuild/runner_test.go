package rebuild_test

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"sync"
	"testing"

	"platter/internal/catalog"
	"platter/internal/covers"
	"platter/internal/embedding"
	"platter/internal/rebuild"
	"platter/internal/testsupport"
)

// fakeEncoder returns a deterministic vector per image payload.
type fakeEncoder struct {
	mu    sync.Mutex
	calls int
	fail  error
}

func (f *fakeEncoder) Embed(ctx context.Context, imageData []byte) (embedding.Vector, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	if len(imageData) == 0 {
		return nil, fmt.Errorf("%w: empty image", embedding.ErrDecode)
	}
	return embedding.Vector{float32(imageData[0]), 1}.Normalized(), nil
}

func (f *fakeEncoder) ModelVersion() string { return "clip-vit-b-32/1" }

func (f *fakeEncoder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	store   *catalog.Store
	index   *embedding.Store
	encoder *fakeEncoder
	runner  *rebuild.Runner
	covers  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	index := embedding.NewStore(store.DB())
	encoder := &fakeEncoder{}
	fetcher := covers.NewFetcher(cfg.Paths.CoversDir)
	runner := rebuild.NewRunner(store, fetcher, encoder, index, rebuild.WithWorkers(2))
	return &fixture{store: store, index: index, encoder: encoder, runner: runner, covers: cfg.Paths.CoversDir}
}

func (f *fixture) addRecordWithCover(t *testing.T, artist, title string) *catalog.Record {
	t.Helper()
	record := testsupport.NewRecord(t, f.store, artist, title)
	name := fmt.Sprintf("record-%d.png", record.ID)
	testsupport.WriteCoverFile(t, f.covers, name, testsupport.PNGBytes(t, color.White))
	record.CoverLocal = name
	if err := f.store.UpdateRecord(context.Background(), record); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	return record
}

func TestRebuildAllEmbedsEveryCover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addRecordWithCover(t, "Artist One", "Album One")
	f.addRecordWithCover(t, "Artist Two", "Album Two")
	testsupport.NewRecord(t, f.store, "No Cover", "Bare Album")

	summary, err := f.runner.Run(ctx, rebuild.ModeRebuildAll)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 2 || summary.SkippedNoImage != 1 || summary.Errors != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	count, err := f.index.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 embeddings, got %d", count)
	}
}

func TestBuildMissingSkipsExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addRecordWithCover(t, "Artist One", "Album One")
	f.addRecordWithCover(t, "Artist Two", "Album Two")

	if _, err := f.runner.Run(ctx, rebuild.ModeRebuildAll); err != nil {
		t.Fatalf("initial run: %v", err)
	}
	before := f.encoder.callCount()

	f.addRecordWithCover(t, "Artist Three", "Album Three")
	summary, err := f.runner.Run(ctx, rebuild.ModeBuildMissing)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("expected only the new record processed, got %+v", summary)
	}
	if f.encoder.callCount() != before+1 {
		t.Fatalf("expected 1 additional encoder call, got %d", f.encoder.callCount()-before)
	}
}

func TestBuildMissingReembedsStaleCover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record := f.addRecordWithCover(t, "Artist", "Album")
	if _, err := f.runner.Run(ctx, rebuild.ModeBuildMissing); err != nil {
		t.Fatalf("initial run: %v", err)
	}
	first, _ := f.index.Get(ctx, record.ID)

	// Switching to a different local file changes the resolved reference,
	// so the stored fingerprint no longer matches.
	testsupport.WriteCoverFile(t, f.covers, "replacement.png", testsupport.PNGBytes(t, color.Black))
	record.CoverLocal = "replacement.png"
	if err := f.store.UpdateRecord(ctx, record); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}

	summary, err := f.runner.Run(ctx, rebuild.ModeBuildMissing)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("expected stale record to be re-embedded, got %+v", summary)
	}
	second, _ := f.index.Get(ctx, record.ID)
	if second.SourceFingerprint == first.SourceFingerprint {
		t.Fatal("fingerprint should change with the resolved cover")
	}

	// A third run with nothing changed processes nothing.
	summary, err = f.runner.Run(ctx, rebuild.ModeBuildMissing)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 0 {
		t.Fatalf("expected nothing to process, got %+v", summary)
	}
}

func TestRunContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addRecordWithCover(t, "Good Artist", "Good Album")

	bad := testsupport.NewRecord(t, f.store, "Bad Artist", "Bad Album")
	testsupport.WriteCoverFile(t, f.covers, "bad.png", []byte("not an image at all"))
	bad.CoverLocal = "bad.png"
	if err := f.store.UpdateRecord(ctx, bad); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}

	missing := testsupport.NewRecord(t, f.store, "Gone Artist", "Gone Album")
	missing.CoverLocal = "does-not-exist.png"
	if err := f.store.UpdateRecord(ctx, missing); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}

	summary, err := f.runner.Run(ctx, rebuild.ModeRebuildAll)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 1 || summary.Errors != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	kinds := map[int64]rebuild.FailureKind{}
	for _, failure := range summary.Failures {
		kinds[failure.RecordID] = failure.Kind
	}
	if kinds[bad.ID] != rebuild.FailureDecode {
		t.Fatalf("expected decode failure for %d, got %v", bad.ID, kinds[bad.ID])
	}
	if kinds[missing.ID] != rebuild.FailureFetch {
		t.Fatalf("expected fetch failure for %d, got %v", missing.ID, kinds[missing.ID])
	}
}

func TestRunRejectsConcurrentJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addRecordWithCover(t, "Artist", "Album")

	release := make(chan struct{})
	started := make(chan struct{})
	blocking := &blockingEncoder{inner: f.encoder, release: release, started: started}
	runner := rebuild.NewRunner(f.store, covers.NewFetcher(f.covers), blocking, f.index, rebuild.WithWorkers(1))

	done := make(chan error, 1)
	go func() {
		_, err := runner.Run(ctx, rebuild.ModeRebuildAll)
		done <- err
	}()

	<-started
	if _, err := runner.Run(ctx, rebuild.ModeBuildMissing); !errors.Is(err, rebuild.ErrJobRunning) {
		t.Fatalf("expected ErrJobRunning, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// The gate releases once the job finishes.
	if _, err := runner.Run(ctx, rebuild.ModeBuildMissing); err != nil {
		t.Fatalf("run after completion: %v", err)
	}
}

type blockingEncoder struct {
	inner    *fakeEncoder
	release  chan struct{}
	started  chan struct{}
	startOne sync.Once
}

func (b *blockingEncoder) Embed(ctx context.Context, imageData []byte) (embedding.Vector, error) {
	b.startOne.Do(func() { close(b.started) })
	<-b.release
	return b.inner.Embed(ctx, imageData)
}

func (b *blockingEncoder) ModelVersion() string { return b.inner.ModelVersion() }

func TestRebuildAllIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record := f.addRecordWithCover(t, "Artist", "Album")

	if _, err := f.runner.Run(ctx, rebuild.ModeRebuildAll); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, err := f.index.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if _, err := f.runner.Run(ctx, rebuild.ModeRebuildAll); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, err := f.index.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if first.SourceFingerprint != second.SourceFingerprint {
		t.Fatal("fingerprint should be stable across runs")
	}
	count, _ := f.index.Count(ctx)
	if count != 1 {
		t.Fatalf("expected single embedding, got %d", count)
	}
}

func TestRunOneReembedsAfterCoverChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record := f.addRecordWithCover(t, "Artist", "Album")
	if err := f.runner.RunOne(ctx, record); err != nil {
		t.Fatalf("RunOne: %v", err)
	}
	first, _ := f.index.Get(ctx, record.ID)

	record.CoverURL = "http://127.0.0.1:1/manual.jpg"
	// Manual URL now outranks the local file; RunOne should fetch it, which
	// fails since nothing serves that URL.
	if err := f.runner.RunOne(ctx, record); !errors.Is(err, covers.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}

	// Stale embedding stays in place until a successful overwrite.
	still, _ := f.index.Get(ctx, record.ID)
	if still == nil || still.SourceFingerprint != first.SourceFingerprint {
		t.Fatal("expected stale embedding to remain after failed re-embed")
	}
}
