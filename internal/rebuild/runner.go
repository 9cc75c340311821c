// Package rebuild runs batch cover-embedding jobs over the catalog. One job
// runs at a time; individual record failures are collected, never fatal.
package rebuild

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"platter/internal/catalog"
	"platter/internal/covers"
	"platter/internal/embedding"
	"platter/internal/logging"
	"platter/internal/services"
)

// Mode selects which records a job visits.
type Mode string

const (
	// ModeRebuildAll re-embeds every record with a resolvable cover.
	ModeRebuildAll Mode = "rebuild_all"
	// ModeBuildMissing embeds only records whose stored embedding is absent
	// or stale (model or resolved cover changed since it was generated).
	ModeBuildMissing Mode = "build_missing"
)

// ErrJobRunning indicates another batch job is already in flight.
var ErrJobRunning = errors.New("embedding job already running")

// FailureKind classifies why one record failed during a batch job.
type FailureKind string

const (
	FailureDecode     FailureKind = "image_decode_failed"
	FailureEncoder    FailureKind = "encoder_failed"
	FailureFetch      FailureKind = "image_fetch_failed"
	FailureIndexWrite FailureKind = "index_write_failed"
	FailureOther      FailureKind = "error"
)

// Failure records one record's error during a batch job.
type Failure struct {
	RecordID int64
	Kind     FailureKind
	Message  string
}

// Summary reports the outcome of one batch job.
type Summary struct {
	JobID          string
	Mode           Mode
	Processed      int
	SkippedNoImage int
	Errors         int
	Failures       []Failure
	Duration       time.Duration
}

// Catalog is the record source a job iterates.
type Catalog interface {
	AllRecords(ctx context.Context) ([]*catalog.Record, error)
}

// ImageSource fetches bytes for a resolved cover reference.
type ImageSource interface {
	Fetch(ctx context.Context, ref covers.Reference) ([]byte, error)
}

// Index persists embeddings.
type Index interface {
	Get(ctx context.Context, recordID int64) (*embedding.Embedding, error)
	Put(ctx context.Context, emb *embedding.Embedding) error
}

// Runner executes batch embedding jobs with a bounded worker pool.
type Runner struct {
	catalog     Catalog
	images      ImageSource
	encoder     embedding.Encoder
	index       Index
	logger      *slog.Logger
	workers     int
	itemTimeout time.Duration

	mu      sync.Mutex
	running bool
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithWorkers bounds job concurrency.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithItemTimeout bounds how long one record may take to embed.
func WithItemTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.itemTimeout = d
		}
	}
}

// WithLogger sets the job logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner builds a Runner over the given collaborators.
func NewRunner(cat Catalog, images ImageSource, encoder embedding.Encoder, index Index, opts ...RunnerOption) *Runner {
	runner := &Runner{
		catalog:     cat,
		images:      images,
		encoder:     encoder,
		index:       index,
		logger:      logging.NewNop(),
		workers:     4,
		itemTimeout: time.Minute,
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner
}

// Running reports whether a batch job is currently in flight.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Run executes one batch job. A second concurrent call fails fast with
// ErrJobRunning rather than queueing.
func (r *Runner) Run(ctx context.Context, mode Mode) (*Summary, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, ErrJobRunning
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	jobID := uuid.NewString()
	ctx = services.WithJobID(ctx, jobID)
	logger := r.logger.With(
		logging.String(logging.FieldJobID, jobID),
		logging.String("mode", string(mode)))

	started := time.Now()
	records, err := r.catalog.AllRecords(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("embedding job started", logging.Int("records", len(records)))

	type outcome struct {
		processed bool
		skipped   bool
		failure   *Failure
	}

	results := make([]outcome, len(records))
	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := r.workers
	if workers > len(records) && len(records) > 0 {
		workers = len(records)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				record := records[i]
				processed, skipped, failure := r.processRecord(ctx, mode, record)
				results[i] = outcome{processed: processed, skipped: skipped, failure: failure}
			}
		}()
	}

	for i := range records {
		select {
		case jobs <- i:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	summary := &Summary{JobID: jobID, Mode: mode, Duration: time.Since(started)}
	for _, res := range results {
		switch {
		case res.failure != nil:
			summary.Errors++
			summary.Failures = append(summary.Failures, *res.failure)
		case res.skipped:
			summary.SkippedNoImage++
		case res.processed:
			summary.Processed++
		}
	}
	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].RecordID < summary.Failures[j].RecordID
	})

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	logger.Info("embedding job finished",
		logging.Int("processed", summary.Processed),
		logging.Int("skipped_no_image", summary.SkippedNoImage),
		logging.Int("errors", summary.Errors),
		logging.Duration("duration", summary.Duration))
	return summary, nil
}

// processRecord embeds one record's cover. The bool results are
// (processed, skippedNoImage); failures come back as a classified Failure.
func (r *Runner) processRecord(ctx context.Context, mode Mode, record *catalog.Record) (bool, bool, *Failure) {
	ctx = services.WithRecordID(ctx, record.ID)
	if r.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.itemTimeout)
		defer cancel()
	}

	if mode == ModeBuildMissing {
		existing, err := r.index.Get(ctx, record.ID)
		if err != nil {
			return false, false, classifyFailure(record.ID, err)
		}
		if existing != nil && r.embeddingCurrent(existing, record) {
			return false, false, nil
		}
	}

	err := r.embedRecord(ctx, record)
	if err == nil {
		return true, false, nil
	}
	if errors.Is(err, covers.ErrNoImage) {
		return false, true, nil
	}
	failure := classifyFailure(record.ID, err)
	r.logger.Warn("record embedding failed",
		logging.Int64(logging.FieldRecordID, record.ID),
		logging.String("kind", string(failure.Kind)),
		logging.Error(err))
	return false, false, failure
}

// embeddingCurrent reports whether a stored embedding still matches the
// record's resolved cover and the pinned model version.
func (r *Runner) embeddingCurrent(existing *embedding.Embedding, record *catalog.Record) bool {
	if existing.ModelVersion != r.encoder.ModelVersion() {
		return false
	}
	ref := covers.Resolve(record.CoverURL, record.CoverLocal, record.CoverURLAuto, record.DiscogsThumb)
	return existing.SourceFingerprint == embedding.Fingerprint(ref.String())
}

func (r *Runner) embedRecord(ctx context.Context, record *catalog.Record) error {
	ref := covers.Resolve(record.CoverURL, record.CoverLocal, record.CoverURLAuto, record.DiscogsThumb)
	if ref.IsNone() {
		return covers.ErrNoImage
	}

	imageData, err := r.images.Fetch(ctx, ref)
	if err != nil {
		return err
	}
	vector, err := r.encoder.Embed(ctx, imageData)
	if err != nil {
		return err
	}
	return r.index.Put(ctx, &embedding.Embedding{
		RecordID:          record.ID,
		Vector:            vector,
		ModelVersion:      r.encoder.ModelVersion(),
		SourceFingerprint: embedding.Fingerprint(ref.String()),
		GeneratedAt:       time.Now().UTC(),
	})
}

// RunOne re-embeds a single record outside the batch gate, for use after a
// cover edit. On failure the previously stored embedding is left in place.
func (r *Runner) RunOne(ctx context.Context, record *catalog.Record) error {
	ctx = services.WithRecordID(ctx, record.ID)
	if r.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.itemTimeout)
		defer cancel()
	}
	return r.embedRecord(ctx, record)
}

func classifyFailure(recordID int64, err error) *Failure {
	kind := FailureOther
	switch {
	case errors.Is(err, embedding.ErrDecode):
		kind = FailureDecode
	case errors.Is(err, embedding.ErrEncoder):
		kind = FailureEncoder
	case errors.Is(err, covers.ErrFetch):
		kind = FailureFetch
	case errors.Is(err, embedding.ErrIndexWrite):
		kind = FailureIndexWrite
	}
	return &Failure{RecordID: recordID, Kind: kind, Message: err.Error()}
}
