// Package daemon ties the catalog store, embedding pipeline, matcher, and
// HTTP API into a single lifecycle with flock-based locking to prevent
// multiple instances sharing one database.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/flock"

	"platter/internal/catalog"
	"platter/internal/config"
	"platter/internal/covers"
	"platter/internal/discogs"
	"platter/internal/embedding"
	"platter/internal/logging"
	"platter/internal/match"
	"platter/internal/rebuild"
)

// Daemon owns the shared services behind the HTTP API.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *catalog.Store
	index   *embedding.Store
	encoder *embedding.Client
	fetcher *covers.Fetcher
	runner  *rebuild.Runner
	matcher *match.Matcher
	finder  *discogs.Finder

	lock      *flock.Flock
	apiServer *apiServer
	started   bool
}

// New wires a Daemon from configuration. The catalog store is opened here;
// everything else hangs off it.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := catalog.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	index := embedding.NewStore(store.DB())
	encoder := embedding.NewClient(cfg.Encoder)
	fetcher := covers.NewFetcher(cfg.Paths.CoversDir,
		covers.WithUserAgent(cfg.Discogs.UserAgent))
	runner := rebuild.NewRunner(store, fetcher, encoder, index,
		rebuild.WithWorkers(cfg.Rebuild.Workers),
		rebuild.WithItemTimeout(cfg.ItemTimeout()),
		rebuild.WithLogger(logger.With(logging.String(logging.FieldComponent, "rebuild"))))
	matcher := match.New(index, store, encoder, cfg.Matcher,
		logger.With(logging.String(logging.FieldComponent, "match")))
	finder := discogs.NewFinder(discogs.NewClient(cfg.Discogs),
		logger.With(logging.String(logging.FieldComponent, "discogs")))

	lockPath := filepath.Join(cfg.Paths.DataDir, "platterd.lock")

	return &Daemon{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		index:   index,
		encoder: encoder,
		fetcher: fetcher,
		runner:  runner,
		matcher: matcher,
		finder:  finder,
		lock:    flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and brings up the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.started {
		return nil
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another daemon instance already holds %s", d.lock.Path())
	}

	if err := d.encoder.VerifyModel(ctx); err != nil {
		// The daemon stays up so catalog CRUD keeps working; embedding
		// endpoints will fail per-request until the sidecar recovers.
		d.logger.Warn("encoder model verification failed",
			logging.String("model_version", d.encoder.ModelVersion()),
			logging.Error(err))
	}

	server, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		_ = d.lock.Unlock()
		return err
	}
	d.apiServer = server
	if err := d.apiServer.start(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.started = true
	d.logger.Info("daemon started", logging.String("database", d.store.Path()))
	return nil
}

// Stop shuts the API server down and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.started {
		return
	}
	d.apiServer.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}
	d.started = false
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and closes the catalog store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Status summarizes daemon state.
type Status struct {
	Records           int
	Embeddings        int
	EmbeddingsCurrent int
	ModelVersion      string
	EncoderHealthy    bool
	JobRunning        bool
}

// Status reports catalog and embedding counts plus encoder health.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		ModelVersion: d.encoder.ModelVersion(),
		JobRunning:   d.runner.Running(),
	}
	if _, total, err := d.store.ListRecords(ctx, catalog.ListOptions{Limit: 1}); err == nil {
		status.Records = total
	}
	if count, err := d.index.Count(ctx); err == nil {
		status.Embeddings = count
	}
	if count, err := d.index.CountCurrent(ctx, status.ModelVersion); err == nil {
		status.EmbeddingsCurrent = count
	}
	status.EncoderHealthy = d.encoder.VerifyModel(ctx) == nil
	return status
}
