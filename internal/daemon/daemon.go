// Package daemon runs the long-lived autodub process: it holds the work
// directory lock, serves the job API, and shuts the registry down cleanly.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"autodub/internal/config"
	"autodub/internal/jobs"
	"autodub/internal/logging"
)

// Daemon owns the API server lifecycle and the single-instance lock.
type Daemon struct {
	cfg      *config.Config
	registry *jobs.Registry
	logger   *slog.Logger

	lock   *flock.Flock
	server *http.Server
}

// New creates a Daemon.
func New(cfg *config.Config, registry *jobs.Registry, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Daemon{
		cfg:      cfg,
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "daemon"),
	}
}

// Run serves the API until ctx is cancelled, then drains running jobs. A
// second daemon on the same work directory is refused via a file lock.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	d.lock = flock.New(filepath.Join(d.cfg.Paths.WorkDir, "autodub.lock"))
	locked, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another autodub daemon already holds %s", d.lock.Path())
	}
	defer func() {
		_ = d.lock.Unlock()
	}()

	api := NewAPIServer(d.registry, d.logger)
	d.server = &http.Server{
		Addr:              d.cfg.Paths.APIBind,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("api listening", logging.String("bind", d.cfg.Paths.APIBind))
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	d.logger.Info("shutting down, draining running jobs")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("api shutdown was not clean", logging.Error(err))
	}
	d.registry.Wait()
	return nil
}
