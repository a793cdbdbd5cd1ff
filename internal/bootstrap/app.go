package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yanqian/cityweather/internal/domain/weather"
	"github.com/yanqian/cityweather/internal/infra/config"
)

const shutdownTimeout = 10 * time.Second

// closer is implemented by backends holding connections (Valkey, Postgres).
type closer interface {
	Close()
}

// App owns the HTTP server and the backends it must release on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	server  *http.Server
	closers []closer
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, sequences weather.SequenceStore, journal weather.FailureJournal) *App {
	app := &App{cfg: cfg, logger: logger.With("component", "bootstrap"), server: server}
	for _, backend := range []any{sequences, journal} {
		if c, ok := backend.(closer); ok {
			app.closers = append(app.closers, c)
		}
	}
	return app
}

// Run serves until ctx is cancelled or the listener fails, then drains
// in-flight lookups and releases backends.
func (a *App) Run(ctx context.Context) error {
	defer a.release()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address, "city_directory", a.cfg.CityDirectory.BaseURL, "timezone", a.cfg.Clock.Timezone)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutdown signal received")
		return a.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) release() {
	for _, c := range a.closers {
		c.Close()
	}
}
