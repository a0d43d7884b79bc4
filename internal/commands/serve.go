package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/laftscreen/internal/api"
	"github.com/opensource-finance/laftscreen/internal/bus"
	"github.com/opensource-finance/laftscreen/internal/cache"
	"github.com/opensource-finance/laftscreen/internal/config"
	"github.com/opensource-finance/laftscreen/internal/domain"
	"github.com/opensource-finance/laftscreen/internal/worker"
)

// services are the shared infrastructure of serve and worker.
type services struct {
	cache domain.Cache
	bus   domain.EventBus
	store *cache.ScreeningStore
}

func (a *app) openServices() (*services, error) {
	cacheImpl, err := cache.New(a.cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("initializing cache: %w", err)
	}
	a.logger.Info("cache initialized", "type", a.cfg.Cache.Type)

	busImpl, err := bus.New(a.cfg.EventBus)
	if err != nil {
		cacheImpl.Close()
		return nil, fmt.Errorf("initializing event bus: %w", err)
	}
	a.logger.Info("event bus initialized", "type", a.cfg.EventBus.Type)

	return &services{
		cache: cacheImpl,
		bus:   busImpl,
		store: cache.NewScreeningStore(cacheImpl, a.cfg.Screening.SessionTTL),
	}, nil
}

func (s *services) Close() {
	if err := s.bus.Close(); err != nil {
		slog.Error("failed to close event bus", "error", err)
	}
	if err := s.cache.Close(); err != nil {
		slog.Error("failed to close cache", "error", err)
	}
}

func (a *app) workerConfig() (worker.Config, error) {
	asOf, err := config.AsOf(&a.cfg.Screening)
	if err != nil {
		return worker.Config{}, err
	}
	opts, err := config.IngestOptions(&a.cfg.Screening)
	if err != nil {
		return worker.Config{}, err
	}
	return worker.Config{Ingest: opts, AsOf: asOf}, nil
}

func newServeCommand(a *app) *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx, cmd.OutOrStdout(), withWorker)
		},
	}

	cmd.Flags().BoolVar(&withWorker, "worker", false, "also consume screening requests in this process")
	return cmd
}

func (a *app) runServe(ctx context.Context, out io.Writer, withWorker bool) error {
	a.logger.Info("starting laftscreen",
		"version", a.info.Version,
		"commit", a.info.Commit,
		"build_date", a.info.BuildDate,
	)

	svc, err := a.openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	screener, engine, err := a.newScreener()
	if err != nil {
		return err
	}

	wcfg, err := a.workerConfig()
	if err != nil {
		return err
	}

	var asyncWorker *worker.Worker
	if withWorker {
		asyncWorker = worker.NewWorker(svc.bus, screener, svc.store, wcfg)
		if err := asyncWorker.Start(); err != nil {
			return fmt.Errorf("starting worker: %w", err)
		}
	}

	srv := api.NewServer(api.Config{
		Server: a.cfg.Server,
		Ingest: wcfg.Ingest,
		AsOf:   wcfg.AsOf,
	}, api.Deps{
		Screener: screener,
		Engine:   engine,
		Store:    svc.store,
		Cache:    svc.cache,
		Bus:      svc.bus,
		Version:  a.info.Version,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	a.logger.Info("laftscreen is ready",
		"host", a.cfg.Server.Host,
		"port", a.cfg.Server.Port,
	)
	printBanner(out, a.cfg, a.info.Version)

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			a.logger.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server forced to shutdown", "error", err)
	}

	a.logger.Info("laftscreen shutdown complete")
	return nil
}

func printBanner(w io.Writer, cfg *domain.Config, version string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, bannerStyle.Render(titleStyle.Render("laftscreen")+"\nLA/FT transaction screening"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Version:  %s\n", version)
	fmt.Fprintf(w, "  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Endpoints:")
	fmt.Fprintln(w, "    POST   /screenings                     - Screen an uploaded CSV/XLSX file")
	fmt.Fprintln(w, "    POST   /screenings/requests            - Queue a file for the async worker")
	fmt.Fprintln(w, "    GET    /screenings/{id}                - Screening summary")
	fmt.Fprintln(w, "    GET    /screenings/{id}/records        - Filtered augmented rows")
	fmt.Fprintln(w, "    GET    /screenings/{id}/export         - Filtered augmented CSV")
	fmt.Fprintln(w, "    GET    /screenings/{id}/distribution   - Value x alert counts")
	fmt.Fprintln(w, "    DELETE /screenings/{id}                - Drop a screening session")
	fmt.Fprintln(w, "    GET    /rules                          - Rule catalog")
	fmt.Fprintln(w, "    GET    /rules/combinations             - Pairwise combination columns")
	fmt.Fprintln(w, "    GET    /health                         - Health check")
	fmt.Fprintln(w)
}
