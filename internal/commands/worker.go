package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/laftscreen/internal/domain"
	"github.com/opensource-finance/laftscreen/internal/worker"
)

func newWorkerCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume screening requests from the event bus",
		Long:  fmt.Sprintf("worker screens the files named on %s and publishes results to %s and %s.", domain.TopicScreeningRequested, domain.TopicScreeningCompleted, domain.TopicAlert),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := a.openServices()
			if err != nil {
				return err
			}
			defer svc.Close()

			screener, _, err := a.newScreener()
			if err != nil {
				return err
			}
			wcfg, err := a.workerConfig()
			if err != nil {
				return err
			}

			w := worker.NewWorker(svc.bus, screener, svc.store, wcfg)
			if err := w.Start(); err != nil {
				return fmt.Errorf("starting worker: %w", err)
			}

			<-ctx.Done()
			a.logger.Info("shutting down...")
			return w.Stop()
		},
	}
}
