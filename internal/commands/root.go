// Package commands implements the laftscreen command line.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/laftscreen/internal/config"
	"github.com/opensource-finance/laftscreen/internal/domain"
	"github.com/opensource-finance/laftscreen/internal/ingest"
	"github.com/opensource-finance/laftscreen/internal/rules"
	"github.com/opensource-finance/laftscreen/internal/screening"
	"github.com/opensource-finance/laftscreen/internal/tadp"
)

// BuildInfo identifies the binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// app is the state shared by the subcommands once the root has run.
type app struct {
	info       BuildInfo
	configPath string
	debug      bool

	cfg    *domain.Config
	logger *slog.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(info BuildInfo) *cobra.Command {
	a := &app{info: info}

	rootCmd := &cobra.Command{
		Use:     "laftscreen",
		Short:   "LA/FT transaction screening",
		Long:    "laftscreen flags atypical transactions and evaluates a bank of twenty AML/CFT red-flag rules over CSV and XLSX datasets.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.BuildDate),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = config.NewLogger(cfg.Logging, cmd.ErrOrStderr(), a.debug)
			slog.SetDefault(a.logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newScreenCommand(a))
	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newWorkerCommand(a))
	rootCmd.AddCommand(newRulesCommand(a))
	rootCmd.AddCommand(newBenchmarkCommand(a))

	return rootCmd
}

// newScreener wires the rule engine and decision processor.
func (a *app) newScreener() (*screening.Screener, *rules.Engine, error) {
	schema, err := ingest.NewSchema(a.cfg.Screening.Columns)
	if err != nil {
		return nil, nil, err
	}

	engine, err := rules.NewDefaultEngine(a.cfg.Screening.MaxWorkers)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing rule engine: %w", err)
	}
	a.logger.Debug("rule engine initialized", "rules_count", engine.RulesCount())

	processor := tadp.NewProcessor(engine.GetLoadedRules())
	return screening.NewScreener(schema, engine, processor, a.logger), engine, nil
}
