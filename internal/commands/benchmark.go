package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/laftscreen/internal/config"
	"github.com/opensource-finance/laftscreen/internal/ingest"
	"github.com/opensource-finance/laftscreen/internal/report"
)

func newBenchmarkCommand(a *app) *cobra.Command {
	var (
		label    string
		positive []string
		asOf     string
	)

	cmd := &cobra.Command{
		Use:   "benchmark <file>",
		Short: "Score alerts against a labeled dataset",
		Long: `benchmark screens a file that carries a ground-truth column (for example
the records reported to the financial intelligence unit) and prints the
confusion matrix, precision, recall and throughput of the alert decision.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			date, err := config.AsOf(&a.cfg.Screening)
			if err != nil {
				return err
			}
			if asOf != "" {
				if date, err = time.Parse(time.DateOnly, asOf); err != nil {
					return fmt.Errorf("--as-of must be YYYY-MM-DD, got %q", asOf)
				}
			}
			opts, err := config.IngestOptions(&a.cfg.Screening)
			if err != nil {
				return err
			}
			screener, _, err := a.newScreener()
			if err != nil {
				return err
			}

			t, err := ingest.LoadFile(path, opts)
			if err != nil {
				return err
			}

			start := time.Now()
			sc, err := screener.Screen(cmd.Context(), t, filepath.Base(path), date)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)

			c, err := report.Score(sc, label, positive)
			if err != nil {
				return err
			}
			printBenchmark(cmd.OutOrStdout(), c, len(sc.Evaluations), elapsed)
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "reportado", "ground-truth column")
	cmd.Flags().StringSliceVar(&positive, "positive", nil, "label values counted as confirmed cases (default 1, true, yes, si, x, reportado)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluation date YYYY-MM-DD (default today)")
	return cmd
}

func printBenchmark(w io.Writer, c report.Confusion, records int, elapsed time.Duration) {
	fmt.Fprintln(w, titleStyle.Render("Confusion matrix"))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\talert\tno alert\t")
	fmt.Fprintf(tw, "confirmed\t%d\t%d\t\n", c.TruePositives, c.FalseNegatives)
	fmt.Fprintf(tw, "not confirmed\t%d\t%d\t\n", c.FalsePositives, c.TrueNegatives)
	tw.Flush()

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Precision\t%.4f\n", c.Precision())
	fmt.Fprintf(tw, "Recall\t%.4f\n", c.Recall())
	fmt.Fprintf(tw, "F1\t%.4f\n", c.F1())
	fmt.Fprintf(tw, "Accuracy\t%.4f\n", c.Accuracy())
	fmt.Fprintf(tw, "Scored\t%d (unlabeled %d)\n", c.Scored(), c.Unlabeled)
	fmt.Fprintf(tw, "Duration\t%v\n", elapsed.Round(time.Millisecond))
	if s := elapsed.Seconds(); s > 0 {
		fmt.Fprintf(tw, "Throughput\t%.0f records/sec\n", float64(records)/s)
	}
	tw.Flush()
}
