package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/laftscreen/internal/config"
	"github.com/opensource-finance/laftscreen/internal/domain"
	"github.com/opensource-finance/laftscreen/internal/export"
	"github.com/opensource-finance/laftscreen/internal/filter"
	"github.com/opensource-finance/laftscreen/internal/ingest"
	"github.com/opensource-finance/laftscreen/internal/report"
	"github.com/opensource-finance/laftscreen/internal/screening"
)

type screenOptions struct {
	output        string
	asOf          string
	combinations  []string
	mode          string
	cities        []string
	channels      []string
	segments      []string
	onboardedFrom string
	onboardedTo   string
	alertsOnly    bool
	distributions []string
	jsonSummary   bool
}

func newScreenCommand(a *app) *cobra.Command {
	var opts screenOptions

	cmd := &cobra.Command{
		Use:   "screen <file>",
		Short: "Screen a CSV or XLSX file and write the augmented table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScreen(cmd, args[0], &opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", export.DefaultFileName, "output CSV path")
	f.StringVar(&opts.asOf, "as-of", "", "evaluation date YYYY-MM-DD (default today)")
	f.StringSliceVar(&opts.combinations, "combination", nil, "combination column to filter on, e.g. combination_3_14")
	f.StringVar(&opts.mode, "mode", string(filter.ModeAll), "combination filter mode: all or any")
	f.StringSliceVar(&opts.cities, "city", nil, "keep records in these cities")
	f.StringSliceVar(&opts.channels, "channel", nil, "keep records with these payment channels")
	f.StringSliceVar(&opts.segments, "segment", nil, "keep records in these segments")
	f.StringVar(&opts.onboardedFrom, "onboarded-from", "", "earliest onboarding date YYYY-MM-DD")
	f.StringVar(&opts.onboardedTo, "onboarded-to", "", "latest onboarding date YYYY-MM-DD")
	f.BoolVar(&opts.alertsOnly, "alerts-only", false, "keep only alerted records")
	f.StringSliceVar(&opts.distributions, "distribution", nil, "print the distribution of a field (city, channel, is_atypical, ...)")
	f.BoolVar(&opts.jsonSummary, "json", false, "print the summary as JSON")

	return cmd
}

func (o *screenOptions) criteria() (filter.Criteria, error) {
	var (
		c   filter.Criteria
		err error
	)
	if c.Combinations, err = filter.ParseCombinations(o.combinations); err != nil {
		return c, err
	}
	if c.Mode, err = filter.ParseMode(o.mode); err != nil {
		return c, err
	}
	if c.OnboardedFrom, err = filter.ParseDate(o.onboardedFrom); err != nil {
		return c, err
	}
	if c.OnboardedTo, err = filter.ParseDate(o.onboardedTo); err != nil {
		return c, err
	}
	c.Cities = o.cities
	c.Channels = o.channels
	c.Segments = o.segments
	c.AlertsOnly = o.alertsOnly
	return c, c.Validate()
}

func (a *app) runScreen(cmd *cobra.Command, path string, opts *screenOptions) error {
	criteria, err := opts.criteria()
	if err != nil {
		return err
	}

	asOf, err := config.AsOf(&a.cfg.Screening)
	if err != nil {
		return err
	}
	if opts.asOf != "" {
		if asOf, err = filter.ParseDate(opts.asOf); err != nil {
			return err
		}
	}

	ingestOpts, err := config.IngestOptions(&a.cfg.Screening)
	if err != nil {
		return err
	}

	screener, engine, err := a.newScreener()
	if err != nil {
		return err
	}

	t, err := ingest.LoadFile(path, ingestOpts)
	if err != nil {
		return err
	}

	sc, err := screener.Screen(cmd.Context(), t, filepath.Base(path), asOf)
	if err != nil {
		return err
	}

	positions, err := filter.Apply(sc, criteria)
	if err != nil {
		return err
	}
	if err := export.WriteFile(opts.output, screening.Augment(sc, positions)); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	summary := report.Summarize(sc)
	if opts.jsonSummary {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	} else {
		printSummary(out, &summary, ruleNames(engine.GetLoadedRules()))
	}

	for _, field := range opts.distributions {
		buckets, err := report.Distribution(sc, field)
		if err != nil {
			return err
		}
		printDistribution(out, field, buckets)
	}

	fmt.Fprintf(out, "\nWrote %d of %d records to %s\n", len(positions), len(sc.Evaluations), opts.output)
	return nil
}

func ruleNames(catalog []*domain.RuleConfig) map[domain.RuleID]string {
	names := make(map[domain.RuleID]string, len(catalog))
	for _, rc := range catalog {
		names[rc.ID] = rc.Name
	}
	return names
}

func printSummary(w io.Writer, s *domain.Summary, names map[domain.RuleID]string) {
	fmt.Fprintln(w, titleStyle.Render("Screening summary"))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Screening\t%s\n", s.ID)
	fmt.Fprintf(tw, "Source\t%s\n", s.Source)
	fmt.Fprintf(tw, "As of\t%s\n", s.AsOf)
	fmt.Fprintf(tw, "Analyzed\t%d (dropped %d)\n", s.Analyzed, s.Dropped)
	if s.Baseline.Degenerate {
		fmt.Fprintf(tw, "Baseline\tmean=%g stddev=undefined\n", s.Baseline.Mean)
	} else {
		fmt.Fprintf(tw, "Baseline\tmean=%g stddev=%g\n", s.Baseline.Mean, s.Baseline.StdDev)
	}
	fmt.Fprintf(tw, "Atypical\t%d\n", s.Atypical)
	fmt.Fprintf(tw, "Alerts\t%d\n", s.Alerts)
	fmt.Fprintf(tw, "Flagged value\t%s\n", s.FlaggedValue)
	tw.Flush()
	if s.Alerts > 0 {
		fmt.Fprintln(w, alertStyle.Render(fmt.Sprintf("%d of %d records raised an alert", s.Alerts, s.Analyzed)))
	}

	fmt.Fprintln(w, "\n"+titleStyle.Render("Rule hits"))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for id := domain.RuleID(1); id <= domain.RuleCount; id++ {
		fmt.Fprintf(tw, "  %s\t%s\t%d\n", id.Column(), names[id], s.RuleHits[id])
	}
	tw.Flush()

	if len(s.Warnings) > 0 {
		fmt.Fprintln(w, "\n"+titleStyle.Render("Warnings"))
		for _, msg := range s.Warnings {
			fmt.Fprintln(w, warningStyle.Render("  - "+msg))
		}
	}
}

func printDistribution(w io.Writer, field string, buckets []report.Bucket) {
	fmt.Fprintln(w, "\n"+titleStyle.Render("Distribution by "+field))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  value\talerts\tno alerts\ttotal")
	for _, b := range buckets {
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\n", b.Value, b.Alerts, b.NoAlerts, b.Total)
	}
	tw.Flush()
}
