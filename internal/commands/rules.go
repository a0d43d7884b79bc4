package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/laftscreen/internal/domain"
	"github.com/opensource-finance/laftscreen/internal/rules"
)

// ruleDoc is the YAML rendering of one rule.
type ruleDoc struct {
	ID              domain.RuleID `yaml:"id"`
	Column          string        `yaml:"column"`
	Name            string        `yaml:"name"`
	Description     string        `yaml:"description"`
	Expression      string        `yaml:"expression"`
	Requires        []string      `yaml:"requires,omitempty"`
	DatasetRequires []string      `yaml:"dataset_requires,omitempty"`
	DeviationBased  bool          `yaml:"deviation_based"`
}

type combinationDoc struct {
	Key   string `yaml:"key"`
	First string `yaml:"first"`
	Then  string `yaml:"then"`
}

func newRulesCommand(a *app) *cobra.Command {
	var combinations bool

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the rule catalog as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := rules.NewDefaultEngine(a.cfg.Screening.MaxWorkers)
			if err != nil {
				return fmt.Errorf("initializing rule engine: %w", err)
			}
			catalog := engine.GetLoadedRules()

			var doc any
			if combinations {
				doc = map[string]any{"combinations": combinationDocs(catalog)}
			} else {
				doc = map[string]any{"rules": ruleDocs(catalog)}
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(doc); err != nil {
				return fmt.Errorf("encoding catalog: %w", err)
			}
			return enc.Close()
		},
	}

	cmd.Flags().BoolVar(&combinations, "combinations", false, "print the 190 pairwise combinations instead")
	return cmd
}

func ruleDocs(catalog []*domain.RuleConfig) []ruleDoc {
	docs := make([]ruleDoc, len(catalog))
	for i, rc := range catalog {
		docs[i] = ruleDoc{
			ID:              rc.ID,
			Column:          rc.ID.Column(),
			Name:            rc.Name,
			Description:     rc.Description,
			Expression:      rc.Expression,
			Requires:        fieldStrings(rc.Requires),
			DatasetRequires: fieldStrings(rc.DatasetRequires),
			DeviationBased:  rc.DeviationBased,
		}
	}
	return docs
}

func combinationDocs(catalog []*domain.RuleConfig) []combinationDoc {
	names := ruleNames(catalog)
	pairs := rules.Pairs()
	docs := make([]combinationDoc, len(pairs))
	for i, p := range pairs {
		docs[i] = combinationDoc{
			Key:   p.Key(),
			First: names[p.A],
			Then:  names[p.B],
		}
	}
	return docs
}

func fieldStrings(fields []domain.Field) []string {
	if len(fields) == 0 {
		return nil
	}
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.String()
	}
	return out
}
