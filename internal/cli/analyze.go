package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/covenant/internal/analysis"
	"github.com/opensource-finance/covenant/internal/domain"
	"github.com/opensource-finance/covenant/internal/rules"
)

// localTenant owns analyses run from the command line. Nothing is
// persisted, so it never reaches storage.
const localTenant = "local"

func newAnalyzeCommand(a *app) *cobra.Command {
	var (
		contractType string
		asJSON       bool
		withClauses  bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Score a contract file and print the risk report",
		Long: `Analyze segments a plain-text contract, scores every clause and prints the
contract-level verdict. Use "-" to read from stdin. Nothing is stored.

Contract types: employment_agreement, vendor_contract, lease_agreement,
partnership_deed, service_contract. Other values are weighted at 1.0.

Example:
  covenant analyze supply.txt --type vendor_contract
  cat lease.txt | covenant analyze - --type lease_agreement --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			analyzer, err := offlineAnalyzer(a.cfg)
			if err != nil {
				return err
			}

			result, err := analyzer.Analyze(cmd.Context(), localTenant, analysis.Request{
				Name:         args[0],
				Text:         text,
				ContractType: domain.ContractType(contractType),
			})
			if err != nil {
				return err
			}

			if !withClauses {
				result.Clauses = nil
				result.Result.ClauseResults = nil
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeIndentedJSON(out, result)
			}
			printReport(out, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&contractType, "type", "t", "", "contract type")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full analysis as JSON")
	cmd.Flags().BoolVar(&withClauses, "clauses", false, "include every clause and its score")
	return cmd
}

func newSegmentCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "segment <file>",
		Short: "Split a contract file into clauses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			analyzer, err := offlineAnalyzer(a.cfg)
			if err != nil {
				return err
			}
			clauses, strategy := analyzer.Segment(text)

			out := cmd.OutOrStdout()
			if asJSON {
				return writeIndentedJSON(out, map[string]interface{}{
					"strategy": strategy,
					"count":    len(clauses),
					"clauses":  clauses,
				})
			}

			fmt.Fprintf(out, "%d clauses (%s)\n\n", len(clauses), strategy)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NUMBER\tTYPE\tTITLE")
			for _, c := range clauses {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Number, c.Type, c.Title)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print clauses as JSON")
	return cmd
}

// offlineAnalyzer scores with the builtin table and the configured rule
// pack, without storage or cache.
func offlineAnalyzer(cfg *domain.Config) (*analysis.Analyzer, error) {
	ruleFile, err := loadRuleFile(cfg.Engine.RulesFile)
	if err != nil {
		return nil, err
	}
	set, err := rules.Build(ruleFile, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule set: %w", err)
	}
	return analysis.New(cfg.Engine, rules.NewEvaluator(set, cfg.Engine, nil), nil), nil
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func writeIndentedJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(w io.Writer, a *domain.Analysis) {
	report := a.Report
	contractType := string(report.ContractType)
	if contractType == "" {
		contractType = "unspecified"
	}

	fmt.Fprintf(w, "Contract type:  %s\n", contractType)
	fmt.Fprintf(w, "Overall risk:   %s (%.2f)", report.OverallRisk.Level, report.OverallRisk.Score)
	if a.Result.Escalated {
		fmt.Fprint(w, " escalated")
	}
	fmt.Fprintln(w)
	d := report.RiskDistribution
	fmt.Fprintf(w, "Clauses:        %d total, %d high, %d medium, %d low (%s)\n",
		d.TotalClauses, d.HighRiskClauses, d.MediumRiskClauses, d.LowRiskClauses, a.Metadata.Strategy)
	if e := a.Entities; e != nil {
		if len(e.Parties) > 0 {
			names := make([]string, len(e.Parties))
			for i, p := range e.Parties {
				names[i] = fmt.Sprintf("%s (%s)", p.Name, p.Kind)
			}
			fmt.Fprintf(w, "Parties:        %s\n", strings.Join(names, ", "))
		}
		if len(e.Jurisdictions) > 0 {
			places := make([]string, len(e.Jurisdictions))
			for i, j := range e.Jurisdictions {
				places[i] = j.Location
			}
			fmt.Fprintf(w, "Jurisdiction:   %s\n", strings.Join(places, ", "))
		}
	}

	if len(report.KeyRiskAreas) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Key risk areas:")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, area := range report.KeyRiskAreas {
			fmt.Fprintf(tw, "  %s\tx%d\t%s\n", area.RiskArea, area.Frequency, area.Mitigation)
		}
		tw.Flush()
	}

	printClauses(w, "High risk clauses:", report.HighRiskClauses)
	printClauses(w, "Medium risk clauses:", report.MediumRiskClauses)

	if len(a.Clauses) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "All clauses:")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for i, c := range a.Clauses {
			r := a.Result.ClauseResults[i]
			fmt.Fprintf(tw, "  %s\t%s\t%.2f\t%s\n", c.Number, c.Type, r.Score, r.Level)
		}
		tw.Flush()
	}
}

func printClauses(w io.Writer, heading string, results []domain.ClauseRiskResult) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, heading)
	for _, r := range results {
		factors := make([]string, len(r.RiskFactors))
		for i, f := range r.RiskFactors {
			factors[i] = f.Risk
		}
		fmt.Fprintf(w, "  %s  %-24s %6.2f  %s\n", r.ClauseID[:min(len(r.ClauseID), 12)], r.ClauseType, r.Score, strings.Join(factors, ", "))
	}
}
