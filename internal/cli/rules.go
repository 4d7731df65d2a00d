package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/covenant/internal/config"
	"github.com/opensource-finance/covenant/internal/rules"
)

func newRulesCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the active risk rules and contract-type weights",
		Long: `Rules prints the builtin risk table merged with the configured rule pack
(engine.rulesFile). Rules stored through the API are not included.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ruleFile, err := loadRuleFile(a.cfg.Engine.RulesFile)
			if err != nil {
				return err
			}
			set, err := rules.Build(ruleFile, nil, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeIndentedJSON(out, map[string]interface{}{
					"digest":   set.Digest(),
					"rules":    set.Rules(),
					"profiles": set.Profiles(),
				})
			}

			fmt.Fprintf(out, "Rule set %s (%d rules)\n\n", set.Digest(), set.Len())
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tBASE\tKEYWORDS\tBUILTIN")
			for _, r := range set.Rules() {
				fmt.Fprintf(tw, "%s\t%.0f\t%s\t%t\n", r.Name, r.BaseScore, strings.Join(r.Keywords, ", "), r.Builtin)
			}
			tw.Flush()

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Contract-type weights (others 1.0):")
			for _, p := range set.Profiles() {
				names := make([]string, 0, len(p.Weights))
				for name := range p.Weights {
					names = append(names, name)
				}
				sort.Strings(names)
				parts := make([]string, len(names))
				for i, name := range names {
					parts[i] = fmt.Sprintf("%s=%.1f", name, p.Weights[name])
				}
				fmt.Fprintf(out, "  %-22s %s\n", p.ContractType, strings.Join(parts, " "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect Covenant configuration",
		Long: `Configuration hierarchy (highest to lowest priority):
1. Environment variables (COVENANT_*, also read from ./.env)
2. Config file (--config)
3. Tier defaults (COVENANT_TIER=pro selects the pro defaults)`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfgFile != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", a.cfgFile)
			}
			data, err := config.Marshal(config.Redacted(a.cfg))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	return cmd
}
