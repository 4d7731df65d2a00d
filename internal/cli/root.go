// Package cli implements the covenant command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/covenant/internal/config"
	"github.com/opensource-finance/covenant/internal/domain"
)

// BuildInfo is set via ldflags in cmd/covenant.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// app carries state shared by every subcommand.
type app struct {
	build   BuildInfo
	cfgFile string
	verbose bool
	cfg     *domain.Config
}

// Execute runs the root command.
func Execute(build BuildInfo) error {
	return NewRootCommand(build).Execute()
}

// NewRootCommand builds the command tree.
func NewRootCommand(build BuildInfo) *cobra.Command {
	a := &app{build: build}

	root := &cobra.Command{
		Use:   "covenant",
		Short: "Covenant - contract clause extraction and risk scoring",
		Long: `Covenant splits legal contracts into clauses, scores every clause against a
weighted table of risk factors and aggregates the scores into a contract-level
verdict with a summary report.

Scoring is deterministic: the same text and contract type always produce the
same result.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return err
			}
			if a.verbose {
				cfg.Logging.Level = "debug"
			}
			a.cfg = cfg
			slog.SetDefault(newLogger(cfg.Logging, cmd.ErrOrStderr()))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newServeCommand(a),
		newAnalyzeCommand(a),
		newSegmentCommand(a),
		newRulesCommand(a),
		newConfigCommand(a),
		newVersionCommand(a),
	)

	return root
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "covenant %s (commit %s, built %s)\n",
				a.build.Version, a.build.Commit, a.build.BuildDate)
		},
	}
}

// newLogger builds the process logger. Level names were validated by
// config.Load.
func newLogger(cfg domain.LoggingConfig, w io.Writer) *slog.Logger {
	level, _ := config.ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}
	if w == nil {
		w = os.Stderr
	}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
