package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/realdiag-server/internal/config"
	"github.com/realdiag-server/internal/feedback"
	"github.com/realdiag-server/internal/logging"
	"github.com/realdiag-server/internal/repository"
	"github.com/realdiag-server/internal/service"
)

// options holds the persistent flags shared by every subcommand
type options struct {
	rulesDir  string
	treesDir  string
	dataDir   string
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	cfg := config.LoadLiteConfig()
	opts := &options{}

	root := &cobra.Command{
		Use:   "realdiag",
		Short: "Query a RealDiag knowledge base from the command line",
		Long: `Query RealDiag rule families and decision trees without running a server.

Results are printed as JSON on stdout; logs go to stderr.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.rulesDir, "rules-dir", cfg.RulesDir, "directory of rule family documents")
	flags.StringVar(&opts.treesDir, "trees-dir", cfg.TreesDir, "directory of decision tree documents")
	flags.StringVar(&opts.dataDir, "data-dir", cfg.DataDir, "directory holding feedback.db")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "text", "log format: json, text")

	root.AddCommand(
		newTreesCmd(opts),
		newEvaluateCmd(opts),
		newFamiliesCmd(opts),
		newFamilyCmd(opts),
		newSearchCmd(opts),
		newRuleCmd(opts),
		newSymptomsCmd(opts),
		newSuggestionsCmd(opts),
		newFeedbackCmd(opts),
		newValidateCmd(opts),
		newStatsCmd(opts),
		newSetupCmd(opts),
	)

	return root
}

func (o *options) logger(cmd *cobra.Command) *logrus.Logger {
	return logging.New(o.logLevel, o.logFormat, cmd.ErrOrStderr())
}

func (o *options) documentStore(cmd *cobra.Command) *repository.DocumentStore {
	return repository.NewDocumentStore(o.rulesDir, o.treesDir, o.logger(cmd))
}

// engine loads the knowledge base. The CLI runs one query per process, so
// no result cache is attached.
func (o *options) engine(cmd *cobra.Command) (*service.DiagnosticService, error) {
	engine, err := service.LoadDiagnosticService(cmd.Context(), o.documentStore(cmd), nil, o.logger(cmd))
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge base: %w", err)
	}
	return engine, nil
}

// feedbackService opens the SQLite feedback store under the data directory.
// The returned close function releases it.
func (o *options) feedbackService(cmd *cobra.Command) (*service.FeedbackService, func(), error) {
	engine, err := o.engine(cmd)
	if err != nil {
		return nil, nil, err
	}

	lite := &config.LiteConfig{DataDir: o.dataDir}
	if err := lite.EnsureDataDir(); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := feedback.NewSQLiteStore(lite.FeedbackDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open feedback store: %w", err)
	}
	return service.NewFeedbackService(store, engine.Rules(), o.logger(cmd)), func() { store.Close() }, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
