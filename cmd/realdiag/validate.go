package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/realdiag-server/internal/domain"
	"github.com/realdiag-server/internal/repository"
)

// validationReport is the output of the validate command
type validationReport struct {
	Rules *repository.LoadReport `json:"rules"`
	Trees *repository.LoadReport `json:"trees"`
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check every rule and tree document",
		Long: `Load the rule and tree directories and report which documents were
accepted and which were skipped, with the reason. Exits non-zero when any
document was skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := opts.documentStore(cmd)

			_, rules, err := store.LoadRules(cmd.Context())
			if err != nil {
				return err
			}
			_, trees, err := store.LoadTrees(cmd.Context())
			if err != nil {
				return err
			}

			if err := printJSON(cmd.OutOrStdout(), validationReport{Rules: rules, Trees: trees}); err != nil {
				return err
			}

			if skipped := len(rules.Skipped) + len(trees.Skipped); skipped > 0 {
				return fmt.Errorf("%d document(s) skipped", skipped)
			}
			return nil
		},
	}
}

// knowledgeStats is the output of the stats command
type knowledgeStats struct {
	Families  []domain.FamilySummary `json:"families"`
	RuleCount int                    `json:"rule_count"`
	TreeCount int                    `json:"tree_count"`
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the loaded knowledge base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}

			stats := knowledgeStats{
				Families:  engine.ListFamilies(),
				TreeCount: len(engine.ListTrees()),
			}
			for _, f := range stats.Families {
				stats.RuleCount += f.RuleCount
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}
