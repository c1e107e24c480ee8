package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/realdiag-server/internal/domain"
	"github.com/realdiag-server/internal/service"
)

func newTreesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "trees",
		Short: "List decision trees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"trees": engine.ListTrees()})
		},
	}
}

func newEvaluateCmd(opts *options) *cobra.Command {
	var factsPath string

	cmd := &cobra.Command{
		Use:   "evaluate <tree-id>",
		Short: "Walk a decision tree with patient facts",
		Long: `Walk a decision tree with patient facts read from a JSON file.

Use --facts - to read the facts from stdin. Without --facts the tree is
evaluated with no facts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			facts, err := readFacts(cmd, factsPath)
			if err != nil {
				return err
			}

			engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}

			result, err := engine.EvaluateTree(cmd.Context(), args[0], facts)
			if err != nil {
				return withSuggestions(engine, err, domain.KindTree, args[0])
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"tree_result": result})
		},
	}

	cmd.Flags().StringVar(&factsPath, "facts", "", "JSON file with patient facts, - for stdin")
	return cmd
}

func readFacts(cmd *cobra.Command, path string) (domain.PatientFacts, error) {
	var facts domain.PatientFacts
	if path == "" {
		return facts, nil
	}

	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return facts, fmt.Errorf("failed to open facts file: %w", err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(&facts); err != nil {
		return facts, fmt.Errorf("invalid patient facts: %w", err)
	}
	return facts, nil
}

func newFamiliesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "families",
		Short: "List rule families",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"families": engine.ListFamilies()})
		},
	}
}

func newFamilyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "family <name>",
		Short: "Show the rule document of a family",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			doc, err := engine.GetFamily(args[0])
			if err != nil {
				return withSuggestions(engine, err, domain.KindFamily, args[0])
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}
}

func newSearchCmd(opts *options) *cobra.Command {
	var family string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Keyword search over rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"results": engine.SearchRules(args[0], family)})
		},
	}

	cmd.Flags().StringVar(&family, "family", "", "restrict results to one family")
	return cmd
}

func newRuleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rule <id>",
		Short: "Show a single rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			rec, err := engine.GetRule(args[0])
			if err != nil {
				return withSuggestions(engine, err, domain.KindRule, args[0])
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func newSymptomsCmd(opts *options) *cobra.Command {
	var (
		family string
		age    int
		sex    string
	)

	cmd := &cobra.Command{
		Use:   "symptoms <symptom>...",
		Short: "Rank rules by symptom match",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}

			req := domain.SymptomSearchRequest{Symptoms: args, Sex: sex, Family: family}
			if cmd.Flags().Changed("age") {
				req.Age = &age
			}

			resp, err := engine.SearchBySymptoms(cmd.Context(), req)
			if err != nil {
				return withSuggestions(engine, err, domain.KindFamily, family)
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&family, "family", "", "restrict scoring to one family")
	cmd.Flags().IntVar(&age, "age", 0, "patient age in years")
	cmd.Flags().StringVar(&sex, "sex", "", "patient sex")
	return cmd
}

func newSuggestionsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "suggestions",
		Short: "List symptom search suggestions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), engine.GetSearchSuggestions())
		},
	}
}

// withSuggestions appends did-you-mean candidates to NotFound errors.
func withSuggestions(engine *service.DiagnosticService, err error, kind, id string) error {
	if !domain.IsNotFound(err) {
		return err
	}
	suggestions := engine.DidYouMean(kind, id)
	if len(suggestions) == 0 {
		return err
	}
	return fmt.Errorf("%w (did you mean: %s?)", err, strings.Join(suggestions, ", "))
}
