// Package feedback stores clinician feedback on suggested diagnoses.
// A clinician records whether a rule suggested by a symptom search, keyword
// search or decision tree was useful for the query that produced it.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Verdict is the clinician's judgement of a suggestion.
type Verdict string

const (
	VerdictAgree    Verdict = "agree"
	VerdictDisagree Verdict = "disagree"
	VerdictUnsure   Verdict = "unsure"
)

// IsValid reports whether v is a known verdict.
func (v Verdict) IsValid() bool {
	switch v {
	case VerdictAgree, VerdictDisagree, VerdictUnsure:
		return true
	}
	return false
}

// Source is the engine operation that produced the suggestion.
type Source string

const (
	SourceSymptomSearch Source = "symptom_search"
	SourceKeywordSearch Source = "keyword_search"
	SourceDecisionTree  Source = "decision_tree"
)

// IsValid reports whether s is a known source.
func (s Source) IsValid() bool {
	switch s {
	case SourceSymptomSearch, SourceKeywordSearch, SourceDecisionTree:
		return true
	}
	return false
}

// Feedback is one clinician judgement on a suggested rule.
type Feedback struct {
	ID                 int64     `json:"id,omitempty"`
	RuleID             string    `json:"rule_id"`
	Family             string    `json:"family"`
	Context            string    `json:"context"` // query text or tree id that produced the suggestion
	Source             Source    `json:"source"`
	Verdict            Verdict   `json:"verdict"`
	CorrectedDiagnosis string    `json:"corrected_diagnosis,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Store defines the interface for feedback storage operations.
type Store interface {
	// Save stores or updates feedback.
	// Feedback for the same rule and context replaces the earlier entry.
	Save(ctx context.Context, feedback *Feedback) error

	// Get retrieves the feedback for a rule in a context, or nil when none exists.
	Get(ctx context.Context, ruleID, queryContext string) (*Feedback, error)

	// List returns feedback entries, newest first.
	List(ctx context.Context, limit, offset int) ([]*Feedback, error)

	// Count returns the total number of feedback entries.
	Count(ctx context.Context) (int64, error)

	// Delete removes a feedback entry by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports all feedback to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports feedback from a JSON reader.
	// Entries that already exist for the same rule and context are skipped.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// FeedbackExport represents the JSON export format.
type FeedbackExport struct {
	Version    string      `json:"version"`
	ExportedAt time.Time   `json:"exported_at"`
	Count      int         `json:"count"`
	Feedback   []*Feedback `json:"feedback"`
}

// ExportVersion is written into every export document.
const ExportVersion = "1.0"

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

func exportJSON(ctx context.Context, s Store, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list feedback: %w", err)
	}
	if all == nil {
		all = []*Feedback{}
	}

	export := &FeedbackExport{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Feedback:   all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importJSON(ctx context.Context, s Store, reader io.Reader) (imported int, skipped int, err error) {
	var export FeedbackExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, fb := range export.Feedback {
		if fb == nil {
			continue
		}
		existing, err := s.Get(ctx, fb.RuleID, fb.Context)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}
		if existing != nil {
			skipped++
			continue
		}

		fb.ID = 0
		if err := s.Save(ctx, fb); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}
