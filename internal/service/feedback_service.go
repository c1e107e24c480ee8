package service

import (
	"context"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/realdiag-server/internal/domain"
	"github.com/realdiag-server/internal/feedback"
)

const (
	defaultFeedbackPageSize = 50
	maxFeedbackPageSize     = 500
)

// SubmitFeedbackRequest is a clinician's judgement on a suggested rule.
type SubmitFeedbackRequest struct {
	RuleID             string `json:"rule_id"`
	Context            string `json:"context"`
	Source             string `json:"source"`
	Verdict            string `json:"verdict"`
	CorrectedDiagnosis string `json:"corrected_diagnosis,omitempty"`
	Notes              string `json:"notes,omitempty"`
}

// FeedbackPage is one page of stored feedback plus the overall total.
type FeedbackPage struct {
	Feedback []*feedback.Feedback `json:"feedback"`
	Total    int64                `json:"total"`
}

// FeedbackService validates clinician feedback against the loaded rules
// before handing it to the store.
type FeedbackService struct {
	store  feedback.Store
	rules  *RuleRegistry
	logger *logrus.Logger
}

// NewFeedbackService creates a feedback service.
func NewFeedbackService(store feedback.Store, rules *RuleRegistry, logger *logrus.Logger) *FeedbackService {
	return &FeedbackService{
		store:  store,
		rules:  rules,
		logger: logger,
	}
}

// Submit validates req and stores it, replacing earlier feedback for the
// same rule and context.
func (s *FeedbackService) Submit(ctx context.Context, req SubmitFeedbackRequest) (*feedback.Feedback, error) {
	ruleID := strings.TrimSpace(req.RuleID)
	if ruleID == "" {
		return nil, domain.NewValidationError("rule_id", "is required", req.RuleID)
	}
	source := feedback.Source(req.Source)
	if !source.IsValid() {
		return nil, domain.NewValidationError("source", "must be one of symptom_search, keyword_search, decision_tree", req.Source)
	}
	verdict := feedback.Verdict(req.Verdict)
	if !verdict.IsValid() {
		return nil, domain.NewValidationError("verdict", "must be one of agree, disagree, unsure", req.Verdict)
	}

	rule, ok := s.rules.Rule(ruleID)
	if !ok {
		return nil, domain.NewNotFoundError(domain.KindRule, ruleID)
	}

	fb := &feedback.Feedback{
		RuleID:             rule.ID,
		Family:             rule.Family,
		Context:            strings.TrimSpace(req.Context),
		Source:             source,
		Verdict:            verdict,
		CorrectedDiagnosis: strings.TrimSpace(req.CorrectedDiagnosis),
		Notes:              req.Notes,
	}
	if err := s.store.Save(ctx, fb); err != nil {
		return nil, domain.NewDiagnosticError(domain.ErrStorage, "failed to save feedback", err.Error())
	}

	s.logger.WithFields(logrus.Fields{
		"rule_id": fb.RuleID,
		"family":  fb.Family,
		"source":  fb.Source,
		"verdict": fb.Verdict,
	}).Info("Feedback recorded")

	return fb, nil
}

// List returns a page of feedback, newest first. A non-positive limit
// selects the default page size; larger limits are capped.
func (s *FeedbackService) List(ctx context.Context, limit, offset int) (*FeedbackPage, error) {
	if offset < 0 {
		return nil, domain.NewValidationError("offset", "must not be negative", offset)
	}
	if limit <= 0 {
		limit = defaultFeedbackPageSize
	}
	if limit > maxFeedbackPageSize {
		limit = maxFeedbackPageSize
	}

	items, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, domain.NewDiagnosticError(domain.ErrStorage, "failed to list feedback", err.Error())
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, domain.NewDiagnosticError(domain.ErrStorage, "failed to count feedback", err.Error())
	}
	if items == nil {
		items = []*feedback.Feedback{}
	}
	return &FeedbackPage{Feedback: items, Total: total}, nil
}

// Export writes every stored entry as a JSON export document.
func (s *FeedbackService) Export(ctx context.Context, w io.Writer) error {
	return s.store.ExportJSON(ctx, w)
}

// Import reads an export document, skipping entries that already exist.
func (s *FeedbackService) Import(ctx context.Context, r io.Reader) (imported, skipped int, err error) {
	imported, skipped, err = s.store.ImportJSON(ctx, r)
	if err != nil {
		return imported, skipped, err
	}
	s.logger.WithFields(logrus.Fields{
		"imported": imported,
		"skipped":  skipped,
	}).Info("Feedback imported")
	return imported, skipped, nil
}
