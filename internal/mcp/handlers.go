package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/realdiag-server/internal/domain"
	"github.com/realdiag-server/internal/service"
)

// ListTreesParams takes no arguments
type ListTreesParams struct{}

// EvaluateTreeParams defines parameters for the evaluate_tree tool
type EvaluateTreeParams struct {
	TreeID string              `json:"tree_id" jsonschema:"Decision tree id, e.g. chest-pain"`
	Facts  domain.PatientFacts `json:"facts,omitempty" jsonschema:"Patient facts: diagnosis, symptoms, exam, red_flags, age, onset_hours"`
}

// FamilyParams names a rule family
type FamilyParams struct {
	Family string `json:"family" jsonschema:"Rule family name, e.g. cardiology"`
}

// SearchRulesParams defines parameters for the search_rules tool
type SearchRulesParams struct {
	Query  string `json:"query" jsonschema:"Case-insensitive keyword"`
	Family string `json:"family,omitempty" jsonschema:"Restrict results to one family"`
}

// GetRuleParams defines parameters for the get_rule tool
type GetRuleParams struct {
	RuleID string `json:"rule_id" jsonschema:"Rule id, e.g. CARD-ACS"`
}

// SearchBySymptomsParams defines parameters for the search_by_symptoms tool
type SearchBySymptomsParams struct {
	Symptoms []string `json:"symptoms" jsonschema:"Free-text symptoms"`
	Age      *int     `json:"age,omitempty" jsonschema:"Patient age in years (informational)"`
	Sex      string   `json:"sex,omitempty" jsonschema:"Patient sex (informational)"`
	Family   string   `json:"family,omitempty" jsonschema:"Restrict scoring to one family"`
}

// ListFeedbackParams defines parameters for the list_feedback tool
type ListFeedbackParams struct {
	Limit  int `json:"limit,omitempty" jsonschema:"Page size, default 50, at most 500"`
	Offset int `json:"offset,omitempty" jsonschema:"Number of entries to skip"`
}

func (s *Server) handleListTrees(_ context.Context, _ *mcp.CallToolRequest, _ ListTreesParams) (*mcp.CallToolResult, any, error) {
	return toolJSON(map[string]any{"trees": s.engine.ListTrees()})
}

func (s *Server) handleEvaluateTree(ctx context.Context, _ *mcp.CallToolRequest, params EvaluateTreeParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tree_id", params.TreeID).Debug("evaluate_tree invoked")

	if params.TreeID == "" {
		return toolError("Missing required parameter: tree_id"), nil, nil
	}

	result, err := s.engine.EvaluateTree(ctx, params.TreeID, params.Facts)
	if err != nil {
		return s.errorResult(err, domain.KindTree, params.TreeID), nil, nil
	}
	return toolJSON(map[string]any{"tree_result": result})
}

func (s *Server) handleListFamilies(_ context.Context, _ *mcp.CallToolRequest, _ ListTreesParams) (*mcp.CallToolResult, any, error) {
	return toolJSON(map[string]any{"families": s.engine.ListFamilies()})
}

func (s *Server) handleGetFamily(_ context.Context, _ *mcp.CallToolRequest, params FamilyParams) (*mcp.CallToolResult, any, error) {
	doc, err := s.engine.GetFamily(params.Family)
	if err != nil {
		return s.errorResult(err, domain.KindFamily, params.Family), nil, nil
	}
	return toolJSON(doc)
}

func (s *Server) handleGetReference(_ context.Context, _ *mcp.CallToolRequest, params FamilyParams) (*mcp.CallToolResult, any, error) {
	ref, err := s.engine.GetReference(params.Family)
	if err != nil {
		return s.errorResult(err, domain.KindFamily, params.Family), nil, nil
	}
	return toolJSON(ref)
}

func (s *Server) handleSearchRules(_ context.Context, _ *mcp.CallToolRequest, params SearchRulesParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.Query) == "" {
		return toolError("Missing required parameter: query"), nil, nil
	}
	return toolJSON(map[string]any{"results": s.engine.SearchRules(params.Query, params.Family)})
}

func (s *Server) handleGetRule(_ context.Context, _ *mcp.CallToolRequest, params GetRuleParams) (*mcp.CallToolResult, any, error) {
	rec, err := s.engine.GetRule(params.RuleID)
	if err != nil {
		return s.errorResult(err, domain.KindRule, params.RuleID), nil, nil
	}
	return toolJSON(rec)
}

func (s *Server) handleSearchBySymptoms(ctx context.Context, _ *mcp.CallToolRequest, params SearchBySymptomsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("symptom_count", len(params.Symptoms)).Debug("search_by_symptoms invoked")

	resp, err := s.engine.SearchBySymptoms(ctx, domain.SymptomSearchRequest{
		Symptoms: params.Symptoms,
		Age:      params.Age,
		Sex:      params.Sex,
		Family:   params.Family,
	})
	if err != nil {
		return s.errorResult(err, domain.KindFamily, params.Family), nil, nil
	}
	return toolJSON(resp)
}

func (s *Server) handleSearchSuggestions(_ context.Context, _ *mcp.CallToolRequest, _ ListTreesParams) (*mcp.CallToolResult, any, error) {
	return toolJSON(s.engine.GetSearchSuggestions())
}

func (s *Server) handleSubmitFeedback(ctx context.Context, _ *mcp.CallToolRequest, params service.SubmitFeedbackRequest) (*mcp.CallToolResult, any, error) {
	if s.feedback == nil {
		return toolError("Feedback storage is disabled"), nil, nil
	}

	fb, err := s.feedback.Submit(ctx, params)
	if err != nil {
		return s.errorResult(err, domain.KindRule, params.RuleID), nil, nil
	}
	return toolJSON(fb)
}

func (s *Server) handleListFeedback(ctx context.Context, _ *mcp.CallToolRequest, params ListFeedbackParams) (*mcp.CallToolResult, any, error) {
	if s.feedback == nil {
		return toolError("Feedback storage is disabled"), nil, nil
	}

	page, err := s.feedback.List(ctx, params.Limit, params.Offset)
	if err != nil {
		return s.errorResult(err, "", ""), nil, nil
	}
	return toolJSON(page)
}

// ExportFeedbackResult reports where the export was written
type ExportFeedbackResult struct {
	FilePath string `json:"file_path"`
	Count    int64  `json:"count"`
}

func (s *Server) handleExportFeedback(ctx context.Context, _ *mcp.CallToolRequest, _ ListTreesParams) (*mcp.CallToolResult, any, error) {
	if s.feedback == nil {
		return toolError("Feedback storage is disabled"), nil, nil
	}
	if s.exportDir == "" {
		return toolError("Export directory is not configured"), nil, nil
	}

	if err := os.MkdirAll(s.exportDir, 0755); err != nil {
		return toolError("Failed to create export directory: %v", err), nil, nil
	}
	filename := fmt.Sprintf("feedback_export_%s.json", time.Now().UTC().Format("20060102_150405"))
	filePath := filepath.Join(s.exportDir, filename)

	file, err := s.create(filePath)
	if err != nil {
		return toolError("Failed to create export file: %v", err), nil, nil
	}

	if err := s.feedback.Export(ctx, file); err != nil {
		file.Close()
		s.logger.WithError(err).Error("Failed to export feedback")
		return toolError("Failed to export feedback: %v", err), nil, nil
	}
	if err := file.Close(); err != nil {
		s.logger.WithError(err).Error("Failed to write feedback export")
		return toolError("Failed to write export file: %v", err), nil, nil
	}

	page, err := s.feedback.List(ctx, 1, 0)
	if err != nil {
		return s.errorResult(err, "", ""), nil, nil
	}
	return toolJSON(ExportFeedbackResult{FilePath: filePath, Count: page.Total})
}

// errorResult turns an engine error into a tool error result. Unknown ids get
// suggestions of the same kind appended.
func (s *Server) errorResult(err error, kind, id string) *mcp.CallToolResult {
	var ve *domain.ValidationError
	var de *domain.DiagnosticError
	switch {
	case errors.As(err, &ve):
		return toolError("Error: %s", ve.Error())

	case domain.IsNotFound(err):
		errors.As(err, &de)
		if de.Details != "" {
			kind = de.Details
		}
		text := "Error: " + de.Message
		if suggestions := s.engine.DidYouMean(kind, id); len(suggestions) > 0 {
			text += fmt.Sprintf(" (did you mean: %s?)", strings.Join(suggestions, ", "))
		}
		return toolError("%s", text)

	case domain.IsInvalidInput(err):
		return toolError("Error: %s", err.Error())

	default:
		s.logger.WithError(err).Error("Tool call failed")
		return toolError("Error: internal error")
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
