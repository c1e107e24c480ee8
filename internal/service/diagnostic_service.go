package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/realdiag-server/internal/cache"
	"github.com/realdiag-server/internal/domain"
)

// ResultCache stores serialized engine results. *cache.TieredCache satisfies it.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// DiagnosticService implements domain.DiagnosticEngine on top of the rule
// and tree registries.
type DiagnosticService struct {
	rules  *RuleRegistry
	trees  *TreeRegistry
	cache  ResultCache
	logger *logrus.Logger
}

// NewDiagnosticService creates a service over already built registries.
// cache may be nil.
func NewDiagnosticService(rules *RuleRegistry, trees *TreeRegistry, cache ResultCache, logger *logrus.Logger) *DiagnosticService {
	return &DiagnosticService{
		rules:  rules,
		trees:  trees,
		cache:  cache,
		logger: logger,
	}
}

// LoadDiagnosticService reads every document from source and builds the registries.
func LoadDiagnosticService(ctx context.Context, source domain.DocumentSource, cache ResultCache, logger *logrus.Logger) (*DiagnosticService, error) {
	ruleDocs, err := source.LoadRuleDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule documents: %w", err)
	}
	treeDocs, err := source.LoadTreeDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tree documents: %w", err)
	}

	return NewDiagnosticService(
		NewRuleRegistry(ruleDocs, logger),
		NewTreeRegistry(treeDocs, logger),
		cache,
		logger,
	), nil
}

// Rules exposes the rule registry.
func (s *DiagnosticService) Rules() *RuleRegistry {
	return s.rules
}

// ListTrees returns the id and title of every loaded tree.
func (s *DiagnosticService) ListTrees() []domain.TreeRef {
	return s.trees.List()
}

// EvaluateTree walks the tree with treeID using facts.
func (s *DiagnosticService) EvaluateTree(ctx context.Context, treeID string, facts domain.PatientFacts) (*domain.EvaluationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.trees.Evaluate(treeID, facts)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"tree_id":        treeID,
		"path_length":    len(result.Path),
		"provisional_dx": len(result.ProvisionalDx),
		"duration":       time.Since(start),
	}).Debug("Tree evaluated")

	return result, nil
}

// ListFamilies summarises every loaded family.
func (s *DiagnosticService) ListFamilies() []domain.FamilySummary {
	return s.rules.ListFamilies()
}

// GetFamily returns the full document of a family.
func (s *DiagnosticService) GetFamily(name string) (*domain.RuleDocument, error) {
	doc, ok := s.rules.Family(name)
	if !ok {
		return nil, domain.NewNotFoundError(domain.KindFamily, name)
	}
	return doc, nil
}

// GetReference returns every rule of a family with its count.
func (s *DiagnosticService) GetReference(name string) (*domain.ReferenceListing, error) {
	doc, err := s.GetFamily(name)
	if err != nil {
		return nil, err
	}
	rules := doc.Rules
	if rules == nil {
		rules = []domain.Rule{}
	}
	return &domain.ReferenceListing{
		Family: doc.Family,
		Count:  len(rules),
		Rules:  rules,
	}, nil
}

// SearchRules runs a keyword search over labels, presentations and ICD-10 codes.
func (s *DiagnosticService) SearchRules(query, family string) []domain.RuleRecord {
	return s.rules.Search(query, family)
}

// GetRule returns the first rule with id.
func (s *DiagnosticService) GetRule(id string) (*domain.RuleRecord, error) {
	rec, ok := s.rules.Rule(id)
	if !ok {
		return nil, domain.NewNotFoundError(domain.KindRule, id)
	}
	return rec, nil
}

// SearchBySymptoms ranks rules against free-text symptoms. Symptoms that
// normalize to nothing are ignored; a request without any other symptom is
// invalid.
func (s *DiagnosticService) SearchBySymptoms(ctx context.Context, req domain.SymptomSearchRequest) (*domain.SymptomSearchResponse, error) {
	symptoms := make([]string, 0, len(req.Symptoms))
	for _, sym := range req.Symptoms {
		if NormalizeText(sym) != "" {
			symptoms = append(symptoms, sym)
		}
	}
	if len(symptoms) == 0 {
		return nil, domain.NewInvalidInputError("at least one symptom is required")
	}

	families := s.rules.Families()
	if req.Family != "" {
		doc, ok := s.rules.Family(req.Family)
		if !ok {
			return nil, domain.NewNotFoundError(domain.KindFamily, req.Family)
		}
		families = []*domain.RuleDocument{doc}
	}

	query := req.Symptoms
	if query == nil {
		query = []string{}
	}

	key := symptomCacheKey(req.Family, symptoms)
	if results, ok := s.cachedMatches(ctx, key); ok {
		return &domain.SymptomSearchResponse{
			QuerySymptoms: query,
			TotalResults:  len(results),
			Results:       results,
		}, nil
	}

	results := RankSymptomMatches(symptoms, families)
	s.storeMatches(ctx, key, results)

	s.logger.WithFields(logrus.Fields{
		"symptoms": len(symptoms),
		"family":   req.Family,
		"results":  len(results),
	}).Debug("Symptom search completed")

	return &domain.SymptomSearchResponse{
		QuerySymptoms: query,
		TotalResults:  len(results),
		Results:       results,
	}, nil
}

// GetSearchSuggestions returns the autocomplete vocabulary.
func (s *DiagnosticService) GetSearchSuggestions() domain.SuggestionList {
	symptoms := s.rules.Suggestions()
	if symptoms == nil {
		symptoms = []string{}
	}
	return domain.SuggestionList{Symptoms: symptoms, Total: len(symptoms)}
}

// DidYouMean proposes known tree, family or rule ids close to id.
func (s *DiagnosticService) DidYouMean(kind, id string) []string {
	switch kind {
	case domain.KindTree:
		return DidYouMean(id, s.trees.IDs())
	case domain.KindFamily:
		return DidYouMean(id, s.rules.FamilyNames())
	case domain.KindRule:
		return DidYouMean(id, s.rules.RuleIDs())
	}
	return []string{}
}

func symptomCacheKey(family string, symptoms []string) string {
	normalized := make([]string, len(symptoms))
	for i, sym := range symptoms {
		normalized[i] = NormalizeText(sym)
	}
	sort.Strings(normalized)
	return cache.Key(append([]string{"symptoms", family}, normalized...)...)
}

func (s *DiagnosticService) cachedMatches(ctx context.Context, key string) ([]domain.SymptomMatch, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok := s.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var results []domain.SymptomMatch
	if err := json.Unmarshal(data, &results); err != nil {
		s.logger.WithError(err).Warn("Discarding unreadable cached symptom search")
		return nil, false
	}
	return results, true
}

func (s *DiagnosticService) storeMatches(ctx context.Context, key string, results []domain.SymptomMatch) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(results)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to encode symptom search for caching")
		return
	}
	s.cache.Set(ctx, key, data)
}
