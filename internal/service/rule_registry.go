package service

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/realdiag-server/internal/domain"
)

// MaxSuggestions caps the autocomplete vocabulary.
const MaxSuggestions = 500

// RuleRegistry holds the loaded rule families. It is built once and never
// mutated afterwards, so it is safe for concurrent readers.
type RuleRegistry struct {
	families []*domain.RuleDocument
	byName   map[string]*domain.RuleDocument

	suggestions []string
}

// NewRuleRegistry indexes docs by family name. Documents without a family are
// skipped; a later document with the same family replaces the earlier one in
// its original position.
func NewRuleRegistry(docs []domain.RuleDocument, logger *logrus.Logger) *RuleRegistry {
	r := &RuleRegistry{byName: make(map[string]*domain.RuleDocument, len(docs))}

	for i := range docs {
		doc := docs[i]
		if doc.Family == "" {
			logger.Warn("Skipping rule document without a family")
			continue
		}
		if existing, ok := r.byName[doc.Family]; ok {
			logger.WithField("family", doc.Family).Warn("Duplicate rule family; later document wins")
			*existing = doc
			continue
		}
		stored := doc
		r.families = append(r.families, &stored)
		r.byName[doc.Family] = &stored
	}

	r.suggestions = buildSuggestions(r.families)

	logger.WithFields(logrus.Fields{
		"families":    len(r.families),
		"rules":       r.RuleCount(),
		"suggestions": len(r.suggestions),
	}).Info("Rule registry loaded")

	return r
}

// RuleCount returns the number of rules across all families.
func (r *RuleRegistry) RuleCount() int {
	n := 0
	for _, doc := range r.families {
		n += len(doc.Rules)
	}
	return n
}

// Families returns every family in load order.
func (r *RuleRegistry) Families() []*domain.RuleDocument {
	return r.families
}

// FamilyNames returns every family name in load order.
func (r *RuleRegistry) FamilyNames() []string {
	names := make([]string, len(r.families))
	for i, doc := range r.families {
		names[i] = doc.Family
	}
	return names
}

// ListFamilies summarises every family.
func (r *RuleRegistry) ListFamilies() []domain.FamilySummary {
	out := make([]domain.FamilySummary, 0, len(r.families))
	for _, doc := range r.families {
		version := doc.Version
		if version == "" {
			version = "unknown"
		}
		out = append(out, domain.FamilySummary{
			Family:    doc.Family,
			Version:   version,
			Source:    doc.Source,
			RuleCount: len(doc.Rules),
		})
	}
	return out
}

// Family returns the document for name.
func (r *RuleRegistry) Family(name string) (*domain.RuleDocument, bool) {
	doc, ok := r.byName[name]
	return doc, ok
}

// Search returns the rules whose label, joined presentations or joined
// ICD-10 codes contain query, case-insensitively, in family then rule order.
// A non-empty family restricts the search; an unknown family yields nothing.
func (r *RuleRegistry) Search(query, family string) []domain.RuleRecord {
	query = strings.ToLower(query)

	docs := r.families
	if family != "" {
		doc, ok := r.byName[family]
		if !ok {
			return []domain.RuleRecord{}
		}
		docs = []*domain.RuleDocument{doc}
	}

	results := []domain.RuleRecord{}
	for _, doc := range docs {
		for _, rule := range doc.Rules {
			if ruleMatches(rule, query) {
				results = append(results, record(doc.Family, rule))
			}
		}
	}
	return results
}

func ruleMatches(rule domain.Rule, query string) bool {
	switch {
	case strings.Contains(strings.ToLower(rule.Label), query):
		return true
	case strings.Contains(strings.ToLower(strings.Join(rule.Presentations, " ")), query):
		return true
	default:
		return strings.Contains(strings.ToLower(strings.Join(rule.ICD10, " ")), query)
	}
}

// Rule returns the first rule with id across families in load order.
func (r *RuleRegistry) Rule(id string) (*domain.RuleRecord, bool) {
	for _, doc := range r.families {
		for _, rule := range doc.Rules {
			if rule.ID == id {
				rec := record(doc.Family, rule)
				return &rec, true
			}
		}
	}
	return nil, false
}

// RuleIDs returns every rule id in load order.
func (r *RuleRegistry) RuleIDs() []string {
	ids := make([]string, 0, r.RuleCount())
	for _, doc := range r.families {
		for _, rule := range doc.Rules {
			ids = append(ids, rule.ID)
		}
	}
	return ids
}

// Suggestions returns the sorted autocomplete vocabulary.
func (r *RuleRegistry) Suggestions() []string {
	return r.suggestions
}

func record(family string, rule domain.Rule) domain.RuleRecord {
	return domain.RuleRecord{
		Family:        family,
		ID:            rule.ID,
		Label:         rule.Label,
		Presentations: rule.Presentations,
		ICD10:         rule.ICD10,
	}
}

// buildSuggestions splits every presentation on commas and keeps the first
// MaxSuggestions unique trimmed fragments in lexicographic order.
func buildSuggestions(families []*domain.RuleDocument) []string {
	set := make(map[string]struct{})
	for _, doc := range families {
		for _, rule := range doc.Rules {
			for _, p := range rule.Presentations {
				for _, part := range strings.Split(p, ",") {
					if part = strings.TrimSpace(part); part != "" {
						set[part] = struct{}{}
					}
				}
			}
		}
	}
	out := sortedKeys(set)
	if len(out) > MaxSuggestions {
		out = out[:MaxSuggestions]
	}
	return out
}
