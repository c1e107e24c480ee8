package service

import (
	"github.com/sirupsen/logrus"

	"github.com/realdiag-server/internal/domain"
)

// TreeRegistry holds the loaded decision trees keyed by id. Like
// RuleRegistry it is immutable once built.
type TreeRegistry struct {
	trees []*domain.TreeDocument
	byID  map[string]*domain.TreeDocument
}

// NewTreeRegistry indexes docs by tree id. Documents without an id are
// skipped; a later document with the same id replaces the earlier one in its
// original position.
func NewTreeRegistry(docs []domain.TreeDocument, logger *logrus.Logger) *TreeRegistry {
	r := &TreeRegistry{byID: make(map[string]*domain.TreeDocument, len(docs))}

	for i := range docs {
		doc := docs[i]
		if doc.ID == "" {
			logger.Warn("Skipping tree document without an id")
			continue
		}
		if existing, ok := r.byID[doc.ID]; ok {
			logger.WithField("tree_id", doc.ID).Warn("Duplicate tree id; later document wins")
			*existing = doc
			continue
		}
		stored := doc
		r.trees = append(r.trees, &stored)
		r.byID[doc.ID] = &stored
	}

	logger.WithField("trees", len(r.trees)).Info("Tree registry loaded")
	return r
}

// List returns the id and title of every tree in load order.
func (r *TreeRegistry) List() []domain.TreeRef {
	out := make([]domain.TreeRef, 0, len(r.trees))
	for _, t := range r.trees {
		out = append(out, domain.TreeRef{ID: t.ID, Title: t.Title})
	}
	return out
}

// IDs returns every tree id in load order.
func (r *TreeRegistry) IDs() []string {
	ids := make([]string, len(r.trees))
	for i, t := range r.trees {
		ids[i] = t.ID
	}
	return ids
}

// Tree returns the tree with id.
func (r *TreeRegistry) Tree(id string) (*domain.TreeDocument, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// Evaluate walks the tree with id, or reports it as not found.
func (r *TreeRegistry) Evaluate(id string, facts domain.PatientFacts) (*domain.EvaluationResult, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, domain.NewNotFoundError(domain.KindTree, id)
	}
	return Walk(t, facts), nil
}
