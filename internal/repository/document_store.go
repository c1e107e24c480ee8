package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/realdiag-server/internal/domain"
)

// maxParallelLoads bounds how many documents are parsed at once.
const maxParallelLoads = 8

// SkippedDocument is a file that did not contribute to the knowledge base.
type SkippedDocument struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// LoadReport describes the outcome of loading one directory.
type LoadReport struct {
	Dir     string            `json:"dir"`
	Loaded  []string          `json:"loaded"`
	Skipped []SkippedDocument `json:"skipped"`
}

// DocumentStore reads rule families and decision trees from YAML files.
type DocumentStore struct {
	rulesDir string
	treesDir string
	log      *logrus.Logger
}

// NewDocumentStore creates a store over the given directories.
func NewDocumentStore(rulesDir, treesDir string, logger *logrus.Logger) *DocumentStore {
	return &DocumentStore{
		rulesDir: rulesDir,
		treesDir: treesDir,
		log:      logger,
	}
}

// LoadRuleDocuments implements domain.DocumentSource.
func (s *DocumentStore) LoadRuleDocuments(ctx context.Context) ([]domain.RuleDocument, error) {
	docs, _, err := s.LoadRules(ctx)
	return docs, err
}

// LoadTreeDocuments implements domain.DocumentSource.
func (s *DocumentStore) LoadTreeDocuments(ctx context.Context) ([]domain.TreeDocument, error) {
	docs, _, err := s.LoadTrees(ctx)
	return docs, err
}

// LoadRules parses every rule family in the rules directory, in file name order.
func (s *DocumentStore) LoadRules(ctx context.Context) ([]domain.RuleDocument, *LoadReport, error) {
	return loadDirectory(ctx, s, s.rulesDir, "rule", decodeRuleDocument)
}

// LoadTrees parses every decision tree in the trees directory, in file name order.
func (s *DocumentStore) LoadTrees(ctx context.Context) ([]domain.TreeDocument, *LoadReport, error) {
	return loadDirectory(ctx, s, s.treesDir, "tree", decodeTreeDocument)
}

type decodeFunc[T any] func(path string, data []byte, log *logrus.Logger) (T, error)

type loadResult[T any] struct {
	doc T
	err error
}

func loadDirectory[T any](ctx context.Context, s *DocumentStore, dir, kind string, decode decodeFunc[T]) ([]T, *LoadReport, error) {
	report := &LoadReport{Dir: dir, Loaded: []string{}, Skipped: []SkippedDocument{}}

	paths, err := documentPaths(dir)
	if err != nil {
		return nil, nil, err
	}
	if paths == nil {
		s.log.WithFields(logrus.Fields{
			"kind": kind,
			"dir":  dir,
		}).Warn("Document directory does not exist, nothing loaded")
		return []T{}, report, nil
	}

	results := make([]loadResult[T], len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				results[i].err = domain.NewMalformedDocumentError(path, err)
				return nil
			}
			doc, err := decode(path, data, s.log)
			if err != nil {
				results[i].err = domain.NewMalformedDocumentError(path, err)
				return nil
			}
			results[i].doc = doc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("loading %s documents: %w", kind, err)
	}

	docs := make([]T, 0, len(paths))
	for i, res := range results {
		if res.err != nil {
			var de *domain.DiagnosticError
			reason := res.err.Error()
			if errors.As(res.err, &de) {
				reason = de.Details
			}
			report.Skipped = append(report.Skipped, SkippedDocument{Path: paths[i], Reason: reason})
			s.log.WithFields(logrus.Fields{
				"kind":   kind,
				"path":   paths[i],
				"reason": reason,
			}).Warn("Skipping malformed document")
			continue
		}
		report.Loaded = append(report.Loaded, paths[i])
		docs = append(docs, res.doc)
	}

	s.log.WithFields(logrus.Fields{
		"kind":    kind,
		"dir":     dir,
		"loaded":  len(report.Loaded),
		"skipped": len(report.Skipped),
	}).Info("Documents loaded")

	return docs, report, nil
}

// documentPaths lists *.yml and *.yaml files in dir sorted by file name. A
// missing directory yields nil.
func documentPaths(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading document directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document path %s is not a directory", dir)
	}

	var paths []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Slice(paths, func(i, j int) bool {
		return filepath.Base(paths[i]) < filepath.Base(paths[j])
	})
	if paths == nil {
		paths = []string{}
	}
	return paths, nil
}

// topLevelMapping parses data and returns its document node, which must be a mapping.
func topLevelMapping(data []byte) (*yaml.Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, errors.New("empty document")
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top level must be a mapping, got %s", kindName(doc.Kind))
	}
	return doc, nil
}

func decodeRuleDocument(path string, data []byte, log *logrus.Logger) (domain.RuleDocument, error) {
	var doc domain.RuleDocument
	node, err := topLevelMapping(data)
	if err != nil {
		return doc, err
	}
	if err := node.Decode(&doc); err != nil {
		return doc, err
	}
	if doc.Family == "" {
		return doc, errors.New("missing required key 'family'")
	}
	if doc.Rules == nil {
		doc.Rules = []domain.Rule{}
	}

	for _, rule := range doc.Rules {
		if rule.DroppedPresentations > 0 {
			log.WithFields(logrus.Fields{
				"path":    path,
				"rule_id": rule.ID,
				"dropped": rule.DroppedPresentations,
			}).Warn("Ignoring presentations that are not strings")
		}
	}
	return doc, nil
}

func decodeTreeDocument(_ string, data []byte, _ *logrus.Logger) (domain.TreeDocument, error) {
	var doc domain.TreeDocument
	node, err := topLevelMapping(data)
	if err != nil {
		return doc, err
	}
	if err := node.Decode(&doc); err != nil {
		return doc, err
	}
	if doc.ID == "" {
		return doc, errors.New("missing required key 'id'")
	}
	return doc, nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "a list"
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.AliasNode:
		return "an alias"
	}
	return "an unknown node"
}
