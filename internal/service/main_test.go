package service

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"

	"github.com/realdiag-server/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const neurologyYAML = `
family: neurology
version: "2024.1"
source: stroke unit handbook
rules:
  - id: NEURO-STROKE
    label: Acute ischemic stroke
    presentations:
      - sudden weakness on one side
      - slurred speech
    icd10: [I63.9]
    snomed: [422504002]
  - id: NEURO-MIGRAINE
    label: Migraine
    presentations: ["throbbing headache, photophobia", nausea]
    icd10: [G43.909]
    snomed: ["37796009"]
`

const cardiologyYAML = `
family: cardiology
rules:
  - id: CARD-ACS
    label: Acute coronary syndrome
    presentations:
      - chest pain radiating to left arm
      - diaphoresis
      - shortness of breath
    icd10: [I21.9, I24.9]
  - id: CARD-HF
    label: Heart failure
    presentations: [shortness of breath on exertion, ankle swelling]
    icd10: [I50.9]
  - id: CARD-EMPTY
    label: Unspecified cardiac finding
    presentations: []
    icd10: [I51.9]
`

const chestPainTreeYAML = `
id: chest-pain
title: Chest pain triage
entry: start
nodes:
  - id: start
    tests: [ECG, Troponin]
    next:
      - when: {red_flags_any: [hypotension]}
        go: shock
      - when:
          all_of:
            - symptoms_contains_any: [chest pain]
            - min_age: 40
        go: acs
      - default: low_risk
  - id: acs
    when: {symptoms_contains_any: [Chest Pain]}
    tests: [Troponin, Chest X-ray]
    suggest_dx: [Acute coronary syndrome]
  - id: shock
    suggest_dx: [Cardiogenic shock]
  - id: low_risk
    suggest_dx: [Musculoskeletal pain]
`

func nopLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func decodeRules(t *testing.T, sources ...string) []domain.RuleDocument {
	t.Helper()
	docs := make([]domain.RuleDocument, 0, len(sources))
	for _, src := range sources {
		var doc domain.RuleDocument
		require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
		docs = append(docs, doc)
	}
	return docs
}

func decodeTree(t *testing.T, src string) domain.TreeDocument {
	t.Helper()
	var doc domain.TreeDocument
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	return doc
}

func decodePredicate(t *testing.T, src string) domain.Predicate {
	t.Helper()
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &node))
	p, err := domain.ParsePredicate(node.Content[0])
	require.NoError(t, err)
	return p
}

func fixtureRules(t *testing.T) *RuleRegistry {
	t.Helper()
	return NewRuleRegistry(decodeRules(t, neurologyYAML, cardiologyYAML), nopLogger())
}

func fixtureTrees(t *testing.T) *TreeRegistry {
	t.Helper()
	return NewTreeRegistry([]domain.TreeDocument{decodeTree(t, chestPainTreeYAML)}, nopLogger())
}

func age(years float64) *float64 { return &years }
