package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const cardiologyYAML = `
family: cardiology
version: 0.1.0
source: curated
rules:
  - id: CARD-ACS
    label: Acute coronary syndrome
    presentations:
      - Chest pain, radiating to left arm
      - {nested: mapping}
      - 42
      - diaphoresis
    icd10: [I21.9, I24.9]
    snomed: [394659003, "57054005"]
  - id: CARD-EMPTY
    label: Placeholder
`

func TestRuleDocument_Decode(t *testing.T) {
	var doc RuleDocument
	require.NoError(t, yaml.Unmarshal([]byte(cardiologyYAML), &doc))

	assert.Equal(t, "cardiology", doc.Family)
	assert.Equal(t, "0.1.0", doc.Version)
	require.Len(t, doc.Rules, 2)

	acs := doc.Rules[0]
	assert.Equal(t, []string{"Chest pain, radiating to left arm", "diaphoresis"}, acs.Presentations)
	assert.Equal(t, 2, acs.DroppedPresentations)
	assert.Equal(t, []string{"I21.9", "I24.9"}, acs.ICD10)
	require.Len(t, acs.SNOMED, 2)
	assert.True(t, acs.SNOMED[0].IsNumeric())
	assert.False(t, acs.SNOMED[1].IsNumeric())

	empty := doc.Rules[1]
	assert.Empty(t, empty.Presentations)
	assert.NotNil(t, empty.ICD10)
	assert.NotNil(t, empty.SNOMED)
}

func TestRuleDocument_NonListPresentations(t *testing.T) {
	var doc RuleDocument
	err := yaml.Unmarshal([]byte("family: x\nrules:\n  - id: A\n    presentations: fever\n"), &doc)
	assert.Error(t, err)
}

func TestSnomedCode_JSON(t *testing.T) {
	codes := []SnomedCode{NewSnomedNumber(394659003), NewSnomedText("57054005")}

	data, err := json.Marshal(codes)
	require.NoError(t, err)
	assert.JSONEq(t, `[394659003, "57054005"]`, string(data))

	var decoded []SnomedCode
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, codes, decoded)
}

const strokeTreeYAML = `
id: stroke
title: Acute stroke triage
entry: start
nodes:
  - id: start
    when:
      symptoms_contains_any: [weakness]
    tests: [CT head]
    suggest_dx: [Stroke]
    next:
      - default: routine
      - when: {onset_hours_le: 4.5}
        go: thrombolysis
      - when: ~
  - id: thrombolysis
    tests: [Coagulation panel]
  - id: routine
`

func TestTreeDocument_Decode(t *testing.T) {
	var tree TreeDocument
	require.NoError(t, yaml.Unmarshal([]byte(strokeTreeYAML), &tree))

	assert.Equal(t, "stroke", tree.ID)
	assert.Equal(t, "Acute stroke triage", tree.Title)
	assert.Equal(t, "start", tree.Entry)
	require.Len(t, tree.Nodes, 3)

	start, ok := tree.NodeByID("start")
	require.True(t, ok)
	assert.Equal(t, SymptomsAny{Tokens: []string{"weakness"}}, start.When)
	assert.Equal(t, []string{"CT head"}, start.Tests)
	assert.Equal(t, []string{"Stroke"}, start.SuggestDx)
	require.Len(t, start.Next, 3)

	assert.True(t, start.Next[0].HasDefault)
	assert.Equal(t, "routine", start.Next[0].Default)
	assert.False(t, start.Next[0].HasWhen())

	assert.True(t, start.Next[1].HasWhen())
	assert.True(t, start.Next[1].HasGo)
	assert.Equal(t, "thrombolysis", start.Next[1].Go)

	assert.True(t, start.Next[2].HasWhen(), "a null condition is still a condition")
	assert.False(t, start.Next[2].HasGo)

	routine, ok := tree.NodeByID("routine")
	require.True(t, ok)
	assert.Nil(t, routine.When)

	_, ok = tree.NodeByID("missing")
	assert.False(t, ok)
}

func TestTreeDocument_RejectsUnknownConditionKey(t *testing.T) {
	var tree TreeDocument
	err := yaml.Unmarshal([]byte("id: t\nentry: a\nnodes:\n  - id: a\n    when: {age_over: 3}\n"), &tree)
	assert.Error(t, err)
}
