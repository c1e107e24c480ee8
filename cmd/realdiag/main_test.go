package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realdiag-server/internal/domain"
	"github.com/realdiag-server/internal/feedback"
	"github.com/realdiag-server/internal/setup"
)

const knowledgeDir = "../../knowledge"

type cliRun struct {
	rulesDir string
	treesDir string
	dataDir  string
	stdin    string
}

func newCLIRun(t *testing.T) *cliRun {
	return &cliRun{
		rulesDir: filepath.Join(knowledgeDir, "rules"),
		treesDir: filepath.Join(knowledgeDir, "trees"),
		dataDir:  t.TempDir(),
	}
}

func (r *cliRun) execute(args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(r.stdin))
	root.SetArgs(append([]string{
		"--rules-dir", r.rulesDir,
		"--trees-dir", r.treesDir,
		"--data-dir", r.dataDir,
		"--log-level", "error",
	}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestTreesCmd(t *testing.T) {
	out, err := newCLIRun(t).execute("trees")
	require.NoError(t, err)

	var resp struct {
		Trees []domain.TreeRef `json:"trees"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Trees, 3)
	assert.Equal(t, "chest-pain", resp.Trees[0].ID)
}

func TestEvaluateCmd_Stdin(t *testing.T) {
	run := newCLIRun(t)
	run.stdin = `{"symptoms":["crushing chest pain radiating to the left arm"],"age":58,"onset_hours":3}`

	out, err := run.execute("evaluate", "chest-pain", "--facts", "-")
	require.NoError(t, err)

	var resp struct {
		TreeResult domain.EvaluationResult `json:"tree_result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"start", "ischemic", "reperfusion"}, resp.TreeResult.Path)
	assert.Contains(t, resp.TreeResult.ProvisionalDx, "Acute coronary syndrome")
	assert.Contains(t, resp.TreeResult.ProvisionalDx, "STEMI candidate for reperfusion")
}

func TestEvaluateCmd_FactsFile(t *testing.T) {
	run := newCLIRun(t)
	factsPath := filepath.Join(t.TempDir(), "facts.json")
	require.NoError(t, os.WriteFile(factsPath, []byte(`{"red_flags":["syncope"]}`), 0644))

	out, err := run.execute("evaluate", "chest-pain", "--facts", factsPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"unstable"`)
}

func TestEvaluateCmd_Errors(t *testing.T) {
	run := newCLIRun(t)

	_, err := run.execute("evaluate", "chest")
	require.Error(t, err)
	assert.Equal(t, "tree 'chest' not found (did you mean: chest-pain?)", err.Error())

	run.stdin = "{not json"
	_, err = run.execute("evaluate", "chest-pain", "--facts", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid patient facts")

	_, err = run.execute("evaluate")
	assert.Error(t, err)
}

func TestRuleCmds(t *testing.T) {
	run := newCLIRun(t)

	out, err := run.execute("family", "respiratory")
	require.NoError(t, err)
	var doc domain.RuleDocument
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Len(t, doc.Rules, 4)

	out, err = run.execute("rule", "NEURO-SAH")
	require.NoError(t, err)
	var rec domain.RuleRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "neurology", rec.Family)

	out, err = run.execute("search", "J45", "--family", "respiratory")
	require.NoError(t, err)
	var search struct {
		Results []domain.RuleRecord `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &search))
	require.Len(t, search.Results, 1)
	assert.Equal(t, "RESP-ASTHMA", search.Results[0].ID)

	_, err = run.execute("family", "neurolgy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean: neurology?")
}

func TestSymptomsCmd(t *testing.T) {
	out, err := newCLIRun(t).execute("symptoms", "weakness", "speech", "--age", "70")
	require.NoError(t, err)

	var resp domain.SymptomSearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "NEURO-TIA", resp.Results[0].RuleID)
	assert.Equal(t, []string{"weakness", "speech"}, resp.QuerySymptoms)
}

func TestStatsCmd(t *testing.T) {
	out, err := newCLIRun(t).execute("stats")
	require.NoError(t, err)

	var stats knowledgeStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 14, stats.RuleCount)
	assert.Equal(t, 3, stats.TreeCount)
	assert.Len(t, stats.Families, 3)
}

func TestValidateCmd(t *testing.T) {
	run := newCLIRun(t)

	out, err := run.execute("validate")
	require.NoError(t, err)
	var report validationReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Len(t, report.Rules.Loaded, 3)
	assert.Empty(t, report.Rules.Skipped)

	broken := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(broken, "bad.yml"), []byte("- just\n- a list\n"), 0644))
	run.rulesDir = broken

	out, err = run.execute("validate")
	require.Error(t, err)
	assert.Equal(t, "1 document(s) skipped", err.Error())
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Rules.Skipped, 1)
	assert.Equal(t, "bad.yml", filepath.Base(report.Rules.Skipped[0].Path))
}

func TestFeedbackImportExport(t *testing.T) {
	run := newCLIRun(t)

	importPath := filepath.Join(t.TempDir(), "import.json")
	doc := `{
  "version": "1.0",
  "count": 2,
  "feedback": [
    {"rule_id": "CARD-ACS", "family": "cardiology", "context": "chest pain", "source": "symptom_search", "verdict": "agree"},
    {"rule_id": "RESP-PE", "family": "respiratory", "context": "chest-pain", "source": "decision_tree", "verdict": "unsure"}
  ]
}`
	require.NoError(t, os.WriteFile(importPath, []byte(doc), 0644))

	out, err := run.execute("feedback", "import", importPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"imported": 2, "skipped": 0}`, out)

	out, err = run.execute("feedback", "import", importPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"imported": 0, "skipped": 2}`, out)

	exportPath := filepath.Join(t.TempDir(), "export.json")
	_, err = run.execute("feedback", "export", "--out", exportPath)
	require.NoError(t, err)

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	var export feedback.FeedbackExport
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, feedback.ExportVersion, export.Version)
	assert.Equal(t, 2, export.Count)

	_, err = run.execute("feedback", "import", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSetupCmd(t *testing.T) {
	run := newCLIRun(t)
	configPath := filepath.Join(t.TempDir(), "client.json")
	binary := filepath.Join(t.TempDir(), "mcp-server")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0755))

	out, err := run.execute("setup", "--config", configPath, "--binary", binary)
	require.NoError(t, err)
	var entry setup.MCPServerConfig
	require.NoError(t, json.Unmarshal([]byte(out), &entry))
	assert.Equal(t, binary, entry.Command)
	assert.Equal(t, run.dataDir, entry.Env["REALDIAG_DATA_DIR"])

	out, err = run.execute("setup", "status", "--config", configPath)
	require.NoError(t, err)
	var status setup.Status
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Registered)
	assert.Empty(t, status.Issues)
}
