package service

import (
	"sort"

	"github.com/realdiag-server/internal/domain"
)

// MaxWalkSteps bounds a single tree evaluation.
const MaxWalkSteps = 64

// Walk drives facts through tree starting at its entry node. The walk stops
// when no transition applies, when the next node is unknown or already
// visited, or after MaxWalkSteps nodes. Every visited node contributes its
// tests and suggested diagnoses; its own condition only feeds the trace.
func Walk(tree *domain.TreeDocument, facts domain.PatientFacts) *domain.EvaluationResult {
	result := &domain.EvaluationResult{
		Tree:  domain.TreeRef{ID: tree.ID, Title: tree.Title},
		Path:  []string{},
		Trace: []string{},
	}
	tests := make(map[string]struct{})
	dx := make(map[string]struct{})
	seen := make(map[string]struct{})

	cur := tree.Entry
	for step := 0; step < MaxWalkSteps; step++ {
		if cur == "" {
			break
		}
		if _, visited := seen[cur]; visited {
			break
		}
		seen[cur] = struct{}{}

		node, ok := tree.NodeByID(cur)
		if !ok {
			break
		}

		_, lines := Match(node.When, facts)
		for _, line := range lines {
			result.Trace = append(result.Trace, "["+cur+"] "+line)
		}

		result.Path = append(result.Path, cur)
		for _, t := range node.Tests {
			tests[t] = struct{}{}
		}
		for _, d := range node.SuggestDx {
			dx[d] = struct{}{}
		}

		cur = nextNode(node, facts)
	}

	result.Tests = sortedKeys(tests)
	result.ProvisionalDx = sortedKeys(dx)
	return result
}

// nextNode scans transitions in order. A default is remembered as the
// fallback; the first transition whose condition holds decides and ends the
// scan, keeping the fallback when it names no target.
func nextNode(node *domain.Node, facts domain.PatientFacts) string {
	next := ""
	for _, tr := range node.Next {
		if tr.HasDefault {
			next = tr.Default
		}
		if !tr.HasWhen() {
			continue
		}
		if ok, _ := Match(tr.When, facts); ok {
			if tr.HasGo {
				next = tr.Go
			}
			break
		}
	}
	return next
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
