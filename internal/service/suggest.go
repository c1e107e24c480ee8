package service

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

const (
	maxDidYouMean     = 3
	minSimilarityNear = 0.6
)

// DidYouMean returns up to three candidates that look like a misspelling of
// query, closest first. Substring hits count as closest.
func DidYouMean(query string, candidates []string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []string{}
	}

	type scored struct {
		value string
		score float64
	}
	var near []scored
	for _, c := range candidates {
		lc := strings.ToLower(c)
		if lc == q {
			continue
		}
		score := similarity(q, lc)
		if strings.Contains(lc, q) || strings.Contains(q, lc) {
			score = 0.95
		}
		if score >= minSimilarityNear {
			near = append(near, scored{value: c, score: score})
		}
	}

	sort.SliceStable(near, func(i, j int) bool { return near[i].score > near[j].score })

	out := make([]string, 0, maxDidYouMean)
	for _, s := range near {
		if len(out) == maxDidYouMean {
			break
		}
		out = append(out, s.value)
	}
	return out
}

// similarity is 1 minus the edit distance normalised by the longer string.
func similarity(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	score := 1.0 - float64(levenshtein.Distance(a, b, nil))/float64(maxLen)
	if score < 0 {
		return 0
	}
	return score
}
