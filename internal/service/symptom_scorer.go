package service

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/realdiag-server/internal/domain"
)

const (
	// PhraseMatchPoints is awarded when a whole symptom occurs inside a presentation.
	PhraseMatchPoints = 5.0
	// WordOverlapPoints is awarded per shared word otherwise.
	WordOverlapPoints = 1.0
	// MaxSymptomResults caps a symptom search.
	MaxSymptomResults = 20
)

var (
	punctuation = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s\p{Z}]`)
	whitespace  = regexp.MustCompile(`[\s\p{Z}]+`)
)

// NormalizeText lowercases s, turns punctuation into spaces and collapses
// whitespace.
func NormalizeText(s string) string {
	s = strings.ToLower(s)
	s = punctuation.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ScoreSymptoms rates how well symptoms describe a rule's presentations.
// The score is the accumulated points divided by the number of
// presentations; matched holds the presentations that earned any points, in
// their original spelling.
func ScoreSymptoms(symptoms, presentations []string) (score float64, matched []string) {
	matched = []string{}
	if len(presentations) == 0 {
		return 0, matched
	}

	normSymptoms := make([]string, len(symptoms))
	symptomWords := make([]map[string]struct{}, len(symptoms))
	for i, s := range symptoms {
		normSymptoms[i] = NormalizeText(s)
		symptomWords[i] = wordSet(normSymptoms[i])
	}

	var total float64
	for _, presentation := range presentations {
		norm := NormalizeText(presentation)
		var words map[string]struct{}
		hit := false

		for i, symptom := range normSymptoms {
			if strings.Contains(norm, symptom) {
				total += PhraseMatchPoints
				hit = true
				continue
			}
			if words == nil {
				words = wordSet(norm)
			}
			if n := overlap(symptomWords[i], words); n > 0 {
				total += WordOverlapPoints * float64(n)
				hit = true
			}
		}

		if hit {
			matched = append(matched, presentation)
		}
	}

	return total / float64(len(presentations)), matched
}

// RankSymptomMatches scores every rule of the given families, keeps those
// with a positive score and returns the best MaxSymptomResults, highest
// first. Ties keep family then rule order.
func RankSymptomMatches(symptoms []string, families []*domain.RuleDocument) []domain.SymptomMatch {
	results := []domain.SymptomMatch{}
	for _, doc := range families {
		for _, rule := range doc.Rules {
			if len(rule.Presentations) == 0 {
				continue
			}
			score, matched := ScoreSymptoms(symptoms, rule.Presentations)
			if score <= 0 {
				continue
			}
			results = append(results, domain.SymptomMatch{
				RuleID:               rule.ID,
				Label:                rule.Label,
				Family:               doc.Family,
				MatchScore:           round2(score),
				MatchedPresentations: matched,
				AllPresentations:     rule.Presentations,
				ICD10:                rule.ICD10,
				SNOMED:               rule.SNOMED,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MatchScore > results[j].MatchScore
	})
	if len(results) > MaxSymptomResults {
		results = results[:MaxSymptomResults]
	}
	return results
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

func overlap(a, b map[string]struct{}) int {
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}

// round2 rounds to two decimals, halves to even.
func round2(x float64) float64 {
	return math.RoundToEven(x*100) / 100
}
