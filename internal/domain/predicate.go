package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Predicate is a boolean condition over PatientFacts. The set of variants is
// closed; every implementation lives in this file.
type Predicate interface {
	predicate()
}

// PredicateKey names a recognised condition key in a rule or tree document.
type PredicateKey string

const (
	KeyDiagnosisContains PredicateKey = "diagnosis_contains"
	KeySymptomsAny       PredicateKey = "symptoms_contains_any"
	KeyExamFlagsAny      PredicateKey = "exam_flags_any"
	KeyRedFlagsAny       PredicateKey = "red_flags_any"
	KeyMinAge            PredicateKey = "min_age"
	KeyOnsetHoursLe      PredicateKey = "onset_hours_le"
	KeyAnyOf             PredicateKey = "any_of"
	KeyAllOf             PredicateKey = "all_of"
)

// predicateKeyOrder is the order in which the keys of one condition mapping are checked.
var predicateKeyOrder = []PredicateKey{
	KeyDiagnosisContains,
	KeySymptomsAny,
	KeyExamFlagsAny,
	KeyRedFlagsAny,
	KeyMinAge,
	KeyOnsetHoursLe,
	KeyAnyOf,
	KeyAllOf,
}

// DiagnosisContains holds when Text is a case-insensitive substring of the working diagnosis.
type DiagnosisContains struct {
	Text string
}

// SymptomsAny holds when any token occurs inside any reported symptom.
type SymptomsAny struct {
	Tokens []string
}

// ExamFlagsAny holds when any token occurs inside any examination finding.
type ExamFlagsAny struct {
	Tokens []string
}

// RedFlagsAny holds when any token occurs inside any reported red flag.
type RedFlagsAny struct {
	Tokens []string
}

// MinAge holds when the patient age is known and at least Years.
type MinAge struct {
	Years   int
	Display string
}

// OnsetHoursLe holds when the onset is known and no later than Hours.
type OnsetHoursLe struct {
	Hours   float64
	Display string
}

// AnyOf is a disjunction evaluated in order.
type AnyOf struct {
	Terms []Predicate
}

// AllOf is a conjunction evaluated in order.
type AllOf struct {
	Terms []Predicate
}

// Conjunction is a condition mapping with several keys. Its terms are already
// in check order and, unlike AllOf, it adds no marker to the trace. An empty
// Conjunction matches vacuously.
type Conjunction struct {
	Terms []Predicate
}

func (DiagnosisContains) predicate() {}
func (SymptomsAny) predicate()       {}
func (ExamFlagsAny) predicate()      {}
func (RedFlagsAny) predicate()       {}
func (MinAge) predicate()            {}
func (OnsetHoursLe) predicate()      {}
func (AnyOf) predicate()             {}
func (AllOf) predicate()             {}
func (Conjunction) predicate()       {}

// ParsePredicate decodes a condition mapping. A null node yields an empty
// Conjunction. Empty strings and empty lists count as absent keys; unknown
// keys are rejected.
func ParsePredicate(node *yaml.Node) (Predicate, error) {
	if node == nil || node.Kind == 0 || isNull(node) {
		return Conjunction{}, nil
	}
	if node.Kind == yaml.AliasNode {
		return ParsePredicate(node.Alias)
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("condition at line %d must be a mapping", node.Line)
	}

	values := make(map[PredicateKey]*yaml.Node, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := PredicateKey(node.Content[i].Value)
		if !key.known() {
			return nil, fmt.Errorf("unknown condition key %q at line %d", key, node.Content[i].Line)
		}
		values[key] = node.Content[i+1]
	}

	terms := make([]Predicate, 0, len(values))
	for _, key := range predicateKeyOrder {
		value, ok := values[key]
		if !ok || isNull(value) {
			continue
		}
		term, err := parseTerm(key, value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if term != nil {
			terms = append(terms, term)
		}
	}

	if len(terms) == 1 {
		return terms[0], nil
	}
	return Conjunction{Terms: terms}, nil
}

func parseTerm(key PredicateKey, value *yaml.Node) (Predicate, error) {
	switch key {
	case KeyDiagnosisContains:
		if value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("expected a string at line %d", value.Line)
		}
		if value.Value == "" {
			return nil, nil
		}
		return DiagnosisContains{Text: value.Value}, nil

	case KeySymptomsAny, KeyExamFlagsAny, KeyRedFlagsAny:
		tokens, err := scalarList(value)
		if err != nil || len(tokens) == 0 {
			return nil, err
		}
		switch key {
		case KeySymptomsAny:
			return SymptomsAny{Tokens: tokens}, nil
		case KeyExamFlagsAny:
			return ExamFlagsAny{Tokens: tokens}, nil
		default:
			return RedFlagsAny{Tokens: tokens}, nil
		}

	case KeyMinAge:
		n, display, err := number(value)
		if err != nil {
			return nil, err
		}
		return MinAge{Years: int(math.Trunc(n)), Display: display}, nil

	case KeyOnsetHoursLe:
		n, display, err := number(value)
		if err != nil {
			return nil, err
		}
		return OnsetHoursLe{Hours: n, Display: display}, nil

	case KeyAnyOf, KeyAllOf:
		if value.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("expected a list at line %d", value.Line)
		}
		if len(value.Content) == 0 {
			return nil, nil
		}
		subs := make([]Predicate, 0, len(value.Content))
		for _, item := range value.Content {
			sub, err := ParsePredicate(item)
			if err != nil {
				return nil, err
			}
			subs = append(subs, sub)
		}
		if key == KeyAnyOf {
			return AnyOf{Terms: subs}, nil
		}
		return AllOf{Terms: subs}, nil
	}
	return nil, fmt.Errorf("unsupported condition key %q", key)
}

func (k PredicateKey) known() bool {
	for _, known := range predicateKeyOrder {
		if k == known {
			return true
		}
	}
	return false
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

func scalarList(node *yaml.Node) ([]string, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("expected a list at line %d", node.Line)
	}
	out := make([]string, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("expected a string entry at line %d", item.Line)
		}
		out = append(out, item.Value)
	}
	return out, nil
}

// number parses a numeric threshold and keeps the rendering used in traces.
func number(node *yaml.Node) (float64, string, error) {
	if node.Kind != yaml.ScalarNode {
		return 0, "", fmt.Errorf("expected a number at line %d", node.Line)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(node.Value), 64)
	if err != nil {
		return 0, "", fmt.Errorf("expected a number at line %d: %q", node.Line, node.Value)
	}
	if node.Tag == "!!float" {
		return n, FormatNumber(n, true), nil
	}
	return n, strings.TrimSpace(node.Value), nil
}

// FormatNumber renders n the way thresholds are written in traces: integers
// without a fractional part unless forceFraction is set.
func FormatNumber(n float64, forceFraction bool) string {
	s := strconv.FormatFloat(n, 'f', -1, 64)
	if forceFraction && !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
