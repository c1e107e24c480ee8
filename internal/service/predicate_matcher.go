package service

import (
	"fmt"
	"strings"

	"github.com/realdiag-server/internal/domain"
)

// loweredFacts is PatientFacts prepared for case-insensitive comparison.
type loweredFacts struct {
	diagnosis  string
	symptoms   []string
	exam       []string
	redFlags   []string
	age        *float64
	onsetHours *float64
}

func lowerFacts(f domain.PatientFacts) loweredFacts {
	return loweredFacts{
		diagnosis:  strings.ToLower(f.Diagnosis),
		symptoms:   lowerAll(f.Symptoms),
		exam:       lowerAll(f.Exam),
		redFlags:   lowerAll(f.RedFlags),
		age:        f.Age,
		onsetHours: f.OnsetHours,
	}
}

func lowerAll(xs []string) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = strings.ToLower(x)
	}
	return out
}

// Match evaluates p against facts and returns whether it holds together with
// the explanation lines of the conditions that passed. A nil predicate holds
// with an empty trace. On failure the trace holds whatever passed before the
// failing condition.
func Match(p domain.Predicate, facts domain.PatientFacts) (bool, []string) {
	trace := []string{}
	ok := match(p, lowerFacts(facts), &trace)
	return ok, trace
}

func match(p domain.Predicate, f loweredFacts, trace *[]string) bool {
	switch p := p.(type) {
	case nil:
		return true

	case domain.DiagnosisContains:
		if !strings.Contains(f.diagnosis, strings.ToLower(p.Text)) {
			return false
		}
		*trace = append(*trace, fmt.Sprintf("diagnosis contains '%s'", p.Text))

	case domain.SymptomsAny:
		return anyToken(p.Tokens, f.symptoms, "symptoms any of ", trace)

	case domain.ExamFlagsAny:
		return anyToken(p.Tokens, f.exam, "exam any of ", trace)

	case domain.RedFlagsAny:
		return anyToken(p.Tokens, f.redFlags, "red flags any of ", trace)

	case domain.MinAge:
		if f.age == nil || *f.age < float64(p.Years) {
			return false
		}
		*trace = append(*trace, "age >= "+p.Display)

	case domain.OnsetHoursLe:
		if f.onsetHours == nil || *f.onsetHours > p.Hours {
			return false
		}
		*trace = append(*trace, "onset_hours <= "+p.Display)

	case domain.AnyOf:
		for _, term := range p.Terms {
			sub := []string{}
			if match(term, f, &sub) {
				*trace = append(*trace, sub...)
				*trace = append(*trace, "any_of satisfied")
				return true
			}
		}
		return false

	case domain.AllOf:
		for _, term := range p.Terms {
			sub := []string{}
			if !match(term, f, &sub) {
				return false
			}
			*trace = append(*trace, sub...)
		}
		*trace = append(*trace, "all_of satisfied")

	case domain.Conjunction:
		for _, term := range p.Terms {
			if !match(term, f, trace) {
				return false
			}
		}

	default:
		panic(fmt.Sprintf("service: unhandled predicate %T", p))
	}
	return true
}

// anyToken holds when any lowered token occurs inside any fact entry.
func anyToken(tokens, facts []string, label string, trace *[]string) bool {
	lowered := lowerAll(tokens)
	for _, tok := range lowered {
		for _, fact := range facts {
			if strings.Contains(fact, tok) {
				*trace = append(*trace, label+pyList(lowered))
				return true
			}
		}
	}
	return false
}

// pyList renders strings as a bracketed, quoted list: ['a', 'b'].
func pyList(xs []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range xs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quote(x))
	}
	b.WriteByte(']')
	return b.String()
}

func quote(s string) string {
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		return `"` + strings.ReplaceAll(s, `\`, `\\`) + `"`
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}
