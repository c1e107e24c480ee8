package domain

// PatientFacts is the caller-supplied fact set evaluated by tree conditions.
type PatientFacts struct {
	Diagnosis  string   `json:"diagnosis,omitempty"`
	Symptoms   []string `json:"symptoms,omitempty"`
	Exam       []string `json:"exam,omitempty"`
	RedFlags   []string `json:"red_flags,omitempty"`
	Age        *float64 `json:"age,omitempty"`
	OnsetHours *float64 `json:"onset_hours,omitempty"`
}

// TreeRef identifies a tree in listings and results.
type TreeRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// EvaluationResult is the outcome of walking one tree.
type EvaluationResult struct {
	Tree          TreeRef  `json:"tree"`
	Path          []string `json:"path"`
	Tests         []string `json:"tests"`
	ProvisionalDx []string `json:"provisional_dx"`
	Trace         []string `json:"trace"`
}

// FamilySummary describes a loaded family without its rules.
type FamilySummary struct {
	Family    string `json:"family"`
	Version   string `json:"version"`
	Source    string `json:"source"`
	RuleCount int    `json:"rule_count"`
}

// RuleRecord is a rule as returned by keyword search and id lookup.
type RuleRecord struct {
	Family        string   `json:"family"`
	ID            string   `json:"id"`
	Label         string   `json:"label"`
	Presentations []string `json:"presentations"`
	ICD10         []string `json:"icd10"`
}

// SymptomMatch is one ranked diagnosis from a symptom search.
type SymptomMatch struct {
	RuleID               string       `json:"rule_id"`
	Label                string       `json:"label"`
	Family               string       `json:"family"`
	MatchScore           float64      `json:"match_score"`
	MatchedPresentations []string     `json:"matched_presentations"`
	AllPresentations     []string     `json:"all_presentations"`
	ICD10                []string     `json:"icd10"`
	SNOMED               []SnomedCode `json:"snomed"`
}

// SymptomSearchRequest carries free-text symptoms. Age and Sex are accepted
// for forward compatibility and do not filter results.
type SymptomSearchRequest struct {
	Symptoms []string `json:"symptoms"`
	Age      *int     `json:"age,omitempty"`
	Sex      string   `json:"sex,omitempty"`
	Family   string   `json:"family,omitempty"`
}

// SymptomSearchResponse is the ranked result of a symptom search.
type SymptomSearchResponse struct {
	QuerySymptoms []string       `json:"query_symptoms"`
	TotalResults  int            `json:"total_results"`
	Results       []SymptomMatch `json:"results"`
}

// SuggestionList is the autocomplete vocabulary derived from presentations.
type SuggestionList struct {
	Symptoms []string `json:"symptoms"`
	Total    int      `json:"total"`
}

// ReferenceListing is the full rule list of one family.
type ReferenceListing struct {
	Family string `json:"family"`
	Count  int    `json:"count"`
	Rules  []Rule `json:"rules"`
}

// AppInfo identifies the running service.
type AppInfo struct {
	App     string `json:"app"`
	Version string `json:"version"`
}

// Default application identity, overridable through app.name and app.version.
const (
	AppName    = "RealDiag"
	AppVersion = "1.0.0"
)
