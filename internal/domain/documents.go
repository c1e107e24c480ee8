// Package domain contains the entities of the clinical knowledge base: rule
// families, decision trees, the predicate language used by tree nodes, and the
// request and result records exchanged with callers.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// RuleDocument is one clinical family (cardiology, neurology, ...) and its rules.
type RuleDocument struct {
	Family  string `json:"family" yaml:"family"`
	Version string `json:"version,omitempty" yaml:"version"`
	Source  string `json:"source,omitempty" yaml:"source"`
	Rules   []Rule `json:"rules" yaml:"rules"`
}

// Rule is one diagnosis entry inside a family.
type Rule struct {
	ID            string       `json:"id" yaml:"id"`
	Label         string       `json:"label" yaml:"label"`
	Presentations []string     `json:"presentations" yaml:"presentations"`
	ICD10         []string     `json:"icd10" yaml:"icd10"`
	SNOMED        []SnomedCode `json:"snomed" yaml:"snomed"`

	// DroppedPresentations counts presentation entries that were not plain
	// strings and were discarded while decoding.
	DroppedPresentations int `json:"-" yaml:"-"`
}

// UnmarshalYAML decodes a rule, discarding presentation entries that are not
// plain strings.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		ID            string       `yaml:"id"`
		Label         string       `yaml:"label"`
		Presentations []yaml.Node  `yaml:"presentations"`
		ICD10         []string     `yaml:"icd10"`
		SNOMED        []SnomedCode `yaml:"snomed"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	*r = Rule{
		ID:            raw.ID,
		Label:         raw.Label,
		Presentations: make([]string, 0, len(raw.Presentations)),
		ICD10:         raw.ICD10,
		SNOMED:        raw.SNOMED,
	}
	for _, p := range raw.Presentations {
		if p.Kind == yaml.ScalarNode && p.Tag == "!!str" {
			r.Presentations = append(r.Presentations, p.Value)
			continue
		}
		r.DroppedPresentations++
	}
	if r.ICD10 == nil {
		r.ICD10 = []string{}
	}
	if r.SNOMED == nil {
		r.SNOMED = []SnomedCode{}
	}
	return nil
}

// SnomedCode is a SNOMED CT concept id. Documents carry them either as
// integers or as strings; the original form is kept on output.
type SnomedCode struct {
	value   string
	numeric bool
}

// NewSnomedText returns a code written as a string.
func NewSnomedText(s string) SnomedCode {
	return SnomedCode{value: s}
}

// NewSnomedNumber returns a code written as an integer.
func NewSnomedNumber(n int64) SnomedCode {
	return SnomedCode{value: strconv.FormatInt(n, 10), numeric: true}
}

func (c SnomedCode) String() string { return c.value }

// IsNumeric reports whether the code was written as an integer.
func (c SnomedCode) IsNumeric() bool { return c.numeric }

// MarshalJSON writes numeric codes as JSON numbers.
func (c SnomedCode) MarshalJSON() ([]byte, error) {
	if c.IsNumeric() {
		return []byte(c.value), nil
	}
	return json.Marshal(c.value)
}

// UnmarshalJSON accepts a JSON string or number.
func (c *SnomedCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = NewSnomedText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("snomed code must be a string or a number: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*c = NewSnomedNumber(i)
		return nil
	}
	*c = SnomedCode{value: n.String(), numeric: true}
	return nil
}

// UnmarshalYAML accepts any scalar.
func (c *SnomedCode) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("snomed code at line %d must be a scalar", node.Line)
	}
	*c = SnomedCode{value: node.Value, numeric: node.Tag == "!!int"}
	return nil
}

// TreeDocument is a decision tree: an entry node and the graph reachable from it.
type TreeDocument struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	Entry string `yaml:"entry"`
	Nodes []Node `yaml:"nodes"`
}

// Node is one step of a decision tree.
type Node struct {
	ID        string
	When      Predicate
	Tests     []string
	SuggestDx []string
	Next      []Transition
}

// UnmarshalYAML decodes a node and its condition.
func (n *Node) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		ID        string       `yaml:"id"`
		When      yaml.Node    `yaml:"when"`
		Tests     []string     `yaml:"tests"`
		SuggestDx []string     `yaml:"suggest_dx"`
		Next      []Transition `yaml:"next"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	*n = Node{ID: raw.ID, Tests: raw.Tests, SuggestDx: raw.SuggestDx, Next: raw.Next}
	if raw.When.Kind != 0 {
		when, err := ParsePredicate(&raw.When)
		if err != nil {
			return fmt.Errorf("node %q: %w", raw.ID, err)
		}
		n.When = when
	}
	return nil
}

// Transition leads from a node to the next one, either unconditionally
// (Default) or when its condition holds (When/Go). One mapping may carry both.
type Transition struct {
	HasDefault bool
	Default    string
	When       Predicate
	HasGo      bool
	Go         string
}

// HasWhen reports whether the transition carries a condition.
func (t Transition) HasWhen() bool { return t.When != nil }

// UnmarshalYAML decodes a transition mapping. Keys other than default, when
// and go are ignored.
func (t *Transition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("transition at line %d must be a mapping", node.Line)
	}
	*t = Transition{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]
		switch key {
		case "default":
			t.HasDefault = true
			t.Default = nodeRef(value)
		case "go":
			t.HasGo = true
			t.Go = nodeRef(value)
		case "when":
			when, err := ParsePredicate(value)
			if err != nil {
				return err
			}
			t.When = when
		}
	}
	return nil
}

// nodeRef returns the node id a transition points at; null means no target.
func nodeRef(node *yaml.Node) string {
	if node.Kind != yaml.ScalarNode || isNull(node) {
		return ""
	}
	return node.Value
}

// NodeByID returns the first node carrying id.
func (t *TreeDocument) NodeByID(id string) (*Node, bool) {
	for i := range t.Nodes {
		if t.Nodes[i].ID == id {
			return &t.Nodes[i], true
		}
	}
	return nil, false
}
