package domain

import (
	"context"
)

// DocumentSource supplies the rule and tree documents the registries are built from
type DocumentSource interface {
	LoadRuleDocuments(ctx context.Context) ([]RuleDocument, error)
	LoadTreeDocuments(ctx context.Context) ([]TreeDocument, error)
}

// DiagnosticEngine is the operation set exposed to the HTTP, MCP and CLI layers
type DiagnosticEngine interface {
	ListTrees() []TreeRef
	EvaluateTree(ctx context.Context, treeID string, facts PatientFacts) (*EvaluationResult, error)
	ListFamilies() []FamilySummary
	GetFamily(name string) (*RuleDocument, error)
	GetReference(name string) (*ReferenceListing, error)
	SearchRules(query, family string) []RuleRecord
	GetRule(id string) (*RuleRecord, error)
	SearchBySymptoms(ctx context.Context, req SymptomSearchRequest) (*SymptomSearchResponse, error)
	GetSearchSuggestions() SuggestionList

	// DidYouMean proposes known ids of kind that resemble an unknown one.
	DidYouMean(kind, id string) []string
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	Validate() error
	IsProduction() bool
	IsDevelopment() bool
}
