package interfaces

import "crm_automation/domain/entities"

// PatternStore is the read-only table of patterns, templates and static selectors
type PatternStore interface {
	// GetPattern returns the raw template string for a dotted path
	GetPattern(path string) (string, error)

	// GetTemplate returns the template definition for a dotted path
	GetTemplate(path string) (entities.TemplateEntry, error)

	// GetStatic returns a literal selector
	GetStatic(path string) (string, error)
}

// TestDataStore provides environment, credential and form data to workflows
type TestDataStore interface {
	Environment(name string) (entities.Environment, error)
	User(env, role string) (entities.Credentials, error)
	Address(country string) (entities.Address, error)
	Default(form, field string) (string, error)
}
