package patterns

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"crm_automation/domain/entities"
	"crm_automation/domain/interfaces"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Store holds the pattern, template and static tables loaded from declarative sources
type Store struct {
	mu        sync.RWMutex
	logger    *logrus.Logger
	patterns  map[string]string
	templates map[string]entities.TemplateEntry
	statics   map[string]string
	loaded    map[string]bool
}

// NewStore - creates an empty store
func NewStore(logger *logrus.Logger) *Store {
	return &Store{
		logger:    logger,
		patterns:  make(map[string]string),
		templates: make(map[string]entities.TemplateEntry),
		statics:   make(map[string]string),
		loaded:    make(map[string]bool),
	}
}

// Load - loads a YAML or JSON pattern document from disk. Loading the same file again is a no-op.
func (s *Store) Load(source string) error {
	abs, err := filepath.Abs(source)
	if err != nil {
		abs = source
	}

	if s.isLoaded(abs) {
		s.logger.WithField("source", abs).Debug("Pattern source already loaded")
		return nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return &entities.LoadError{Source: source, Err: err}
	}

	return s.LoadBytes(abs, data)
}

// LoadBytes - loads a pattern document held in memory, identified by name
func (s *Store) LoadBytes(name string, data []byte) error {
	if s.isLoaded(name) {
		return nil
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return &entities.LoadError{Source: name, Err: err}
	}

	if err := validateSchema(doc); err != nil {
		return &entities.LoadError{Source: name, Err: err}
	}

	tables := newTables()
	if p, ok := doc["patterns"].(map[string]interface{}); ok {
		flattenStrings("", p, tables.patterns)
	}
	if st, ok := doc["statics"].(map[string]interface{}); ok {
		flattenStrings("", st, tables.statics)
	}
	for _, key := range []string{"templates", "pageElements"} {
		if t, ok := doc[key].(map[string]interface{}); ok {
			if err := collectTemplates("", t, tables.templates); err != nil {
				return &entities.LoadError{Source: name, Err: err}
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded[name] {
		return nil
	}
	for k, v := range tables.patterns {
		s.patterns[k] = v
	}
	for k, v := range tables.statics {
		s.statics[k] = v
	}
	for k, v := range tables.templates {
		s.templates[k] = v
	}
	s.loaded[name] = true

	s.logger.WithFields(logrus.Fields{
		"source":    name,
		"patterns":  len(tables.patterns),
		"templates": len(tables.templates),
		"statics":   len(tables.statics),
	}).Info("Loaded pattern source")

	return nil
}

// GetPattern - returns the raw pattern string for a dotted path
func (s *Store) GetPattern(path string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.patterns[path]; ok {
		return p, nil
	}
	return "", notFound("pattern", path, s.patterns)
}

// GetTemplate - returns the template definition for a dotted path
func (s *Store) GetTemplate(path string) (entities.TemplateEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.templates[path]; ok {
		t.Params = t.Params.Clone()
		if t.Fallback != nil {
			fb := *t.Fallback
			fb.Params = fb.Params.Clone()
			t.Fallback = &fb
		}
		return t, nil
	}
	return entities.TemplateEntry{}, notFound("template", path, s.templates)
}

// GetStatic - returns a literal selector
func (s *Store) GetStatic(path string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.statics[path]; ok {
		return v, nil
	}
	return "", notFound("static", path, s.statics)
}

// Remove - deletes a pattern; used to simulate drift in the page structure
func (s *Store) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.patterns, path)
}

// TemplatePaths - returns every template path in sorted order
func (s *Store) TemplatePaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.templates)
}

// Stats - returns table sizes
func (s *Store) Stats() (patterns, templates, statics int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patterns), len(s.templates), len(s.statics)
}

func (s *Store) isLoaded(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded[name]
}

type tables struct {
	patterns  map[string]string
	statics   map[string]string
	templates map[string]entities.TemplateEntry
}

func newTables() tables {
	return tables{
		patterns:  make(map[string]string),
		statics:   make(map[string]string),
		templates: make(map[string]entities.TemplateEntry),
	}
}

// decodeDocument - parses YAML (a superset of JSON) into a generic tree
func decodeDocument(data []byte) (map[string]interface{}, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("empty document")
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed document: %w", err)
	}
	if doc == nil {
		return nil, errors.New("document has no top-level mapping")
	}
	return doc, nil
}

func flattenStrings(prefix string, node map[string]interface{}, dst map[string]string) {
	for k, v := range node {
		path := join(prefix, k)
		switch val := v.(type) {
		case string:
			dst[path] = val
		case map[string]interface{}:
			flattenStrings(path, val, dst)
		}
	}
}

func collectTemplates(prefix string, node map[string]interface{}, dst map[string]entities.TemplateEntry) error {
	for k, v := range node {
		path := join(prefix, k)
		child, ok := v.(map[string]interface{})
		if !ok {
			return fmt.Errorf("template %q: expected a mapping", path)
		}

		primary, isTemplate := child["primary"].(string)
		if !isTemplate {
			if err := collectTemplates(path, child, dst); err != nil {
				return err
			}
			continue
		}

		entry := entities.TemplateEntry{
			Path:    path,
			Primary: primary,
			Params:  toParams(child["params"]),
		}
		if fb, ok := child["fallback"].(map[string]interface{}); ok {
			fbPrimary, _ := fb["primary"].(string)
			entry.Fallback = &entities.PatternRef{
				Primary: fbPrimary,
				Params:  toParams(fb["params"]),
			}
		}
		dst[path] = entry
	}
	return nil
}

func toParams(v interface{}) entities.Params {
	params := entities.Params{}
	m, ok := v.(map[string]interface{})
	if !ok {
		return params
	}
	for k, val := range m {
		params[k] = fmt.Sprint(val)
	}
	return params
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// notFound - builds a NotFoundError listing the keys that exist at the deepest matching level
func notFound[V any](kind, path string, table map[string]V) error {
	parent, available := siblings(path, table)
	return &entities.NotFoundError{
		Kind:      kind,
		Path:      path,
		Parent:    parent,
		Available: available,
	}
}

func siblings[V any](path string, table map[string]V) (string, []string) {
	parts := strings.Split(path, ".")
	for depth := len(parts) - 1; depth >= 0; depth-- {
		parent := strings.Join(parts[:depth], ".")
		prefix := parent
		if prefix != "" {
			prefix += "."
		}

		seen := make(map[string]bool)
		for key := range table {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			rest := strings.TrimPrefix(key, prefix)
			if i := strings.Index(rest, "."); i >= 0 {
				rest = rest[:i]
			}
			seen[rest] = true
		}
		if len(seen) > 0 {
			return parent, sortedKeys(seen)
		}
	}
	return "", nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ interfaces.PatternStore = (*Store)(nil)
