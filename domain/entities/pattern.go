package entities

import (
	"regexp"
	"sort"
)

// Params holds named values substituted into {placeholders}
type Params map[string]string

// Clone returns an independent copy of the params
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the param names in sorted order
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PatternEntry is a parameterized locator expression addressed by a dotted path
type PatternEntry struct {
	Path     string `json:"path"`
	Template string `json:"template"`
}

// PatternRef points at a pattern and carries the params to apply to it
type PatternRef struct {
	Primary string `json:"primary" yaml:"primary"`
	Params  Params `json:"params,omitempty" yaml:"params,omitempty"`
}

// TemplateEntry describes a page element in terms of a pattern plus fixed params
type TemplateEntry struct {
	Path     string      `json:"path" yaml:"-"`
	Primary  string      `json:"primary" yaml:"primary"`
	Params   Params      `json:"params,omitempty" yaml:"params,omitempty"`
	Fallback *PatternRef `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// HasFallback reports whether an alternate pattern is declared
func (t TemplateEntry) HasFallback() bool {
	return t.Fallback != nil && t.Fallback.Primary != ""
}

// ResolutionWarning is recorded when a placeholder survives substitution
type ResolutionWarning struct {
	Placeholder string `json:"placeholder"`
	Message     string `json:"message"`
}

// ResolvedLocator is the concrete selector produced for one resolution call
type ResolvedLocator struct {
	Selector     string              `json:"selector"`
	TemplatePath string              `json:"template_path"`
	PatternPath  string              `json:"pattern_path"`
	Params       Params              `json:"params"`
	FallbackUsed bool                `json:"fallback_used"`
	Warnings     []ResolutionWarning `json:"warnings,omitempty"`
}

var (
	placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_.\-]*)\}`)
	patternRefRe  = regexp.MustCompile(`\{@([A-Za-z_][A-Za-z0-9_.\-]*)\}`)
)

// Placeholders returns the {name} placeholders in s, in order of appearance, without duplicates
func Placeholders(s string) []string {
	return uniqueSubmatches(placeholderRe, s)
}

// PatternRefs returns the {@category.name} composition references in s
func PatternRefs(s string) []string {
	return uniqueSubmatches(patternRefRe, s)
}

// ReplacePlaceholders substitutes every {name} found in values in a single pass.
// Placeholders without a value are left untouched.
func ReplacePlaceholders(s string, values Params) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		if v, ok := values[name]; ok {
			return v
		}
		return m
	})
}

// ReplacePatternRefs substitutes every {@path} using lookup; the first lookup error aborts
func ReplacePatternRefs(s string, lookup func(path string) (string, error)) (string, error) {
	var firstErr error
	out := patternRefRe.ReplaceAllStringFunc(s, func(m string) string {
		if firstErr != nil {
			return m
		}
		v, err := lookup(patternRefRe.FindStringSubmatch(m)[1])
		if err != nil {
			firstErr = err
			return m
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func uniqueSubmatches(re *regexp.Regexp, s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		out = append(out, m[1])
	}
	return out
}
