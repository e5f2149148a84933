package locator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"crm_automation/domain/entities"
	"crm_automation/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// maxCompositionDepth bounds {@ref} inlining
const maxCompositionDepth = 16

// Resolver converts symbolic element paths plus runtime params into concrete selectors
type Resolver struct {
	store  interfaces.PatternStore
	logger *logrus.Logger

	cacheEnabled bool
	cacheMu      sync.RWMutex
	cache        map[string]entities.ResolvedLocator
}

// Option configures a Resolver
type Option func(*Resolver)

// WithCache - memoizes resolutions keyed by path and serialized params
func WithCache(enabled bool) Option {
	return func(r *Resolver) {
		r.cacheEnabled = enabled
	}
}

// NewResolver - creates a resolver reading from store
func NewResolver(store interfaces.PatternStore, logger *logrus.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		store:  store,
		logger: logger,
		cache:  make(map[string]entities.ResolvedLocator),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve - resolves path with the template's primary pattern, switching to the fallback
// when the primary cannot be resolved. Paths naming a pattern or static directly are also accepted.
func (r *Resolver) Resolve(ctx context.Context, path string, params entities.Params) (entities.ResolvedLocator, error) {
	return r.cached(ctx, path, params, false)
}

// ResolveFallback - resolves path with the template's fallback pattern
func (r *Resolver) ResolveFallback(ctx context.Context, path string, params entities.Params) (entities.ResolvedLocator, error) {
	return r.cached(ctx, path, params, true)
}

// ClearCache - drops every memoized resolution
func (r *Resolver) ClearCache() {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	r.cache = make(map[string]entities.ResolvedLocator)
}

func (r *Resolver) cached(ctx context.Context, path string, params entities.Params, fallback bool) (entities.ResolvedLocator, error) {
	if err := ctx.Err(); err != nil {
		return entities.ResolvedLocator{}, err
	}

	if !r.cacheEnabled {
		return r.resolve(path, params, fallback)
	}

	key, err := cacheKey(path, params, fallback)
	if err != nil {
		return entities.ResolvedLocator{}, err
	}

	r.cacheMu.RLock()
	loc, ok := r.cache[key]
	r.cacheMu.RUnlock()
	if ok {
		return copyLocator(loc), nil
	}

	loc, err = r.resolve(path, params, fallback)
	if err != nil {
		return loc, err
	}

	r.cacheMu.Lock()
	r.cache[key] = copyLocator(loc)
	r.cacheMu.Unlock()

	return loc, nil
}

func (r *Resolver) resolve(path string, runtime entities.Params, fallback bool) (entities.ResolvedLocator, error) {
	tmpl, err := r.store.GetTemplate(path)
	if err != nil {
		if !errors.Is(err, entities.ErrNotFound) || fallback {
			return entities.ResolvedLocator{}, err
		}
		return r.resolveDirect(path, runtime, err)
	}

	if fallback {
		if !tmpl.HasFallback() {
			return entities.ResolvedLocator{}, fmt.Errorf("%s: %w", path, entities.ErrNoFallback)
		}
		return r.render(tmpl.Path, *tmpl.Fallback, runtime, true)
	}

	loc, primaryErr := r.render(tmpl.Path, entities.PatternRef{Primary: tmpl.Primary, Params: tmpl.Params}, runtime, false)
	if primaryErr == nil {
		return loc, nil
	}
	if !tmpl.HasFallback() {
		return entities.ResolvedLocator{}, primaryErr
	}

	r.logger.WithFields(logrus.Fields{
		"template": path,
		"primary":  tmpl.Primary,
		"fallback": tmpl.Fallback.Primary,
	}).Warnf("Primary pattern unavailable, using fallback: %v", primaryErr)

	return r.render(tmpl.Path, *tmpl.Fallback, runtime, true)
}

// resolveDirect - handles a path that names a pattern or a static selector instead of a template
func (r *Resolver) resolveDirect(path string, runtime entities.Params, templateErr error) (entities.ResolvedLocator, error) {
	if _, err := r.store.GetPattern(path); err == nil {
		return r.render("", entities.PatternRef{Primary: path}, runtime, false)
	}

	if selector, err := r.store.GetStatic(path); err == nil {
		return entities.ResolvedLocator{
			Selector:     selector,
			TemplatePath: path,
			PatternPath:  path,
			Params:       entities.Params{},
		}, nil
	}

	return entities.ResolvedLocator{}, templateErr
}

// render - merges params, resolves nested {param} references and substitutes into the pattern
func (r *Resolver) render(templatePath string, ref entities.PatternRef, runtime entities.Params, fallback bool) (entities.ResolvedLocator, error) {
	pattern, err := r.expand(ref.Primary, 0, map[string]bool{})
	if err != nil {
		return entities.ResolvedLocator{}, err
	}

	merged := ref.Params.Clone()
	for k, v := range runtime {
		merged[k] = v
	}
	for k, v := range merged {
		if _, isRuntime := runtime[k]; isRuntime {
			continue
		}
		merged[k] = entities.ReplacePlaceholders(v, runtime)
	}

	selector := entities.ReplacePlaceholders(pattern, merged)

	var warnings []entities.ResolutionWarning
	for _, name := range entities.Placeholders(selector) {
		w := entities.ResolutionWarning{
			Placeholder: name,
			Message:     fmt.Sprintf("placeholder {%s} has no value", name),
		}
		warnings = append(warnings, w)
		r.logger.WithFields(logrus.Fields{
			"template": templatePath,
			"pattern":  ref.Primary,
			"selector": selector,
		}).Warn(w.Message)
	}

	if templatePath == "" {
		templatePath = ref.Primary
	}

	loc := entities.ResolvedLocator{
		Selector:     selector,
		TemplatePath: templatePath,
		PatternPath:  ref.Primary,
		Params:       merged,
		FallbackUsed: fallback,
		Warnings:     warnings,
	}

	r.logger.WithFields(logrus.Fields{
		"template": templatePath,
		"selector": selector,
		"fallback": fallback,
	}).Debug("Resolved locator")

	return loc, nil
}

// expand - fetches a pattern and inlines its {@ref} compositions
func (r *Resolver) expand(path string, depth int, visiting map[string]bool) (string, error) {
	if visiting[path] || depth > maxCompositionDepth {
		return "", fmt.Errorf("%w via %s", entities.ErrPatternCycle, path)
	}

	pattern, err := r.store.GetPattern(path)
	if err != nil {
		return "", err
	}

	visiting[path] = true
	defer delete(visiting, path)

	return entities.ReplacePatternRefs(pattern, func(ref string) (string, error) {
		return r.expand(ref, depth+1, visiting)
	})
}

// cacheKey - path plus canonical JSON of params; encoding/json sorts map keys
func cacheKey(path string, params entities.Params, fallback bool) (string, error) {
	if params == nil {
		params = entities.Params{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to serialize params: %w", err)
	}
	return fmt.Sprintf("%s|%t|%s", path, fallback, data), nil
}

func copyLocator(loc entities.ResolvedLocator) entities.ResolvedLocator {
	loc.Params = loc.Params.Clone()
	if loc.Warnings != nil {
		loc.Warnings = append([]entities.ResolutionWarning(nil), loc.Warnings...)
	}
	return loc
}

var _ interfaces.Resolver = (*Resolver)(nil)
