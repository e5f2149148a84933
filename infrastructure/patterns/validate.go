package patterns

import (
	"fmt"

	"crm_automation/domain/entities"

	"go.uber.org/multierr"
)

// Validate - checks every template reference and pattern composition in one pass.
// All problems are returned together.
func (s *Store) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs error

	for _, path := range sortedKeys(s.templates) {
		t := s.templates[path]
		if _, ok := s.patterns[t.Primary]; !ok {
			errs = multierr.Append(errs, fmt.Errorf("template %s: primary %w",
				path, notFound("pattern", t.Primary, s.patterns)))
		}
		if t.Fallback == nil {
			continue
		}
		if _, ok := s.patterns[t.Fallback.Primary]; !ok {
			errs = multierr.Append(errs, fmt.Errorf("template %s: fallback %w",
				path, notFound("pattern", t.Fallback.Primary, s.patterns)))
		}
	}

	for _, path := range sortedKeys(s.patterns) {
		if err := s.checkComposition(path, map[string]bool{}); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("pattern %s: %w", path, err))
		}
	}

	return errs
}

func (s *Store) checkComposition(path string, visiting map[string]bool) error {
	if visiting[path] {
		return fmt.Errorf("%w via %s", entities.ErrPatternCycle, path)
	}
	visiting[path] = true
	defer delete(visiting, path)

	for _, ref := range entities.PatternRefs(s.patterns[path]) {
		if _, ok := s.patterns[ref]; !ok {
			return notFound("pattern", ref, s.patterns)
		}
		if err := s.checkComposition(ref, visiting); err != nil {
			return err
		}
	}
	return nil
}
