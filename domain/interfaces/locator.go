package interfaces

import (
	"context"

	"crm_automation/domain/entities"
)

// Resolver turns symbolic element paths into concrete selectors
type Resolver interface {
	// Resolve uses the primary pattern, falling back when it cannot be resolved
	Resolve(ctx context.Context, path string, params entities.Params) (entities.ResolvedLocator, error)

	// ResolveFallback resolves the template's fallback directly
	ResolveFallback(ctx context.Context, path string, params entities.Params) (entities.ResolvedLocator, error)

	// ClearCache drops memoized resolutions
	ClearCache()
}
