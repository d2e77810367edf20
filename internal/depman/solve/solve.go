package solve

import (
	"context"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/provider"
	"martianoff/elmdeps/internal/depman/pubgrub"
	"martianoff/elmdeps/internal/depman/version"
)

// Solve resolves deps as the dependencies of root at rootVersion against p.
// The solution holds every package the root needs, never the root itself.
func Solve(ctx context.Context, root mod.Pkg, rootVersion version.Version, deps mod.Dependencies, p provider.Provider, opts ...pubgrub.Option) (map[mod.Pkg]version.Version, error) {
	adapter := provider.NewProjectAdapter(root, rootVersion, deps, p)
	sol, err := pubgrub.Resolve(ctx, adapter, root, rootVersion, opts...)
	if err != nil {
		return nil, err
	}
	delete(sol, root)
	return sol, nil
}
