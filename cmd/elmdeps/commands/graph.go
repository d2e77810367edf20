package commands

import (
	"context"

	"github.com/spf13/cobra"

	"martianoff/elmdeps/internal/depman/graph"
	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/provider"
	"martianoff/elmdeps/internal/depman/solve"
	"martianoff/elmdeps/internal/depman/version"
)

var graphTests bool

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the dependency graph",
	Long: `Resolve the project dependencies and print the dependency graph.

Each line shows one edge: "from@version to@version", sorted.

Examples:
  elmdeps graph
  elmdeps graph --tests`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := loadProject()
		if err != nil {
			return err
		}
		conn, err := connectivity()
		if err != nil {
			return err
		}
		ctx := context.Background()
		r := newResolver()

		root, rootVersion := project.Root()
		deps := project.DirectDependencies(graphTests)
		sol, err := r.Solve(ctx, conn, root, rootVersion, deps)
		if err != nil {
			return err
		}

		p, release, err := r.Provider(graphSource(r, sol))
		if err != nil {
			return err
		}
		defer release()

		g, err := graph.NewBuilder(p).Build(ctx, root, rootVersion, deps, sol)
		if err != nil {
			return err
		}
		if err := g.DetectCycles(); err != nil {
			logger.WithError(err).Warn("dependency cycle")
		}
		_, err = g.WriteTo(cmd.OutOrStdout())
		return err
	},
}

func init() {
	graphCmd.Flags().BoolVar(&graphTests, "tests", false, "Include the test dependencies")
}

// graphSource reads package dependencies offline when every solution package
// is cached.
func graphSource(r *solve.Resolver, sol map[mod.Pkg]version.Version) solve.Connectivity {
	for pkg, v := range sol {
		if !r.Config().Cache.IsCached(pkg, v) {
			return solve.Online(provider.Newest)
		}
	}
	return solve.Offline
}
