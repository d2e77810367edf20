package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"martianoff/elmdeps/internal/depman/fetch"
	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/solve"
	"martianoff/elmdeps/internal/depman/version"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Install the resolved packages in the Elm cache",
	Long: `Resolve the dependencies needed to compile the project tests and clone
every package version missing from the Elm package cache.

Examples:
  elmdeps fetch
  elmdeps fetch --elm-home /tmp/elm-home`,
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

		app, err := solve.ForTests(ctx, r, conn, project, defaultSourceDirs(project), nil)
		if err != nil {
			return err
		}

		config := r.Config().Cache
		fetcher := fetch.NewGitFetcher(fetch.NewCache(config), logger)
		out := cmd.OutOrStdout()
		for _, group := range []map[mod.Pkg]version.Version{app.Dependencies.Direct, app.Dependencies.Indirect} {
			for _, pkg := range sortedKeys(group) {
				v := group[pkg]
				if config.IsCached(pkg, v) {
					continue
				}
				path, err := fetcher.Fetch(ctx, pkg, v)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s -> %s\n", pkg, v, path)
			}
		}
		return nil
	},
}

func sortedKeys(m map[mod.Pkg]version.Version) []mod.Pkg {
	pkgs := make([]mod.Pkg, 0, len(m))
	for pkg := range m {
		pkgs = append(pkgs, pkg)
	}
	mod.SortPkgs(pkgs)
	return pkgs
}
