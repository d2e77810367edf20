package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"martianoff/elmdeps/internal/depman/fetch"
	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/provider"
	"martianoff/elmdeps/internal/depman/solve"
	"martianoff/elmdeps/internal/depman/version"
)

var (
	versionsSource     string
	versionsConstraint string
	versionsLatest     bool
)

var versionsCmd = &cobra.Command{
	Use:   "versions <author/name>",
	Short: "List the known versions of a package",
	Long: `List the versions of a package, oldest first.

The source is the local package cache (offline), the package registry
(online) or the package Git repository tags (git).

Examples:
  elmdeps versions elm/core
  elmdeps versions elm/json --source offline
  elmdeps versions elm-explorations/test --source git
  elmdeps versions elm/http --constraint ^2.0.0 --latest`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg, err := mod.ParsePkg(args[0])
		if err != nil {
			return err
		}
		r := version.Full()
		if versionsConstraint != "" {
			if r, err = version.ParseConstraint(versionsConstraint); err != nil {
				return err
			}
		}
		versions, err := listVersions(context.Background(), newResolver(), pkg, versionsSource)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if versionsLatest {
			best, found := version.SelectBest(r, versions)
			if !found {
				return fmt.Errorf("no version of %s matches %s", pkg, r)
			}
			fmt.Fprintln(out, best)
			return nil
		}
		versions = r.Filter(versions)
		for _, v := range versions {
			fmt.Fprintln(out, v)
		}
		return nil
	},
}

func init() {
	versionsCmd.Flags().StringVar(&versionsSource, "source", "online", "Where to look: offline, online or git")
	versionsCmd.Flags().StringVar(&versionsConstraint, "constraint", "", "Only list versions matching this constraint")
	versionsCmd.Flags().BoolVar(&versionsLatest, "latest", false, "Only print the highest matching version")
}

func listVersions(ctx context.Context, r *solve.Resolver, pkg mod.Pkg, source string) ([]version.Version, error) {
	var conn solve.Connectivity
	switch source {
	case "git":
		return fetch.NewGitFetcher(fetch.NewCache(r.Config().Cache), logger).ListVersions(ctx, pkg)
	case "offline":
		conn = solve.Offline
	case "online":
		conn = solve.Online(provider.Newest)
	default:
		return nil, fmt.Errorf("unknown source %q, expected offline, online or git", source)
	}
	p, release, err := r.Provider(conn)
	if err != nil {
		return nil, err
	}
	defer release()
	versions, err := p.ListVersions(ctx, pkg)
	if err != nil {
		return nil, err
	}
	versions = append([]version.Version(nil), versions...)
	version.Sort(versions)
	return versions, nil
}
