package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/solve"
)

var checkJobs int

var checkCmd = &cobra.Command{
	Use:   "check [project-dirs...]",
	Short: "Verify that the project dependencies are consistent",
	Long: `Verify that the dependencies listed in elm.json, test dependencies
included, can be resolved together. Applications must also list every
indirect dependency of the resolution.

With project directories, each project is only checked for a solution.
The resolutions run concurrently.

Examples:
  elmdeps check
  elmdeps check --offline
  elmdeps check --jobs 4 examples/*`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := connectivity()
		if err != nil {
			return err
		}
		if len(args) > 0 {
			return checkMany(cmd, conn, args)
		}

		project, err := loadProject()
		if err != nil {
			return err
		}
		if err := solve.Check(context.Background(), newResolver(), conn, project); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Dependencies are consistent")
		return nil
	},
}

func init() {
	checkCmd.Flags().IntVarP(&checkJobs, "jobs", "j", runtime.NumCPU(), "Number of concurrent resolutions")
}

func checkMany(cmd *cobra.Command, conn solve.Connectivity, dirs []string) error {
	jobs := make([]solve.Job, 0, len(dirs))
	for _, dir := range dirs {
		project, err := mod.ParseFile(filepath.Join(dir, "elm.json"))
		if err != nil {
			return err
		}
		root, rootVersion := project.Root()
		jobs = append(jobs, solve.Job{
			Name:         dir,
			Connectivity: conn,
			Root:         root,
			RootVersion:  rootVersion,
			Deps:         project.DirectDependencies(true),
		})
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, res := range newResolver().SolveMany(context.Background(), jobs, checkJobs) {
		if res.Err != nil {
			failed++
			fmt.Fprintf(out, "%s: %v\n", res.Job.Name, res.Err)
			continue
		}
		fmt.Fprintf(out, "%s: ok (%d packages)\n", res.Job.Name, len(res.Solution))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d projects have no solution", failed, len(jobs))
	}
	return nil
}
