package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/solve"
	"martianoff/elmdeps/internal/depman/version"
)

var (
	solveOutput string
	solveWith   []string
)

var solveCmd = &cobra.Command{
	Use:   "solve [src-dirs...]",
	Short: "Resolve the dependencies needed to compile the project tests",
	Long: `Resolve the project dependencies together with the test runner ones and
print the resulting application elm.json.

The source directories of the generated elm.json default to the project's
own plus "tests".

Examples:
  elmdeps solve
  elmdeps solve --offline
  elmdeps solve --dependencies oldest src tests
  elmdeps solve --output build/elm.json
  elmdeps solve --with elm/http=^2.0.0 --with elm/random=latest`,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := loadProject()
		if err != nil {
			return err
		}
		conn, err := connectivity()
		if err != nil {
			return err
		}
		srcDirs := args
		if len(srcDirs) == 0 {
			srcDirs = defaultSourceDirs(project)
		}

		extras, err := parseExtras(solveWith)
		if err != nil {
			return err
		}

		app, err := solve.ForTests(context.Background(), newResolver(), conn, project, srcDirs, extras)
		if err != nil {
			return err
		}
		out := &mod.Project{Application: app}
		if solveOutput != "" {
			return mod.WriteFile(solveOutput, out)
		}
		data, err := mod.Format(out)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	solveCmd.Flags().StringVarP(&solveOutput, "output", "o", "", "Write the elm.json to this path instead of stdout")
	solveCmd.Flags().StringArrayVar(&solveWith, "with", nil, "Extra dependency author/name=constraint (repeatable)")
}

// parseExtras adds the --with dependencies to the test runner ones.
func parseExtras(specs []string) (mod.Dependencies, error) {
	extras := solve.DefaultTestExtras()
	for _, spec := range specs {
		name, constraint, found := strings.Cut(spec, "=")
		if !found {
			constraint = "latest"
		}
		pkg, err := mod.ParsePkg(name)
		if err != nil {
			return nil, err
		}
		r, err := version.ParseConstraint(constraint)
		if err != nil {
			return nil, fmt.Errorf("invalid constraint for %s: %w", pkg, err)
		}
		extras[pkg] = r
	}
	return extras, nil
}

func defaultSourceDirs(project *mod.Project) []string {
	var dirs []string
	if project.Application != nil {
		dirs = append(dirs, project.Application.SourceDirectories...)
	} else {
		dirs = append(dirs, "src")
	}
	return append(dirs, "tests")
}
