package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/solve"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Add the test dependencies to the project elm.json",
	Long: `Add elm-explorations/test to the test dependencies of the project,
resolving a version compatible with the existing dependencies, and write
elm.json back.

Examples:
  elmdeps init
  elmdeps init --project ./my-app`,
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
		if err := solve.Init(context.Background(), newResolver(), conn, project); err != nil {
			return err
		}
		if err := mod.WriteFile(projectPath(), project); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s\n", solve.ElmTest, projectPath())
		return nil
	},
}
