package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the registry cache",
	Long: `Manage the persistent cache of registry responses.

Subcommands:
  path    Print the location of the registry cache
  clean   Remove the registry cache`,
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the location of the registry cache",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), cacheConfig().RegistryCachePath())
	},
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the registry cache",
	Long: `Remove the persistent cache of registry responses. The Elm package
cache itself is left untouched.

Examples:
  elmdeps cache clean`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cacheConfig().RegistryCachePath()
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", path)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cachePathCmd)
	cacheCmd.AddCommand(cacheCleanCmd)
}
