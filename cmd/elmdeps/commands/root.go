// Package commands provides the CLI commands for the elmdeps tool.
package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"martianoff/elmdeps/internal/depman/fetch"
	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/provider"
	"martianoff/elmdeps/internal/depman/registry"
	"martianoff/elmdeps/internal/depman/solve"
	"martianoff/elmdeps/internal/metrics"
)

// Global flags
var (
	elmHome      string
	projectDir   string
	offline      bool
	strategyFlag string
	connFlag     string
	registryURL  string
	timeout      time.Duration
	verbosity    int
	quiet        bool
	metricsFile  string
)

var logger = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "elmdeps",
	Short: "Dependency resolution for Elm projects and their tests",
	Long: `elmdeps resolves the dependencies of Elm projects with the PubGrub algorithm.

Packages are read from the local Elm cache and, when needed, from the
package registry. By default resolution is progressive: the local cache is
tried first, and the whole resolution is retried online if it fails.

Usage:
  elmdeps solve [src-dirs...]   Print the elm.json used to compile the tests
  elmdeps check                 Verify the project dependencies
  elmdeps init                  Add elm-explorations/test to the project
  elmdeps graph                 Print the dependency graph
  elmdeps fetch                 Install resolved packages in the Elm cache
  elmdeps versions author/name  List the versions of a package
  elmdeps version               Print version`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureLogger()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	if metricsFile != "" {
		if werr := metrics.WriteFile(metricsFile); werr != nil {
			logger.WithError(werr).Warn("writing metrics")
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&elmHome, "elm-home", "", "Elm home directory (default $ELM_HOME or ~/.elm)")
	flags.StringVar(&projectDir, "project", ".", "Directory containing the project elm.json")
	flags.BoolVar(&offline, "offline", false, "Only use the local package cache")
	flags.StringVar(&strategyFlag, "dependencies", "", "Resolve online, preferring the newest or oldest versions")
	flags.StringVar(&connFlag, "connectivity", "", "offline, online, online-newest, online-oldest or progressive")
	flags.StringVar(&registryURL, "registry", registry.DefaultURL, "Package registry URL")
	flags.DurationVar(&timeout, "timeout", time.Minute, "Timeout of a registry request")
	flags.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (repeatable)")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Only print errors")
	flags.StringVar(&metricsFile, "metrics-file", "", "Write prometheus metrics to this file on exit")
}

func configureLogger() {
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	switch {
	case quiet || verbosity == 0:
		logger.SetLevel(logrus.ErrorLevel)
	case verbosity == 1:
		logger.SetLevel(logrus.WarnLevel)
	case verbosity == 2:
		logger.SetLevel(logrus.InfoLevel)
	default:
		logger.SetLevel(logrus.DebugLevel)
	}
}

func cacheConfig() *fetch.Config {
	if elmHome != "" {
		return fetch.NewConfig(elmHome)
	}
	return fetch.DefaultConfig()
}

func newResolver() *solve.Resolver {
	return solve.NewResolver(&solve.Config{
		Cache:       cacheConfig(),
		RegistryURL: registryURL,
		Timeout:     timeout,
		CacheMaxAge: solve.DefaultCacheMaxAge,
		Logger:      logger,
	})
}

// connectivity picks the source policy from the flags: --connectivity wins,
// then --offline, then --dependencies; progressive otherwise.
func connectivity() (solve.Connectivity, error) {
	switch {
	case connFlag != "":
		return solve.ParseConnectivity(connFlag)
	case offline:
		return solve.Offline, nil
	case strategyFlag != "":
		s, err := provider.ParseStrategy(strategyFlag)
		if err != nil {
			return solve.Connectivity{}, err
		}
		return solve.Online(s), nil
	default:
		return solve.Progressive, nil
	}
}

func projectPath() string {
	return filepath.Join(projectDir, "elm.json")
}

func loadProject() (*mod.Project, error) {
	return mod.ParseFile(projectPath())
}
