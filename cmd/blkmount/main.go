// Command blkmount is a demonstration harness over internal/partition
// and internal/mount: it is not part of either library's public
// contract, only a thin CLI driver atop them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blkcore/blkmount/internal/config"
	"github.com/blkcore/blkmount/internal/utils/logger"
)

// configPath is the persistent --config flag, read through loadConfig,
// mirroring the environment inputs spec.md §6 recognizes (fstab/utab path
// overrides, the fake-mode switch). Only the mount subcommand calls
// loadConfig.
var configPath string

// loadConfig reads configPath if set, falling back to config.Default().
func loadConfig() config.Config {
	if configPath == "" {
		return config.Default()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Logger().Errorf("config: %v, using defaults", err)
		return config.Default()
	}
	return cfg
}

func main() {
	root := &cobra.Command{
		Use:           "blkmount",
		Short:         "probe partition tables and drive mount requests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a blkmount config file")

	root.AddCommand(
		createProbeCommand(),
		createMountCommand(),
		createOptstrCommand(),
		createBrowseCommand(),
	)

	if err := root.Execute(); err != nil {
		logger.Logger().Errorf("%v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
