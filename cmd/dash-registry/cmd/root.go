// Package cmd implements the commands for the dash-registry executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	cmdCommon "github.com/kwvg/dash/cmd/common"
	"github.com/kwvg/dash/registry"
	"github.com/kwvg/dash/registry/api"
)

var rootCmd = &cobra.Command{
	Use:          "dash-registry",
	Short:        "Deterministic masternode registry",
	SilenceUsage: true,
}

// RootCommand returns the root (top level) cobra.Command.
func RootCommand() *cobra.Command {
	return rootCmd
}

// Execute spawns the main entry point after handling the config file
// and command line arguments.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openRegistry rebuilds the configured registry.
func openRegistry(ctx context.Context) (*registry.Config, api.Backend, error) {
	cfg, err := registry.ConfigFromFlags()
	if err != nil {
		return nil, nil, err
	}
	backend, err := registry.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, backend, nil
}

func parseHeight(s string) (int64, error) {
	h, err := strconv.ParseInt(s, 10, 64)
	if err != nil || h < 0 {
		return 0, fmt.Errorf("malformed height '%s'", s)
	}
	return h, nil
}

func init() {
	cobra.OnInitialize(cmdCommon.InitConfig)

	rootCmd.PersistentFlags().AddFlagSet(cmdCommon.RootFlags)
	rootCmd.PersistentFlags().AddFlagSet(registry.Flags)

	for _, v := range []func(*cobra.Command){
		registerListCmd,
		registerShowCmd,
		registerDiffCmd,
		registerScenarioCmd,
	} {
		v(rootCmd)
	}
}
