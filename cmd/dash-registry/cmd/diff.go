package cmd

import (
	"context"

	"github.com/spf13/cobra"

	cmdCommon "github.com/kwvg/dash/cmd/common"
)

var diffCmd = &cobra.Command{
	Use:   "diff <base_height> [height]",
	Short: "show the list diff between two heights",
	Long:  "Show the list diff between two heights. The height defaults to the registry tip.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  doDiff,
}

func doDiff(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	base, err := parseHeight(args[0])
	if err != nil {
		return err
	}

	cfg, backend, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer backend.Cleanup()

	height, err := backend.Height(ctx)
	if err != nil {
		return err
	}
	if len(args) > 1 {
		if height, err = parseHeight(args[1]); err != nil {
			return err
		}
	}

	diff, err := backend.Diff(ctx, base, height)
	if err != nil {
		return err
	}
	view, err := cfg.NewRenderer().ListDiff(diff)
	if err != nil {
		return err
	}

	return cmdCommon.PrettyPrint(cmd.OutOrStdout(), view)
}

func registerDiffCmd(parentCmd *cobra.Command) {
	parentCmd.AddCommand(diffCmd)
}
