package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	cmdCommon "github.com/kwvg/dash/cmd/common"
	"github.com/kwvg/dash/common/collateral"
	"github.com/kwvg/dash/common/crypto/hash"
	"github.com/kwvg/dash/registry/api"
)

var showCmd = &cobra.Command{
	Use:   "show <provider_id|collateral_outpoint>",
	Short: "show the status of a registry entry",
	Args:  cobra.ExactArgs(1),
	RunE:  doShow,
}

func lookupEntry(ctx context.Context, backend api.Backend, arg string) (*api.Entry, error) {
	var id hash.Hash
	if err := id.UnmarshalText([]byte(arg)); err == nil {
		return backend.GetEntry(ctx, id)
	}
	outpoint, err := collateral.ParseOutpoint(arg)
	if err != nil {
		return nil, fmt.Errorf("'%s' is neither a provider id nor an outpoint", arg)
	}
	return backend.GetEntryByCollateral(ctx, outpoint)
}

func doShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, backend, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer backend.Cleanup()

	e, err := lookupEntry(ctx, backend, args[0])
	if err != nil {
		return err
	}
	view, err := cfg.NewRenderer().Status(e)
	if err != nil {
		return err
	}

	return cmdCommon.PrettyPrint(cmd.OutOrStdout(), view)
}

func registerShowCmd(parentCmd *cobra.Command) {
	parentCmd.AddCommand(showCmd)
}
