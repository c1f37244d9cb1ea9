package cmd

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	cmdCommon "github.com/kwvg/dash/cmd/common"
	"github.com/kwvg/dash/common/node"
	"github.com/kwvg/dash/registry/api"
)

const (
	cfgListKind   = "list.kind"
	cfgListStatus = "list.status"
)

var (
	listFlags = flag.NewFlagSet("", flag.ContinueOnError)

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "list registry entries",
		Args:  cobra.NoArgs,
		RunE:  doList,
	}
)

func listFilter() (*api.Filter, error) {
	var f api.Filter
	if s := viper.GetString(cfgListKind); s != "" {
		var kind node.Kind
		if err := kind.UnmarshalText([]byte(s)); err != nil {
			return nil, err
		}
		f.Kind = &kind
	}
	if s := viper.GetString(cfgListStatus); s != "" {
		var status api.Status
		if err := status.UnmarshalText([]byte(s)); err != nil {
			return nil, err
		}
		f.Status = &status
	}
	return &f, nil
}

func writeEntryTable(w io.Writer, entries []*api.Entry) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Provider", "Type", "Status", "Addresses", "Collateral", "Registered"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	for _, e := range entries {
		var addrs []string
		for _, ep := range e.Addresses.All() {
			addrs = append(addrs, ep.String())
		}
		table.Append([]string{
			e.ProviderID.String(),
			e.Kind.String(),
			e.Status.String(),
			strings.Join(addrs, " "),
			e.Collateral.Outpoint.String(),
			strconv.FormatInt(e.RegisteredHeight, 10),
		})
	}
	table.Render()
}

func doList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	filter, err := listFilter()
	if err != nil {
		return err
	}

	_, backend, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer backend.Cleanup()

	entries, err := backend.GetEntries(ctx, filter)
	if err != nil {
		cmdCommon.Logger().Error("failed to query entries",
			"err", err,
		)
		return err
	}

	writeEntryTable(cmd.OutOrStdout(), entries)
	return nil
}

func registerListCmd(parentCmd *cobra.Command) {
	listCmd.Flags().AddFlagSet(listFlags)
	parentCmd.AddCommand(listCmd)
}

func init() {
	listFlags.String(cfgListKind, "", "only list entries of the given type [regular,evo]")
	listFlags.String(cfgListStatus, "", "only list entries with the given status [active,retired]")
	_ = viper.BindPFlags(listFlags)
}
