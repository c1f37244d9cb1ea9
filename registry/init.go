// Package registry implements the masternode registry backend.
package registry

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kwvg/dash/common/logging"
	"github.com/kwvg/dash/common/node"
	"github.com/kwvg/dash/registry/api"
	"github.com/kwvg/dash/registry/memory"
)

const (
	// CfgNetwork configures the network the registry tracks.
	CfgNetwork = "registry.network"
	// CfgDeprecatedFields enables the legacy field visibility mode.
	CfgDeprecatedFields = "registry.deprecated_fields"
	// CfgMaxSnapshots configures the number of per-height snapshots kept.
	CfgMaxSnapshots = "registry.max_snapshots"
	// CfgJournalDir configures the directory of the event journal.
	CfgJournalDir = "registry.journal_dir"

	cfgDebugAllowUnroutable = "registry.debug.allow_unroutable"
)

// Flags has the configuration flags.
var Flags = flag.NewFlagSet("", flag.ContinueOnError)

// Config is the registry configuration.
type Config struct {
	// Params are the validation parameters.
	Params *api.Params
	// Mode is the field visibility mode of rendered views.
	Mode node.Mode
	// JournalDir is the event journal directory, empty for none.
	JournalDir string
}

// NewRenderer returns a renderer in the configured mode.
func (cfg *Config) NewRenderer() *api.Renderer {
	return api.NewRenderer(cfg.Mode)
}

// ConfigFromFlags builds the registry configuration from the bound flags.
func ConfigFromFlags() (*Config, error) {
	var network api.Network
	if err := network.Set(viper.GetString(CfgNetwork)); err != nil {
		return nil, err
	}

	params := api.DefaultParams(network)
	params.MaxSnapshots = viper.GetUint64(CfgMaxSnapshots)
	if viper.GetBool(cfgDebugAllowUnroutable) {
		params.AllowUnroutableAddresses = true
	}
	if err := params.SanityCheck(); err != nil {
		return nil, err
	}

	return &Config{
		Params:     params,
		Mode:       node.ModeFromDeprecated(viper.GetBool(CfgDeprecatedFields)),
		JournalDir: viper.GetString(CfgJournalDir),
	}, nil
}

// New constructs a new Backend.
func New(ctx context.Context, cfg *Config) (api.Backend, error) {
	if cfg == nil || cfg.Params == nil {
		return nil, fmt.Errorf("registry: missing configuration")
	}

	logger := logging.GetLogger("registry")

	impl, err := memory.New(cfg.Params)
	if err != nil {
		return nil, err
	}
	if cfg.JournalDir != "" {
		if impl, err = newJournalWrapper(ctx, impl, cfg.JournalDir); err != nil {
			return nil, err
		}
	}

	height, err := impl.Height(ctx)
	if err != nil {
		impl.Cleanup()
		return nil, err
	}
	logger.Info("registry initialized",
		"backend", memory.BackendName,
		"network", cfg.Params.Network,
		"mode", cfg.Mode,
		"journal_dir", cfg.JournalDir,
		"height", height,
	)

	wrapped, err := newMetricsWrapper(ctx, impl)
	if err != nil {
		impl.Cleanup()
		return nil, err
	}
	return wrapped, nil
}

// RegisterFlags registers the configuration flags with the provided
// command.
func RegisterFlags(cmd *cobra.Command) {
	if !cmd.Flags().Parsed() {
		cmd.Flags().AddFlagSet(Flags)
	}
}

func init() {
	Flags.String(CfgNetwork, api.NetworkRegtest.String(), "network the registry tracks [mainnet,testnet,devnet,regtest]")
	Flags.Bool(CfgDeprecatedFields, false, "render the deprecated service and platform port fields")
	Flags.Uint64(CfgMaxSnapshots, 0, "number of per-height snapshots kept for diffs (0 keeps all)")
	Flags.String(CfgJournalDir, "", "event journal directory (empty disables the journal)")
	Flags.Bool(cfgDebugAllowUnroutable, false, "allow unroutable addresses (UNSAFE)")
	_ = Flags.MarkHidden(cfgDebugAllowUnroutable)

	_ = viper.BindPFlags(Flags)
}
