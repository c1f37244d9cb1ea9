package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kwvg/dash/chain"
	"github.com/kwvg/dash/chain/mock"
	cmdCommon "github.com/kwvg/dash/cmd/common"
	"github.com/kwvg/dash/common/collateral"
	"github.com/kwvg/dash/common/crypto/hash"
	"github.com/kwvg/dash/common/node"
	"github.com/kwvg/dash/registry/api"
	"github.com/kwvg/dash/registry/api/fixtures"
)

const cfgScenarioSeed = "scenario.seed"

// Each run uses seed and seed+1.
const maxScenarioSeed = fixtures.MaxSeed - 1

var (
	scenarioFlags = flag.NewFlagSet("", flag.ContinueOnError)

	scenarioCmd = &cobra.Command{
		Use:   "scenario",
		Short: "drive the registry through a regular and an Evo node lifecycle",
		Long: `Drive the registry through a regular and an Evo node lifecycle on a
local mock chain, printing every rendered surface along the way. With a
journal directory configured the resulting events are kept.`,
		Args: cobra.NoArgs,
		RunE: doScenario,
	}
)

// scenarioStep is one printed step of the scenario.
type scenarioStep struct {
	Step   string      `json:"step"`
	Height int64       `json:"height"`
	View   interface{} `json:"view"`
}

type scenario struct {
	ctx      context.Context
	ledger   *mock.Ledger
	backend  api.Backend
	renderer *api.Renderer

	steps []*scenarioStep
}

func (s *scenario) record(step string, view interface{}) error {
	height, err := s.ledger.Height(s.ctx)
	if err != nil {
		return err
	}
	s.steps = append(s.steps, &scenarioStep{Step: step, Height: height, View: view})
	return nil
}

func (s *scenario) register(name string, tx *api.RegisterTx) (hash.Hash, error) {
	fundID, err := s.ledger.Fund(s.ctx, tx.Collateral.Address, tx.Collateral.Value)
	if err != nil {
		return hash.Hash{}, err
	}
	if err = s.ledger.Confirm(s.ctx, fundID, 1); err != nil {
		return hash.Hash{}, err
	}
	tx.Collateral.Outpoint = collateral.Outpoint{TxID: fundID, Index: 0}

	id, err := s.ledger.SubmitRegister(s.ctx, tx)
	if err != nil {
		return hash.Hash{}, err
	}
	if err = s.ledger.Confirm(s.ctx, id, 1); err != nil {
		return hash.Hash{}, fmt.Errorf("%s registration: %w", name, err)
	}

	view, err := s.renderer.RegisterTx(tx)
	if err != nil {
		return hash.Hash{}, err
	}
	if err = s.record(name+" registration", view); err != nil {
		return hash.Hash{}, err
	}
	return id, s.status(name+" status", id)
}

func (s *scenario) status(step string, id hash.Hash) error {
	e, err := s.backend.GetEntry(s.ctx, id)
	if err != nil {
		return err
	}
	view, err := s.renderer.Status(e)
	if err != nil {
		return err
	}
	return s.record(step, view)
}

func (s *scenario) diff(step string, base int64) error {
	height, err := s.backend.Height(s.ctx)
	if err != nil {
		return err
	}
	d, err := s.backend.Diff(s.ctx, base, height)
	if err != nil {
		return err
	}
	view, err := s.renderer.ListDiff(d)
	if err != nil {
		return err
	}
	return s.record(step, view)
}

func (s *scenario) run(seed byte) error {
	base, err := s.backend.Height(s.ctx)
	if err != nil {
		return err
	}

	// Every seed gets its own ports so that runs can be stacked.
	off := uint16(seed-1) * 10

	regular, err := fixtures.NewRegisterTx(node.KindRegular, seed, fixtures.RegularInput(9998-off))
	if err != nil {
		return err
	}
	if _, err = s.register("regular", regular); err != nil {
		return err
	}

	evo, err := fixtures.NewRegisterTx(node.KindEvo, seed+1, fixtures.EvoInput(9997-off, 19998-off, 29998-off))
	if err != nil {
		return err
	}
	evoID, err := s.register("evo", evo)
	if err != nil {
		return err
	}
	if err = s.diff("list diff after registration", base); err != nil {
		return err
	}

	as, err := node.Derive(node.KindEvo, fixtures.EvoInput(9996-off, 19996-off, 29996-off))
	if err != nil {
		return err
	}
	utx := &api.UpdateServiceTx{ProviderID: evoID, Addresses: *as}
	utxID, err := s.ledger.SubmitUpdateService(s.ctx, utx)
	if err != nil {
		return err
	}
	if err = s.ledger.Confirm(s.ctx, utxID, 1); err != nil {
		return err
	}
	view, err := s.renderer.UpdateServiceTx(utx)
	if err != nil {
		return err
	}
	if err = s.record("evo service update", view); err != nil {
		return err
	}

	preSpend, err := s.backend.Height(s.ctx)
	if err != nil {
		return err
	}
	spendID, err := s.ledger.Spend(s.ctx, evo.Collateral.Outpoint, []chain.Output{{
		Address: evo.PayoutAddress,
		Value:   evo.Collateral.Value,
	}})
	if err != nil {
		return err
	}
	if err = s.ledger.Confirm(s.ctx, spendID, 1); err != nil {
		return err
	}
	if err = s.status("evo status after spend", evoID); err != nil {
		return err
	}
	return s.diff("list diff after spend", preSpend)
}

func doScenario(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, backend, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer backend.Cleanup()
	if !cfg.Params.AllowUnroutableAddresses {
		return fmt.Errorf("scenario uses loopback addresses, which %s does not allow", cfg.Params.Network)
	}

	height, err := backend.Height(ctx)
	if err != nil {
		return err
	}

	s := &scenario{
		ctx:      ctx,
		ledger:   mock.NewAt(backend, height),
		backend:  backend,
		renderer: cfg.NewRenderer(),
	}
	seed := viper.GetUint(cfgScenarioSeed)
	if seed < 1 || seed > maxScenarioSeed {
		return fmt.Errorf("scenario seed %d outside [1, %d]", seed, maxScenarioSeed)
	}
	if err = s.run(byte(seed)); err != nil {
		cmdCommon.Logger().Error("scenario failed",
			"err", err,
			"steps", len(s.steps),
		)
		return err
	}

	return cmdCommon.PrettyPrint(cmd.OutOrStdout(), s.steps)
}

func registerScenarioCmd(parentCmd *cobra.Command) {
	scenarioCmd.Flags().AddFlagSet(scenarioFlags)
	parentCmd.AddCommand(scenarioCmd)
}

func init() {
	scenarioFlags.Uint(cfgScenarioSeed, 1, "seed the scenario keys and ports are derived from (1-30)")
	_ = viper.BindPFlags(scenarioFlags)
}
