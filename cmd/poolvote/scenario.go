// Copyright 2026 The Poolvote Authors
// This file is part of Poolvote.
//
// Poolvote is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Poolvote is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Poolvote. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v2"

	"github.com/poolvote/poolvote/common"
	"github.com/poolvote/poolvote/ledger"
	"github.com/poolvote/poolvote/store"
	"github.com/poolvote/poolvote/voting"
)

// Scenario is a TOML-scripted sequence of balance and vote events.
type Scenario struct {
	Self      common.Address   `toml:"self"`
	StartSeq  uint64           `toml:"start_seq"`
	Proposals []ProposalConfig `toml:"proposals"`
	Steps     []Step           `toml:"steps"`
}

// ProposalConfig registers a proposal and its decision snapshot with the
// simulated governance contract.
type ProposalConfig struct {
	ID       uint64 `toml:"id"`
	Snapshot uint64 `toml:"snapshot"`
}

// Step is one scenario event. Op selects which of the other fields apply.
type Step struct {
	Op       string `toml:"op"` // issue, redeem, transfer, advance, express, cast, delegate
	Account  string `toml:"account"`
	From     string `toml:"from"`
	To       string `toml:"to"`
	Amount   string `toml:"amount"`
	Blocks   uint64 `toml:"blocks"`
	Proposal uint64 `toml:"proposal"`
	Support  string `toml:"support"`
}

func loadScenario(path string) (*Scenario, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	scn := new(Scenario)
	if err := toml.Unmarshal(blob, scn); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if scn.Self.IsZero() {
		return nil, fmt.Errorf("scenario %s: self address is required", path)
	}
	return scn, nil
}

func runSimulate(cliCtx *cli.Context) error {
	logger, err := setupLogger(cliCtx)
	if err != nil {
		return err
	}
	serveMetrics(cliCtx.String(metricsAddrFlag.Name), logger)

	scn, err := loadScenario(cliCtx.String(scenarioFlag.Name))
	if err != nil {
		return err
	}

	var st *store.Store
	if dir := cliCtx.String(datadirFlag.Name); dir != "" {
		st, err = store.Open(dir, logger)
		if err != nil {
			return err
		}
		defer st.Close()
	}
	return runScenario(scn, st, logger)
}

func runScenario(scn *Scenario, st *store.Store, logger log.Logger) error {
	clock := ledger.NewManualClock(scn.StartSeq)
	mem := ledger.NewMemLedger()
	led := ledger.New(mem, clock, logger)
	gov := newSimGovernance(logger)
	token := newSimToken(scn.Self, led, logger)
	eng, err := voting.NewEngine(scn.Self, led, gov, token, logger)
	if err != nil {
		return err
	}

	if st != nil {
		state, err := st.Load()
		switch {
		case errors.Is(err, store.ErrNoState):
			logger.Info("no persisted state, starting fresh")
		case err != nil:
			return err
		default:
			clock.Set(state.Sequence)
			if err := mem.RestoreBalances(state.Balances); err != nil {
				return err
			}
			if err := led.RestoreSnapshot(state.Ledger); err != nil {
				return err
			}
			if err := eng.RestoreSnapshot(state.Votes); err != nil {
				return err
			}
			logger.Info("state restored", "seq", state.Sequence)
		}
	}

	for _, p := range scn.Proposals {
		gov.snapshots[p.ID] = p.Snapshot
	}

	// delegation is part of initialization and is safe to repeat
	if err := eng.SelfDelegate(); err != nil {
		return err
	}

	for i, step := range scn.Steps {
		if err := runStep(step, clock, led, eng); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	logger.Info("scenario complete",
		"seq", clock.CurrentSequence(),
		"totalRaw", led.TotalRaw(),
		"accounts", len(led.Accounts()),
		"submissions", len(gov.submissions))

	if st != nil {
		return st.Save(&store.State{
			Sequence: clock.CurrentSequence(),
			Balances: mem.Balances(),
			Ledger:   led.Snapshot(),
			Votes:    eng.Snapshot(),
		})
	}
	return nil
}

func runStep(step Step, clock *ledger.ManualClock, led *ledger.Ledger, eng *voting.Engine) error {
	switch step.Op {
	case "advance":
		clock.Advance(step.Blocks)
		return nil
	case "issue":
		account, amount, err := accountAmount(step.Account, step.Amount)
		if err != nil {
			return err
		}
		return led.Issue(account, amount)
	case "redeem":
		account, amount, err := accountAmount(step.Account, step.Amount)
		if err != nil {
			return err
		}
		return led.Redeem(account, amount)
	case "transfer":
		from, amount, err := accountAmount(step.From, step.Amount)
		if err != nil {
			return err
		}
		to, err := common.ParseAddress(step.To)
		if err != nil {
			return err
		}
		return led.Transfer(from, to, amount)
	case "express":
		account, err := common.ParseAddress(step.Account)
		if err != nil {
			return err
		}
		support, err := voting.ParseSupport(step.Support)
		if err != nil {
			return err
		}
		return eng.ExpressVote(account, step.Proposal, support)
	case "cast":
		return eng.CastVote(step.Proposal)
	case "delegate":
		return eng.SelfDelegate()
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func accountAmount(account, amount string) (common.Address, *uint256.Int, error) {
	addr, err := common.ParseAddress(account)
	if err != nil {
		return common.Address{}, nil, err
	}
	value, err := uint256.FromDecimal(amount)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return addr, value, nil
}
