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
	"fmt"

	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"

	"github.com/poolvote/poolvote/common"
	"github.com/poolvote/poolvote/ledger"
	"github.com/poolvote/poolvote/voting"
)

// simGovernance is the in-process governance collaborator: decision
// snapshots come from the scenario file, submissions are recorded and
// logged.
type simGovernance struct {
	snapshots   map[uint64]uint64
	submissions []simSubmission
	logger      log.Logger
}

type simSubmission struct {
	proposal                   uint64
	against, forVotes, abstain *uint256.Int
}

func newSimGovernance(logger log.Logger) *simGovernance {
	return &simGovernance{snapshots: make(map[uint64]uint64), logger: logger}
}

func (g *simGovernance) ProposalDecisionSnapshot(proposalID uint64) (uint64, error) {
	snap, ok := g.snapshots[proposalID]
	if !ok {
		return 0, fmt.Errorf("proposal %d not registered in scenario", proposalID)
	}
	return snap, nil
}

func (g *simGovernance) SubmitFractionalVote(proposalID uint64, support voting.Support, reason string, weights []byte) error {
	against, forVotes, abstain, err := voting.DecodeVoteWeights(weights)
	if err != nil {
		return err
	}
	g.submissions = append(g.submissions, simSubmission{
		proposal: proposalID,
		against:  against,
		forVotes: forVotes,
		abstain:  abstain,
	})
	g.logger.Info("governance received fractional vote",
		"proposal", proposalID, "against", against, "for", forVotes, "abstain", abstain, "reason", reason)
	return nil
}

// simToken models the governance-token collaborator after self-delegation:
// the pool's historical voting weight mirrors the aggregate raw balance
// history one-to-one; everyone else has none.
type simToken struct {
	pool      common.Address
	ledger    *ledger.Ledger
	delegated bool
	logger    log.Logger
}

func newSimToken(pool common.Address, led *ledger.Ledger, logger log.Logger) *simToken {
	return &simToken{pool: pool, ledger: led, logger: logger}
}

func (tk *simToken) GetPastVotingWeight(holder common.Address, seq uint64) (*uint256.Int, error) {
	if !tk.delegated || holder != tk.pool {
		return new(uint256.Int), nil
	}
	return tk.ledger.GetPastTotalBalance(seq), nil
}

func (tk *simToken) Delegate(delegatee common.Address) error {
	if delegatee != tk.pool {
		return fmt.Errorf("unexpected delegatee %s", delegatee)
	}
	tk.delegated = true
	tk.logger.Debug("delegation recorded", "delegatee", delegatee)
	return nil
}
