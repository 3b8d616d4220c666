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

package voting

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/arc/v2"
	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"

	"github.com/poolvote/poolvote/common"
	"github.com/poolvote/poolvote/ledger"
	"github.com/poolvote/poolvote/metrics"
)

var (
	votesExpressed   = metrics.GetOrCreateCounter("poolvote_votes_expressed")
	rollupsSubmitted = metrics.GetOrCreateCounter("poolvote_rollups_submitted")
)

// Number of proposal decision snapshots to keep cached. Snapshots are
// immutable once a proposal exists, so cached entries never go stale.
const snapshotCacheSize = 128

const castVoteReason = "aggregated depositor preferences, split pro rata by raw balance"

// Governance is the external contract the rollup submits to.
type Governance interface {
	// ProposalDecisionSnapshot returns the sequence number at which the
	// proposal's eligible voting weight is fixed.
	ProposalDecisionSnapshot(proposalID uint64) (uint64, error)
	// SubmitFractionalVote casts a single vote whose weight is split
	// across against/for/abstain. weights is the EncodeVoteWeights
	// payload; support is ignored by a fractional-aware governance
	// contract and carries a fixed placeholder.
	SubmitFractionalVote(proposalID uint64, support Support, reason string, weights []byte) error
}

// VotingToken is the governance-token collaborator that pools voting weight
// in this contract.
type VotingToken interface {
	GetPastVotingWeight(holder common.Address, seq uint64) (*uint256.Int, error)
	Delegate(delegatee common.Address) error
}

// ProposalVote holds the raw-balance weight accumulated per preference
// bucket for one proposal. Weights here are raw deposit balance units at
// the proposal's decision snapshot; conversion to pooled voting weight
// happens only inside the rollup and is never stored.
type ProposalVote struct {
	Against *uint256.Int `json:"against"`
	For     *uint256.Int `json:"for"`
	Abstain *uint256.Int `json:"abstain"`
}

func newProposalVote() *ProposalVote {
	return &ProposalVote{
		Against: new(uint256.Int),
		For:     new(uint256.Int),
		Abstain: new(uint256.Int),
	}
}

func (pv *ProposalVote) bucket(s Support) *uint256.Int {
	switch s {
	case SupportAgainst:
		return pv.Against
	case SupportFor:
		return pv.For
	default:
		return pv.Abstain
	}
}

// Total returns the sum of the three buckets. Each bucket is bounded to
// 128 bits, so the sum cannot overflow 256.
func (pv *ProposalVote) Total() *uint256.Int {
	sum := new(uint256.Int).Add(pv.Against, pv.For)
	return sum.Add(sum, pv.Abstain)
}

func (pv *ProposalVote) clone() *ProposalVote {
	return &ProposalVote{
		Against: pv.Against.Clone(),
		For:     pv.For.Clone(),
		Abstain: pv.Abstain.Clone(),
	}
}

func (pv *ProposalVote) reset() {
	pv.Against.Clear()
	pv.For.Clear()
	pv.Abstain.Clear()
}

type votedKey struct {
	proposal uint64
	account  common.Address
}

// Engine is the vote preference ledger plus the rollup that converts
// accumulated raw-balance weight into a proportional share of the pooled
// voting weight. Calls are serialized and atomic-per-call.
type Engine struct {
	mu     sync.Mutex
	self   common.Address
	ledger *ledger.Ledger
	gov    Governance
	token  VotingToken
	logger log.Logger

	votes     map[uint64]*ProposalVote
	voted     map[votedKey]struct{}
	snapshots *lru.ARCCache[uint64, uint64]
}

// NewEngine wires the rollup engine to its collaborators. self is the
// address holding the pooled voting weight (this contract's own identity at
// the governance-token collaborator).
func NewEngine(self common.Address, lgr *ledger.Ledger, gov Governance, token VotingToken, logger log.Logger) (*Engine, error) {
	snapshots, err := lru.NewARC[uint64, uint64](snapshotCacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{
		self:      self,
		ledger:    lgr,
		gov:       gov,
		token:     token,
		logger:    logger,
		votes:     make(map[uint64]*ProposalVote),
		voted:     make(map[votedKey]struct{}),
		snapshots: snapshots,
	}, nil
}

// SelfDelegate directs the governance token's voting weight to this
// contract. Idempotent; call again whenever delegation needs
// re-establishing.
func (e *Engine) SelfDelegate() error {
	if err := e.token.Delegate(e.self); err != nil {
		return fmt.Errorf("self-delegate to %s: %w", e.self, err)
	}
	e.logger.Info("voting weight delegated to pool", "self", e.self)
	return nil
}

// ExpressVote records voter's one-shot preference on a proposal, weighted
// by the voter's raw balance at the proposal's decision snapshot.
// Preconditions, checked in order: positive historical balance, not voted
// before, valid support.
func (e *Engine) ExpressVote(voter common.Address, proposalID uint64, support Support) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.decisionSnapshot(proposalID)
	if err != nil {
		return err
	}
	weight := e.ledger.GetPastStoredBalance(voter, snap)
	if weight.IsZero() {
		return fmt.Errorf("express vote by %s on proposal %d: %w", voter, proposalID, ErrNoWeight)
	}
	key := votedKey{proposal: proposalID, account: voter}
	if _, ok := e.voted[key]; ok {
		return fmt.Errorf("express vote by %s on proposal %d: %w", voter, proposalID, ErrAlreadyVoted)
	}
	if !support.Valid() {
		return fmt.Errorf("express vote by %s on proposal %d: support=%d: %w", voter, proposalID, support, ErrInvalidSupport)
	}

	pv, ok := e.votes[proposalID]
	if !ok {
		pv = newProposalVote()
	}
	bucket := pv.bucket(support)
	next, overflow := new(uint256.Int).AddOverflow(bucket, weight)
	if overflow || next.Gt(maxUint128) {
		return fmt.Errorf("express vote by %s on proposal %d: accumulator: %w", voter, proposalID, ErrVoteOverflow)
	}

	// all checks passed, commit
	bucket.Set(next)
	e.votes[proposalID] = pv
	e.voted[key] = struct{}{}
	votesExpressed.Inc()
	e.logger.Debug("preference expressed", "voter", voter, "proposal", proposalID, "support", support, "weight", weight, "snapshot", snap)
	return nil
}

// HasVoted reports whether the account ever expressed a preference on the
// proposal. The flag survives rollups.
func (e *Engine) HasVoted(proposalID uint64, account common.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.voted[votedKey{proposal: proposalID, account: account}]
	return ok
}

// ProposalTally returns the raw-balance weight accumulated per bucket since
// the last rollup of the proposal.
func (e *Engine) ProposalTally(proposalID uint64) *ProposalVote {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pv, ok := e.votes[proposalID]; ok {
		return pv.clone()
	}
	return newProposalVote()
}

// CastVote rolls up the preferences accumulated since the previous rollup
// of this proposal and submits them as one fractional vote. Each bucket
// receives floor(pooledWeight * bucketRaw / totalRaw) of the pooled voting
// weight at the decision snapshot. Accumulators are cleared before
// submission and restored if the submission fails, so weight is never
// submitted twice and a failed call changes nothing. Callable by anyone,
// repeatedly.
func (e *Engine) CastVote(proposalID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pv, ok := e.votes[proposalID]
	if !ok || pv.Total().IsZero() {
		return fmt.Errorf("cast vote on proposal %d: %w", proposalID, ErrNoVotesExpressed)
	}

	snap, err := e.decisionSnapshot(proposalID)
	if err != nil {
		return err
	}
	totalRaw := e.ledger.GetPastTotalBalance(snap)
	pooled, err := e.token.GetPastVotingWeight(e.self, snap)
	if err != nil {
		return fmt.Errorf("cast vote on proposal %d: pooled weight: %w", proposalID, err)
	}
	if totalRaw.IsZero() {
		return fmt.Errorf("cast vote on proposal %d: %w", proposalID, ErrZeroTotalBalance)
	}

	against, err := scaleWeight(pooled, pv.Against, totalRaw)
	if err != nil {
		return fmt.Errorf("cast vote on proposal %d: against: %w", proposalID, err)
	}
	forVotes, err := scaleWeight(pooled, pv.For, totalRaw)
	if err != nil {
		return fmt.Errorf("cast vote on proposal %d: for: %w", proposalID, err)
	}
	abstain, err := scaleWeight(pooled, pv.Abstain, totalRaw)
	if err != nil {
		return fmt.Errorf("cast vote on proposal %d: abstain: %w", proposalID, err)
	}
	weights, err := EncodeVoteWeights(against, forVotes, abstain)
	if err != nil {
		return fmt.Errorf("cast vote on proposal %d: %w", proposalID, err)
	}

	// clear before submitting; the voted flags stay set forever
	cleared := pv.clone()
	pv.reset()
	if err := e.gov.SubmitFractionalVote(proposalID, SupportAgainst, castVoteReason, weights); err != nil {
		pv.Against.Set(cleared.Against)
		pv.For.Set(cleared.For)
		pv.Abstain.Set(cleared.Abstain)
		return fmt.Errorf("cast vote on proposal %d: submit: %w", proposalID, err)
	}
	rollupsSubmitted.Inc()
	e.logger.Info("fractional vote submitted",
		"proposal", proposalID, "snapshot", snap,
		"against", against, "for", forVotes, "abstain", abstain,
		"totalRaw", totalRaw, "pooled", pooled)
	return nil
}

// scaleWeight computes floor(pooled * bucket / total) with a 512-bit
// intermediate product; the result must fit the 128-bit cast-weight range.
func scaleWeight(pooled, bucket, total *uint256.Int) (*uint256.Int, error) {
	if bucket.IsZero() {
		return new(uint256.Int), nil
	}
	w, overflow := new(uint256.Int).MulDivOverflow(pooled, bucket, total)
	if overflow || w.Gt(maxUint128) {
		return nil, ErrVoteOverflow
	}
	return w, nil
}

func (e *Engine) decisionSnapshot(proposalID uint64) (uint64, error) {
	if snap, ok := e.snapshots.Get(proposalID); ok {
		return snap, nil
	}
	snap, err := e.gov.ProposalDecisionSnapshot(proposalID)
	if err != nil {
		return 0, fmt.Errorf("decision snapshot of proposal %d: %w", proposalID, err)
	}
	e.snapshots.Add(proposalID, snap)
	return snap, nil
}
