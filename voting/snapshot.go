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
	"sort"

	"github.com/poolvote/poolvote/common"
)

// ProposalSnapshot is one proposal's exported accumulator state. Proposals
// whose accumulators were rolled up to zero are still exported; the key
// persisting with zero values is the same as "no votes expressed yet".
type ProposalSnapshot struct {
	Proposal uint64        `json:"proposal"`
	Votes    *ProposalVote `json:"votes"`
}

// VotedFlag marks that an account has expressed a preference on a proposal.
type VotedFlag struct {
	Proposal uint64         `json:"proposal"`
	Account  common.Address `json:"account"`
}

// Snapshot is the exported state of an Engine, deterministically ordered.
type Snapshot struct {
	Proposals []ProposalSnapshot `json:"proposals"`
	Voted     []VotedFlag        `json:"voted"`
}

// Snapshot exports the preference ledger.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Proposals: make([]ProposalSnapshot, 0, len(e.votes)),
		Voted:     make([]VotedFlag, 0, len(e.voted)),
	}
	for id, pv := range e.votes {
		snap.Proposals = append(snap.Proposals, ProposalSnapshot{Proposal: id, Votes: pv.clone()})
	}
	sort.Slice(snap.Proposals, func(i, j int) bool {
		return snap.Proposals[i].Proposal < snap.Proposals[j].Proposal
	})
	for key := range e.voted {
		snap.Voted = append(snap.Voted, VotedFlag{Proposal: key.proposal, Account: key.account})
	}
	sort.Slice(snap.Voted, func(i, j int) bool {
		a, b := snap.Voted[i], snap.Voted[j]
		if a.Proposal != b.Proposal {
			return a.Proposal < b.Proposal
		}
		return a.Account.Cmp(b.Account) < 0
	})
	return snap
}

// RestoreSnapshot replaces the preference ledger with the given snapshot.
func (e *Engine) RestoreSnapshot(snap Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	votes := make(map[uint64]*ProposalVote, len(snap.Proposals))
	for _, p := range snap.Proposals {
		if p.Votes == nil || p.Votes.Against == nil || p.Votes.For == nil || p.Votes.Abstain == nil {
			return fmt.Errorf("restore votes: proposal %d: missing bucket", p.Proposal)
		}
		if _, dup := votes[p.Proposal]; dup {
			return fmt.Errorf("restore votes: duplicate proposal %d", p.Proposal)
		}
		if p.Votes.Against.Gt(maxUint128) || p.Votes.For.Gt(maxUint128) || p.Votes.Abstain.Gt(maxUint128) {
			return fmt.Errorf("restore votes: proposal %d: %w", p.Proposal, ErrVoteOverflow)
		}
		votes[p.Proposal] = p.Votes.clone()
	}
	voted := make(map[votedKey]struct{}, len(snap.Voted))
	for _, f := range snap.Voted {
		voted[votedKey{proposal: f.Proposal, account: f.Account}] = struct{}{}
	}

	e.votes = votes
	e.voted = voted
	return nil
}
