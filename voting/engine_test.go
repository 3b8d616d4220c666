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
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/poolvote/poolvote/common"
	"github.com/poolvote/poolvote/ledger"
)

var (
	poolAddr = common.HexToAddress("0x000000000000000000000000000000000000face")
	voterA   = common.HexToAddress("0xa000000000000000000000000000000000000001")
	voterB   = common.HexToAddress("0xb000000000000000000000000000000000000002")
	voterC   = common.HexToAddress("0xc000000000000000000000000000000000000003")
)

type submission struct {
	proposal uint64
	support  Support
	reason   string
	weights  []byte
}

type stubGov struct {
	snapshots     map[uint64]uint64
	snapshotCalls int
	submitErr     error
	submissions   []submission
}

func (g *stubGov) ProposalDecisionSnapshot(proposalID uint64) (uint64, error) {
	g.snapshotCalls++
	snap, ok := g.snapshots[proposalID]
	if !ok {
		return 0, errors.New("unknown proposal")
	}
	return snap, nil
}

func (g *stubGov) SubmitFractionalVote(proposalID uint64, support Support, reason string, weights []byte) error {
	if g.submitErr != nil {
		return g.submitErr
	}
	g.submissions = append(g.submissions, submission{proposal: proposalID, support: support, reason: reason, weights: weights})
	return nil
}

type stubToken struct {
	pooled      map[uint64]*uint256.Int // seq -> weight delegated to the pool
	delegations []common.Address
}

func (tk *stubToken) GetPastVotingWeight(holder common.Address, seq uint64) (*uint256.Int, error) {
	if holder != poolAddr {
		return new(uint256.Int), nil
	}
	if w, ok := tk.pooled[seq]; ok {
		return w.Clone(), nil
	}
	return new(uint256.Int), nil
}

func (tk *stubToken) Delegate(delegatee common.Address) error {
	tk.delegations = append(tk.delegations, delegatee)
	return nil
}

type fixture struct {
	clock *ledger.ManualClock
	led   *ledger.Ledger
	gov   *stubGov
	token *stubToken
	eng   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := ledger.NewManualClock(100)
	led := ledger.New(ledger.NewMemLedger(), clock, log.New("test", t.Name()))
	gov := &stubGov{snapshots: make(map[uint64]uint64)}
	token := &stubToken{pooled: make(map[uint64]*uint256.Int)}
	eng, err := NewEngine(poolAddr, led, gov, token, log.New("test", t.Name()))
	require.NoError(t, err)
	return &fixture{clock: clock, led: led, gov: gov, token: token, eng: eng}
}

func (f *fixture) lastWeights(t *testing.T) (against, forVotes, abstain *uint256.Int) {
	t.Helper()
	require.NotEmpty(t, f.gov.submissions)
	last := f.gov.submissions[len(f.gov.submissions)-1]
	against, forVotes, abstain, err := DecodeVoteWeights(last.weights)
	require.NoError(t, err)
	return against, forVotes, abstain
}

func TestExpressVotePreconditionOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.gov.snapshots[1] = 100
	require.NoError(t, f.led.Issue(voterA, uint256.NewInt(50)))
	f.clock.Advance(1)

	// zero historical balance wins over everything, even invalid support
	err := f.eng.ExpressVote(voterB, 1, Support(9))
	require.ErrorIs(t, err, ErrNoWeight)

	// funded voter, invalid support
	err = f.eng.ExpressVote(voterA, 1, Support(3))
	require.ErrorIs(t, err, ErrInvalidSupport)
	require.False(t, f.eng.HasVoted(1, voterA))

	require.NoError(t, f.eng.ExpressVote(voterA, 1, SupportFor))
	require.True(t, f.eng.HasVoted(1, voterA))

	// already-voted wins over invalid support on the second call
	err = f.eng.ExpressVote(voterA, 1, Support(7))
	require.ErrorIs(t, err, ErrAlreadyVoted)
	err = f.eng.ExpressVote(voterA, 1, SupportAgainst)
	require.ErrorIs(t, err, ErrAlreadyVoted)

	tally := f.eng.ProposalTally(1)
	require.Equal(t, uint256.NewInt(50), tally.For)
	require.True(t, tally.Against.IsZero())
	require.True(t, tally.Abstain.IsZero())
}

func TestExpressVoteWeighsSnapshotBalance(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.gov.snapshots[1] = 100
	require.NoError(t, f.led.Issue(voterA, uint256.NewInt(70)))
	f.clock.Advance(5)
	// post-snapshot changes do not count
	require.NoError(t, f.led.Issue(voterA, uint256.NewInt(1000)))
	require.NoError(t, f.led.Issue(voterB, uint256.NewInt(1000)))

	require.NoError(t, f.eng.ExpressVote(voterA, 1, SupportAbstain))
	require.Equal(t, uint256.NewInt(70), f.eng.ProposalTally(1).Abstain)

	// voterB was funded only after the decision snapshot
	err := f.eng.ExpressVote(voterB, 1, SupportFor)
	require.ErrorIs(t, err, ErrNoWeight)
}

func TestCastVoteProportionalSplit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.gov.snapshots[1] = 100
	require.NoError(t, f.led.Issue(voterA, uint256.NewInt(60)))
	require.NoError(t, f.led.Issue(voterB, uint256.NewInt(40)))
	f.token.pooled[100] = uint256.NewInt(100)
	f.clock.Advance(1)

	require.NoError(t, f.eng.ExpressVote(voterA, 1, SupportFor))
	require.NoError(t, f.eng.ExpressVote(voterB, 1, SupportAgainst))
	require.NoError(t, f.eng.CastVote(1))

	against, forVotes, abstain := f.lastWeights(t)
	require.Equal(t, uint256.NewInt(40), against)
	require.Equal(t, uint256.NewInt(60), forVotes)
	require.True(t, abstain.IsZero())

	last := f.gov.submissions[len(f.gov.submissions)-1]
	require.Equal(t, uint64(1), last.proposal)
	require.Equal(t, SupportAgainst, last.support) // placeholder, ignored by the governor
	require.NotEmpty(t, last.reason)

	// accumulators were cleared by the rollup
	require.True(t, f.eng.ProposalTally(1).Total().IsZero())
	// but the voted flags persist
	require.True(t, f.eng.HasVoted(1, voterA))
	require.ErrorIs(t, f.eng.ExpressVote(voterA, 1, SupportFor), ErrAlreadyVoted)
}

func TestCastVoteFloorsDivision(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.gov.snapshots[1] = 100
	for _, v := range []common.Address{voterA, voterB, voterC} {
		require.NoError(t, f.led.Issue(v, uint256.NewInt(1)))
	}
	f.token.pooled[100] = uint256.NewInt(100)
	f.clock.Advance(1)

	require.NoError(t, f.eng.ExpressVote(voterA, 1, SupportFor))
	require.NoError(t, f.eng.CastVote(1))

	_, forVotes, _ := f.lastWeights(t)
	require.Equal(t, uint256.NewInt(33), forVotes) // floor(100 * 1 / 3)
}

func TestCastVoteNoVotesExpressed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.gov.snapshots[1] = 100
	require.ErrorIs(t, f.eng.CastVote(1), ErrNoVotesExpressed)

	require.NoError(t, f.led.Issue(voterA, uint256.NewInt(10)))
	f.token.pooled[100] = uint256.NewInt(10)
	f.clock.Advance(1)
	require.NoError(t, f.eng.ExpressVote(voterA, 1, SupportFor))
	require.NoError(t, f.eng.CastVote(1))

	// nothing accumulated since the rollup
	require.ErrorIs(t, f.eng.CastVote(1), ErrNoVotesExpressed)
	require.Len(t, f.gov.submissions, 1)
}

func TestRollupOnlyCountsNewPreferences(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.gov.snapshots[1] = 100
	require.NoError(t, f.led.Issue(voterA, uint256.NewInt(30)))
	require.NoError(t, f.led.Issue(voterB, uint256.NewInt(20)))
	require.NoError(t, f.led.Issue(voterC, uint256.NewInt(50)))
	// pooled weight mirrors the deposited total after self-delegation
	f.token.pooled[100] = uint256.NewInt(100)
	f.clock.Advance(1)

	require.NoError(t, f.eng.ExpressVote(voterA, 1, SupportFor))
	require.NoError(t, f.eng.CastVote(1))
	require.NoError(t, f.eng.ExpressVote(voterB, 1, SupportFor))
	require.NoError(t, f.eng.CastVote(1))

	require.Len(t, f.gov.submissions, 2)
	_, first, _, err := DecodeVoteWeights(f.gov.submissions[0].weights)
	require.NoError(t, err)
	_, second, _, err := DecodeVoteWeights(f.gov.submissions[1].weights)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(30), first)
	require.Equal(t, uint256.NewInt(20), second)

	// total submitted never exceeds total expressed
	sum := new(uint256.Int).Add(first, second)
	require.Equal(t, uint256.NewInt(50), sum)
}

func TestCastVoteSubmitFailureRestoresAccumulators(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.gov.snapshots[1] = 100
	require.NoError(t, f.led.Issue(voterA, uint256.NewInt(25)))
	f.token.pooled[100] = uint256.NewInt(25)
	f.clock.Advance(1)
	require.NoError(t, f.eng.ExpressVote(voterA, 1, SupportAgainst))

	f.gov.submitErr = errors.New("governor unavailable")
	require.Error(t, f.eng.CastVote(1))
	require.Equal(t, uint256.NewInt(25), f.eng.ProposalTally(1).Against)

	// retry after the collaborator recovers
	f.gov.submitErr = nil
	require.NoError(t, f.eng.CastVote(1))
	require.Len(t, f.gov.submissions, 1)
	against, _, _ := f.lastWeights(t)
	require.Equal(t, uint256.NewInt(25), against)
}

func TestCastVoteZeroTotalInvariant(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	// snapshot predates any issuance, so the aggregate history reads zero;
	// a positive bucket can only exist here if the express-vote invariant
	// was broken, which is what the defensive error reports
	f.gov.snapshots[9] = 50
	f.eng.votes[9] = &ProposalVote{
		Against: new(uint256.Int),
		For:     uint256.NewInt(10),
		Abstain: new(uint256.Int),
	}
	require.ErrorIs(t, f.eng.CastVote(9), ErrZeroTotalBalance)
}

func TestExpressVoteAccumulatorOverflow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.gov.snapshots[1] = 100
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 127)
	require.NoError(t, f.led.Issue(voterA, huge))
	require.NoError(t, f.led.Issue(voterB, huge))
	f.clock.Advance(1)

	require.NoError(t, f.eng.ExpressVote(voterA, 1, SupportFor))
	err := f.eng.ExpressVote(voterB, 1, SupportFor)
	require.ErrorIs(t, err, ErrVoteOverflow)

	// the failed call left no partial state: the flag is unset and the
	// bucket still holds only voterA's weight
	require.False(t, f.eng.HasVoted(1, voterB))
	require.Equal(t, huge, f.eng.ProposalTally(1).For)
}

func TestCastWeightExceedsRange(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.gov.snapshots[1] = 100
	require.NoError(t, f.led.Issue(voterA, uint256.NewInt(1)))
	f.token.pooled[100] = new(uint256.Int).Lsh(uint256.NewInt(1), 129)
	f.clock.Advance(1)

	require.NoError(t, f.eng.ExpressVote(voterA, 1, SupportFor))
	require.ErrorIs(t, f.eng.CastVote(1), ErrVoteOverflow)
}

func TestDecisionSnapshotCached(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.gov.snapshots[1] = 100
	require.NoError(t, f.led.Issue(voterA, uint256.NewInt(10)))
	require.NoError(t, f.led.Issue(voterB, uint256.NewInt(10)))
	f.token.pooled[100] = uint256.NewInt(20)
	f.clock.Advance(1)

	require.NoError(t, f.eng.ExpressVote(voterA, 1, SupportFor))
	require.NoError(t, f.eng.ExpressVote(voterB, 1, SupportAgainst))
	require.NoError(t, f.eng.CastVote(1))
	require.Equal(t, 1, f.gov.snapshotCalls)
}

func TestSelfDelegate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.eng.SelfDelegate())
	require.NoError(t, f.eng.SelfDelegate())
	require.Equal(t, []common.Address{poolAddr, poolAddr}, f.token.delegations)
}

func TestEngineSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.gov.snapshots[1] = 100
	f.gov.snapshots[2] = 100
	require.NoError(t, f.led.Issue(voterA, uint256.NewInt(10)))
	require.NoError(t, f.led.Issue(voterB, uint256.NewInt(5)))
	f.clock.Advance(1)
	require.NoError(t, f.eng.ExpressVote(voterA, 1, SupportFor))
	require.NoError(t, f.eng.ExpressVote(voterB, 2, SupportAbstain))

	snap := f.eng.Snapshot()
	require.Len(t, snap.Proposals, 2)
	require.Len(t, snap.Voted, 2)

	other := newFixture(t)
	other.gov.snapshots[1] = 100
	require.NoError(t, other.led.Issue(voterA, uint256.NewInt(10)))
	other.clock.Advance(1)
	require.NoError(t, other.eng.RestoreSnapshot(snap))

	require.True(t, other.eng.HasVoted(1, voterA))
	require.True(t, other.eng.HasVoted(2, voterB))
	require.Equal(t, uint256.NewInt(10), other.eng.ProposalTally(1).For)
	require.ErrorIs(t, other.eng.ExpressVote(voterA, 1, SupportFor), ErrAlreadyVoted)
}
