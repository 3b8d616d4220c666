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

// Package voting records depositor vote preferences weighted by historical
// raw balance and rolls them up into a single fractional vote submission:
// each preference bucket receives its proportional share of the voting
// weight pooled in the contract via self-delegation.
package voting

import (
	"errors"
	"fmt"
)

// Support is a vote preference, numbered the governance convention way.
type Support uint8

const (
	SupportAgainst Support = iota
	SupportFor
	SupportAbstain
)

// Valid reports whether s is one of the three defined preferences.
func (s Support) Valid() bool { return s <= SupportAbstain }

func (s Support) String() string {
	switch s {
	case SupportAgainst:
		return "against"
	case SupportFor:
		return "for"
	case SupportAbstain:
		return "abstain"
	default:
		return fmt.Sprintf("support(%d)", uint8(s))
	}
}

// ParseSupport converts a preference name to its Support value.
func ParseSupport(s string) (Support, error) {
	switch s {
	case "against":
		return SupportAgainst, nil
	case "for":
		return SupportFor, nil
	case "abstain":
		return SupportAbstain, nil
	default:
		return 0, fmt.Errorf("parse support %q: %w", s, ErrInvalidSupport)
	}
}

var (
	// ErrNoWeight rejects a voter with zero raw balance at the proposal's
	// decision snapshot.
	ErrNoWeight = errors.New("no raw balance at decision snapshot")
	// ErrAlreadyVoted rejects a second preference from the same account on
	// the same proposal; the one-shot flag is never cleared.
	ErrAlreadyVoted = errors.New("preference already expressed")
	// ErrInvalidSupport rejects a support value outside the defined set.
	ErrInvalidSupport = errors.New("invalid support value")
	// ErrNoVotesExpressed rejects a rollup with nothing accumulated since
	// the previous one.
	ErrNoVotesExpressed = errors.New("no preferences expressed")
	// ErrVoteOverflow rejects arithmetic that would exceed the 128-bit
	// accumulator or cast-weight range.
	ErrVoteOverflow = errors.New("vote weight overflow")
	// ErrZeroTotalBalance guards the proportional split against a zero
	// aggregate balance while a bucket is positive. Unreachable while the
	// express-vote precondition holds; kept so a broken invariant fails
	// loudly instead of dividing by zero.
	ErrZeroTotalBalance = errors.New("zero total raw balance with expressed preferences")
)
