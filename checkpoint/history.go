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

// Package checkpoint implements an append-only history of (sequence, value)
// pairs with binary-searchable "value as of sequence S" lookups. Sequence
// numbers come from a global non-decreasing counter (block height), so a
// history answers historical balance queries consistently with every other
// history stamped by the same counter.
package checkpoint

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"
)

// Entry is a single recorded (sequence, value) pair.
type Entry struct {
	Sequence uint64       `json:"sequence"`
	Value    *uint256.Int `json:"value"`
}

// History is an ordered log of checkpoints. Sequence numbers are strictly
// increasing in append order; a push at the latest recorded sequence
// overwrites that entry's value in place, so multiple updates within one
// sequence step collapse to the last value. Entries are never truncated.
//
// The zero value is an empty history ready for use. History is not
// goroutine-safe; callers serialize access (the Ledger holds the lock).
type History struct {
	entries []Entry
}

// Push records value at the given sequence number. Pushing at the latest
// recorded sequence overwrites; pushing at an earlier sequence is a caller
// bug and is rejected.
func (h *History) Push(seq uint64, value *uint256.Int) error {
	if n := len(h.entries); n > 0 {
		last := &h.entries[n-1]
		if seq < last.Sequence {
			return fmt.Errorf("checkpoint: sequence regressed: last=%d, got=%d", last.Sequence, seq)
		}
		if seq == last.Sequence {
			last.Value = value.Clone()
			return nil
		}
	}
	h.entries = append(h.entries, Entry{Sequence: seq, Value: value.Clone()})
	return nil
}

// Latest returns the most recently recorded value, or zero for an empty
// history.
func (h *History) Latest() *uint256.Int {
	if len(h.entries) == 0 {
		return new(uint256.Int)
	}
	return h.entries[len(h.entries)-1].Value.Clone()
}

// LatestSequence returns the sequence number of the most recent entry and
// whether the history is non-empty.
func (h *History) LatestSequence() (uint64, bool) {
	if len(h.entries) == 0 {
		return 0, false
	}
	return h.entries[len(h.entries)-1].Sequence, true
}

// GetAtSequence returns the value of the greatest recorded sequence <= seq,
// or zero if no such entry exists. Lookups are dominated by queries near the
// tail, so the last entry is checked before falling back to binary search;
// the result is identical either way.
func (h *History) GetAtSequence(seq uint64) *uint256.Int {
	n := len(h.entries)
	if n == 0 || seq < h.entries[0].Sequence {
		return new(uint256.Int)
	}
	if h.entries[n-1].Sequence <= seq {
		return h.entries[n-1].Value.Clone()
	}
	// first entry past seq; the answer is the one before it
	i := sort.Search(n, func(i int) bool { return h.entries[i].Sequence > seq })
	return h.entries[i-1].Value.Clone()
}

// Len returns the number of recorded entries.
func (h *History) Len() int { return len(h.entries) }

// Entries returns a copy of the recorded entries, oldest first. Used for
// snapshot export.
func (h *History) Entries() []Entry {
	out := make([]Entry, len(h.entries))
	for i, e := range h.entries {
		out[i] = Entry{Sequence: e.Sequence, Value: e.Value.Clone()}
	}
	return out
}

// Restore replaces the history with the given entries, validating the
// strictly-increasing sequence invariant. Used for snapshot import.
func (h *History) Restore(entries []Entry) error {
	restored := make([]Entry, 0, len(entries))
	for i, e := range entries {
		if e.Value == nil {
			return fmt.Errorf("checkpoint: restore: nil value at index %d", i)
		}
		if i > 0 && e.Sequence <= entries[i-1].Sequence {
			return fmt.Errorf("checkpoint: restore: sequence not increasing at index %d: %d <= %d", i, e.Sequence, entries[i-1].Sequence)
		}
		restored = append(restored, Entry{Sequence: e.Sequence, Value: e.Value.Clone()})
	}
	h.entries = restored
	return nil
}
