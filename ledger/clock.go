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

package ledger

// SequenceClock is the global, strictly non-decreasing counter that stamps
// checkpoints (a chain block height in the source domain). All histories in
// one system share one clock, which is what makes "as of sequence S" queries
// consistent across accounts and the aggregate.
type SequenceClock interface {
	CurrentSequence() uint64
}

// ManualClock is a SequenceClock advanced explicitly by the caller. Used by
// tests and the simulator.
type ManualClock struct {
	seq uint64
}

// NewManualClock returns a clock starting at the given sequence number.
func NewManualClock(start uint64) *ManualClock {
	return &ManualClock{seq: start}
}

func (c *ManualClock) CurrentSequence() uint64 { return c.seq }

// Advance moves the clock forward by n steps.
func (c *ManualClock) Advance(n uint64) { c.seq += n }

// Set moves the clock to seq. Moving backwards is ignored; the counter is
// non-decreasing by contract.
func (c *ManualClock) Set(seq uint64) {
	if seq > c.seq {
		c.seq = seq
	}
}
