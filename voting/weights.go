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

	"github.com/holiman/uint256"
)

// Vote accumulators and cast weights are bounded to 128 bits; the wire
// encoding below and the governance collaborator both assume that width.
// Intermediate rollup arithmetic runs at full 256-bit width.
const weightBytes = 16

// EncodedWeightsLen is the length of a fractional-vote weight payload:
// three 16-byte big-endian weights, concatenated with no delimiters.
const EncodedWeightsLen = 3 * weightBytes

var maxUint128 = uint256.MustFromHex("0xffffffffffffffffffffffffffffffff")

// EncodeVoteWeights packs the three weights in (against, for, abstain)
// order, each 16 bytes big-endian.
func EncodeVoteWeights(against, forVotes, abstain *uint256.Int) ([]byte, error) {
	out := make([]byte, EncodedWeightsLen)
	for i, w := range []*uint256.Int{against, forVotes, abstain} {
		if w.Gt(maxUint128) {
			return nil, fmt.Errorf("encode weight %s: %w", w, ErrVoteOverflow)
		}
		b := w.Bytes32()
		copy(out[i*weightBytes:], b[32-weightBytes:])
	}
	return out, nil
}

// DecodeVoteWeights unpacks a payload produced by EncodeVoteWeights.
func DecodeVoteWeights(data []byte) (against, forVotes, abstain *uint256.Int, err error) {
	if len(data) != EncodedWeightsLen {
		return nil, nil, nil, fmt.Errorf("decode weights: want %d bytes, got %d", EncodedWeightsLen, len(data))
	}
	weights := make([]*uint256.Int, 3)
	for i := range weights {
		weights[i] = new(uint256.Int).SetBytes(data[i*weightBytes : (i+1)*weightBytes])
	}
	return weights[0], weights[1], weights[2], nil
}
