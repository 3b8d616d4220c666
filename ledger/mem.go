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

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/poolvote/poolvote/common"
)

var (
	// ErrInsufficientBalance is returned when a redeem or transfer exceeds
	// the account's current raw balance.
	ErrInsufficientBalance = errors.New("insufficient raw balance")
	// ErrBalanceOverflow is returned when an issue or transfer would push a
	// balance past the 256-bit range.
	ErrBalanceOverflow = errors.New("raw balance overflow")
)

// Underlying is the deposit protocol's share accounting, holding the
// non-rebasing "raw" balances the checkpoint layer observes. The Ledger
// wraps an Underlying and adds checkpointing; it never does the balance
// arithmetic itself.
type Underlying interface {
	Issue(account common.Address, amount *uint256.Int) error
	Redeem(account common.Address, amount *uint256.Int) error
	Transfer(from, to common.Address, amount *uint256.Int) error
	RawBalance(account common.Address) *uint256.Int
}

// MemLedger is the bundled in-memory Underlying. Not goroutine-safe; the
// wrapping Ledger serializes access.
type MemLedger struct {
	balances map[common.Address]*uint256.Int
}

func NewMemLedger() *MemLedger {
	return &MemLedger{balances: make(map[common.Address]*uint256.Int)}
}

func (m *MemLedger) Issue(account common.Address, amount *uint256.Int) error {
	bal := m.balance(account)
	next, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return fmt.Errorf("issue %s to %s: %w", amount, account, ErrBalanceOverflow)
	}
	m.balances[account] = next
	return nil
}

func (m *MemLedger) Redeem(account common.Address, amount *uint256.Int) error {
	bal := m.balance(account)
	if bal.Lt(amount) {
		return fmt.Errorf("redeem %s from %s with balance %s: %w", amount, account, bal, ErrInsufficientBalance)
	}
	m.balances[account] = new(uint256.Int).Sub(bal, amount)
	return nil
}

func (m *MemLedger) Transfer(from, to common.Address, amount *uint256.Int) error {
	fromBal := m.balance(from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("transfer %s from %s with balance %s: %w", amount, from, fromBal, ErrInsufficientBalance)
	}
	if from == to {
		return nil
	}
	toNext, overflow := new(uint256.Int).AddOverflow(m.balance(to), amount)
	if overflow {
		return fmt.Errorf("transfer %s to %s: %w", amount, to, ErrBalanceOverflow)
	}
	m.balances[from] = new(uint256.Int).Sub(fromBal, amount)
	m.balances[to] = toNext
	return nil
}

func (m *MemLedger) RawBalance(account common.Address) *uint256.Int {
	return m.balance(account).Clone()
}

func (m *MemLedger) balance(account common.Address) *uint256.Int {
	if b, ok := m.balances[account]; ok {
		return b
	}
	return new(uint256.Int)
}

// AccountBalance is one (account, raw balance) pair of a MemLedger snapshot.
type AccountBalance struct {
	Address common.Address `json:"address"`
	Balance *uint256.Int   `json:"balance"`
}

// Balances exports all non-zero balances, unordered.
func (m *MemLedger) Balances() []AccountBalance {
	out := make([]AccountBalance, 0, len(m.balances))
	for addr, bal := range m.balances {
		if bal.IsZero() {
			continue
		}
		out = append(out, AccountBalance{Address: addr, Balance: bal.Clone()})
	}
	return out
}

// RestoreBalances replaces the ledger content with the given balances.
func (m *MemLedger) RestoreBalances(balances []AccountBalance) error {
	restored := make(map[common.Address]*uint256.Int, len(balances))
	for _, b := range balances {
		if b.Balance == nil {
			return fmt.Errorf("restore balances: nil balance for %s", b.Address)
		}
		if _, dup := restored[b.Address]; dup {
			return fmt.Errorf("restore balances: duplicate account %s", b.Address)
		}
		restored[b.Address] = b.Balance.Clone()
	}
	m.balances = restored
	return nil
}
