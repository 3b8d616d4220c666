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

// Package ledger wraps an underlying share ledger and checkpoints every raw
// balance it touches: one history per account plus one aggregate history for
// the total. Checkpoints are the non-rebasing "shares" quantity only; yield
// accrual never enters a history, so historical proportions cannot be
// manipulated through rebasing.
package ledger

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"
	"github.com/tidwall/btree"

	"github.com/poolvote/poolvote/checkpoint"
	"github.com/poolvote/poolvote/common"
	"github.com/poolvote/poolvote/metrics"
)

var (
	checkpointsWritten = metrics.GetOrCreateCounter("poolvote_checkpoints_written")
	trackedAccounts    = metrics.GetOrCreateGauge("poolvote_tracked_accounts")
)

type accountHistory struct {
	addr common.Address
	hist *checkpoint.History
}

// Ledger decorates an Underlying with balance-history checkpointing. All
// three mutating hooks forward to the underlying and then checkpoint; reads
// of past balances never touch the underlying. Calls are serialized and
// atomic: every precondition is checked before the first write, so a failed
// call leaves no partial state.
type Ledger struct {
	mu         sync.Mutex
	underlying Underlying
	clock      SequenceClock
	logger     log.Logger

	accounts *btree.BTreeG[*accountHistory]
	total    checkpoint.History
}

func New(underlying Underlying, clock SequenceClock, logger log.Logger) *Ledger {
	return &Ledger{
		underlying: underlying,
		clock:      clock,
		logger:     logger,
		accounts: btree.NewBTreeG[*accountHistory](func(a, b *accountHistory) bool {
			return a.addr.Cmp(b.addr) < 0
		}),
	}
}

// Issue credits amount to account on the underlying ledger, then checkpoints
// the account's new raw balance and the grown aggregate total.
func (l *Ledger) Issue(account common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.clock.CurrentSequence()
	if err := l.checkSequence(account, seq); err != nil {
		return err
	}
	newTotal, overflow := new(uint256.Int).AddOverflow(l.total.Latest(), amount)
	if overflow {
		return fmt.Errorf("issue %s to %s: aggregate total: %w", amount, account, ErrBalanceOverflow)
	}
	if err := l.underlying.Issue(account, amount); err != nil {
		return err
	}
	if err := l.history(account).Push(seq, l.underlying.RawBalance(account)); err != nil {
		return err
	}
	if err := l.total.Push(seq, newTotal); err != nil {
		return err
	}
	checkpointsWritten.Add(2)
	l.logger.Debug("issuance checkpointed", "account", account, "amount", amount, "seq", seq, "total", newTotal)
	return nil
}

// Redeem debits amount from account on the underlying ledger, then
// checkpoints the account's new raw balance and the shrunk aggregate total.
// Fails with ErrInsufficientBalance when amount exceeds the current balance.
func (l *Ledger) Redeem(account common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.clock.CurrentSequence()
	if err := l.checkSequence(account, seq); err != nil {
		return err
	}
	if bal := l.underlying.RawBalance(account); bal.Lt(amount) {
		return fmt.Errorf("redeem %s from %s with balance %s: %w", amount, account, bal, ErrInsufficientBalance)
	}
	newTotal, underflow := new(uint256.Int).SubOverflow(l.total.Latest(), amount)
	if underflow {
		// conservation says this cannot happen if the account check passed
		return fmt.Errorf("redeem %s from %s: aggregate total %s: %w", amount, account, l.total.Latest(), ErrInsufficientBalance)
	}
	if err := l.underlying.Redeem(account, amount); err != nil {
		return err
	}
	if err := l.history(account).Push(seq, l.underlying.RawBalance(account)); err != nil {
		return err
	}
	if err := l.total.Push(seq, newTotal); err != nil {
		return err
	}
	checkpointsWritten.Add(2)
	l.logger.Debug("redemption checkpointed", "account", account, "amount", amount, "seq", seq, "total", newTotal)
	return nil
}

// Transfer moves amount between accounts on the underlying ledger, then
// checkpoints both new raw balances. The aggregate total is zero-sum under
// transfers and is not re-checkpointed.
func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.clock.CurrentSequence()
	if err := l.checkSequence(from, seq); err != nil {
		return err
	}
	if err := l.checkSequence(to, seq); err != nil {
		return err
	}
	if err := l.underlying.Transfer(from, to, amount); err != nil {
		return err
	}
	if err := l.history(from).Push(seq, l.underlying.RawBalance(from)); err != nil {
		return err
	}
	if err := l.history(to).Push(seq, l.underlying.RawBalance(to)); err != nil {
		return err
	}
	checkpointsWritten.Add(2)
	l.logger.Debug("transfer checkpointed", "from", from, "to", to, "amount", amount, "seq", seq)
	return nil
}

// RawBalance returns the account's current raw balance from the underlying
// ledger.
func (l *Ledger) RawBalance(account common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.underlying.RawBalance(account)
}

// GetPastStoredBalance returns the account's raw balance as of sequence seq,
// zero if the account had no checkpoint at or before seq.
func (l *Ledger) GetPastStoredBalance(account common.Address, seq uint64) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.accounts.Get(&accountHistory{addr: account}); ok {
		return h.hist.GetAtSequence(seq)
	}
	return new(uint256.Int)
}

// GetPastTotalBalance returns the aggregate raw balance as of sequence seq.
func (l *Ledger) GetPastTotalBalance(seq uint64) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total.GetAtSequence(seq)
}

// TotalRaw returns the current aggregate raw balance.
func (l *Ledger) TotalRaw() *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total.Latest()
}

// Accounts returns every account with a history, in address order.
func (l *Ledger) Accounts() []common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]common.Address, 0, l.accounts.Len())
	l.accounts.Scan(func(item *accountHistory) bool {
		out = append(out, item.addr)
		return true
	})
	return out
}

// history returns the account's checkpoint history, creating it on first
// use. Callers hold l.mu.
func (l *Ledger) history(account common.Address) *checkpoint.History {
	if item, ok := l.accounts.Get(&accountHistory{addr: account}); ok {
		return item.hist
	}
	item := &accountHistory{addr: account, hist: new(checkpoint.History)}
	l.accounts.Set(item)
	trackedAccounts.Set(float64(l.accounts.Len()))
	return item.hist
}

// checkSequence rejects a clock regression before any state is mutated, so
// the underlying ledger and the histories cannot diverge. Runs against the
// existing history only; a failed call must not create one.
func (l *Ledger) checkSequence(account common.Address, seq uint64) error {
	if item, ok := l.accounts.Get(&accountHistory{addr: account}); ok {
		if last, ok := item.hist.LatestSequence(); ok && seq < last {
			return fmt.Errorf("ledger: sequence clock regressed: last=%d, got=%d", last, seq)
		}
	}
	if last, ok := l.total.LatestSequence(); ok && seq < last {
		return fmt.Errorf("ledger: sequence clock regressed: total last=%d, got=%d", last, seq)
	}
	return nil
}
