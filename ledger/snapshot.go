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
	"fmt"

	"github.com/poolvote/poolvote/checkpoint"
	"github.com/poolvote/poolvote/common"
)

// AccountHistorySnapshot is one account's exported checkpoint history.
type AccountHistorySnapshot struct {
	Address common.Address     `json:"address"`
	History []checkpoint.Entry `json:"history"`
}

// Snapshot is the exported state of a Ledger: every account history in
// address order plus the aggregate history.
type Snapshot struct {
	Accounts []AccountHistorySnapshot `json:"accounts"`
	Total    []checkpoint.Entry       `json:"total"`
}

// Snapshot exports the ledger's checkpoint state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{
		Accounts: make([]AccountHistorySnapshot, 0, l.accounts.Len()),
		Total:    l.total.Entries(),
	}
	l.accounts.Scan(func(item *accountHistory) bool {
		snap.Accounts = append(snap.Accounts, AccountHistorySnapshot{
			Address: item.addr,
			History: item.hist.Entries(),
		})
		return true
	})
	return snap
}

// RestoreSnapshot replaces the ledger's checkpoint state with the given
// snapshot. The underlying share ledger is restored separately by the
// caller; histories and balances must come from the same export.
func (l *Ledger) RestoreSnapshot(snap Snapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total checkpoint.History
	if err := total.Restore(snap.Total); err != nil {
		return fmt.Errorf("restore aggregate history: %w", err)
	}
	restored := make([]*accountHistory, 0, len(snap.Accounts))
	for _, acc := range snap.Accounts {
		h := new(checkpoint.History)
		if err := h.Restore(acc.History); err != nil {
			return fmt.Errorf("restore history of %s: %w", acc.Address, err)
		}
		restored = append(restored, &accountHistory{addr: acc.Address, hist: h})
	}

	l.total = total
	l.accounts.Clear()
	for _, item := range restored {
		if _, replaced := l.accounts.Set(item); replaced {
			return fmt.Errorf("restore: duplicate account %s", item.addr)
		}
	}
	trackedAccounts.Set(float64(l.accounts.Len()))
	return nil
}
