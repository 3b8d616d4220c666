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

// Package store persists the full checkpoint-and-vote state as a JSON
// snapshot in a lock-guarded data directory, so a simulator or service can
// resume where it stopped.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	jsoniter "github.com/json-iterator/go"
	"github.com/ledgerwatch/log/v3"

	"github.com/poolvote/poolvote/ledger"
	"github.com/poolvote/poolvote/voting"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoState is returned by Load when the data directory holds no snapshot
// yet.
var ErrNoState = errors.New("no persisted state")

// ErrLocked is returned by Open when another process holds the directory
// lock.
var ErrLocked = errors.New("datadir in use")

const (
	stateFile = "state.json"
	lockFile  = "LOCK"
)

// State is everything needed to rebuild a system: the sequence clock
// position, the underlying share balances, both checkpoint ledgers and the
// vote preference ledger.
type State struct {
	Sequence uint64                  `json:"sequence"`
	Balances []ledger.AccountBalance `json:"balances"`
	Ledger   ledger.Snapshot         `json:"ledger"`
	Votes    voting.Snapshot         `json:"votes"`
}

// Store owns a data directory. Opening it takes an exclusive flock that is
// held until Close.
type Store struct {
	dir    string
	lock   *flock.Flock
	logger log.Logger
}

// Open creates the data directory if needed and acquires its lock.
func Open(dir string, logger log.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create datadir %s: %w", dir, err)
	}
	lock := flock.New(filepath.Join(dir, lockFile))
	held, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock datadir %s: %w", dir, err)
	}
	if !held {
		return nil, fmt.Errorf("lock datadir %s: %w", dir, ErrLocked)
	}
	return &Store{dir: dir, lock: lock, logger: logger}, nil
}

// Save writes the state snapshot atomically (temp file plus rename).
func (s *Store) Save(state *State) error {
	blob, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, stateFile+".tmp.*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, stateFile)); err != nil {
		return err
	}
	s.logger.Debug("state saved", "dir", s.dir, "bytes", len(blob), "seq", state.Sequence)
	return nil
}

// Load reads the persisted state snapshot, ErrNoState if none exists.
func (s *Store) Load() (*State, error) {
	blob, err := os.ReadFile(filepath.Join(s.dir, stateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoState
		}
		return nil, err
	}
	state := new(State)
	if err := json.Unmarshal(blob, state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return state, nil
}

// Close releases the directory lock.
func (s *Store) Close() error {
	return s.lock.Unlock()
}
