// store.go - shared typed keyspace.
// Copyright (C) 2024  David Stainton.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package store implements the shared keyspace: typed values, the
// expiration index, pub/sub channels, user records, and replication
// state.  A single coarse mutex guards everything; handlers hold it only
// for their critical section and must release it before sleeping.
package store

import (
	"sync"
	"time"

	"gitlab.com/yawning/avl.git"

	"github.com/copperkv/copperd/internal/instrument"
)

type expiryEntry struct {
	at  time.Time
	key string
}

// Store is the process wide keyspace shared by every connection.
type Store struct {
	sync.Mutex

	Info Info

	kv          map[string]Value
	expiryTime  map[string]time.Time
	expiryQueue *avl.Tree

	// Channels holds the pub/sub fan-out per channel name.
	Channels map[string]*Channel

	// Broadcast carries the raw wire bytes of each write command to the
	// replica writer tasks (primary only).
	Broadcast *Broadcast

	// GetAck tells each replica writer task to emit a REPLCONF GETACK.
	GetAck *Broadcast

	// SlaveOffsets is the last acknowledged byte offset per replica.
	SlaveOffsets map[uint64]uint64

	// SlaveAskedOffsets debounces GETACK emission: the send offset at
	// which each replica was last asked for an ACK.
	SlaveAskedOffsets map[uint64]uint64

	// Users are the ACL records, keyed by username.
	Users map[string]*User

	nextSlaveID uint64
}

// New constructs an empty Store.
func New() *Store {
	s := &Store{
		kv:         make(map[string]Value),
		expiryTime: make(map[string]time.Time),
		expiryQueue: avl.New(func(a, b interface{}) int {
			ea, eb := a.(*expiryEntry), b.(*expiryEntry)
			switch {
			case ea.at.Before(eb.at):
				return -1
			case ea.at.After(eb.at):
				return 1
			case ea.key < eb.key:
				return -1
			case ea.key > eb.key:
				return 1
			default:
				return 0
			}
		}),
		Channels:          make(map[string]*Channel),
		Broadcast:         NewBroadcast(),
		GetAck:            NewBroadcast(),
		SlaveOffsets:      make(map[uint64]uint64),
		SlaveAskedOffsets: make(map[uint64]uint64),
		Users:             map[string]*User{"default": NewUser()},
	}
	return s
}

// Get returns the live value behind key.  The caller must hold the lock
// and must have called RemoveExpired first if stale reads matter.
func (s *Store) Get(key string) (Value, bool) {
	v, ok := s.kv[key]
	return v, ok
}

// Put stores a value, replacing whatever was there.
func (s *Store) Put(key string, v Value) {
	s.kv[key] = v
}

// Delete removes a key and any expiry entries for it, returning true when
// the key existed.
func (s *Store) Delete(key string) bool {
	if _, ok := s.kv[key]; !ok {
		return false
	}
	delete(s.kv, key)
	s.clearExpiry(key)
	return true
}

// Keys returns every live key.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.kv))
	for k := range s.kv {
		keys = append(keys, k)
	}
	return keys
}

// SetExpiry registers key to expire at the given deadline, replacing any
// prior deadline.  Both sides of the two-way index are updated together.
func (s *Store) SetExpiry(key string, at time.Time) {
	s.clearExpiry(key)
	s.expiryTime[key] = at
	s.expiryQueue.Insert(&expiryEntry{at: at, key: key})
}

// ClearExpiry drops any pending expiration for key.
func (s *Store) ClearExpiry(key string) {
	s.clearExpiry(key)
}

func (s *Store) clearExpiry(key string) {
	at, ok := s.expiryTime[key]
	if !ok {
		return
	}
	delete(s.expiryTime, key)
	if node := s.expiryQueue.Find(&expiryEntry{at: at, key: key}); node != nil {
		s.expiryQueue.Remove(node)
	}
}

// RemoveExpired lazily deletes every key whose deadline has passed.
// Handlers call this at the start of any read that could observe stale
// data.
func (s *Store) RemoveExpired() {
	now := time.Now()
	for {
		node := s.expiryQueue.First()
		if node == nil {
			break
		}
		e := node.Value.(*expiryEntry)
		if e.at.After(now) {
			break
		}
		s.expiryQueue.Remove(node)
		delete(s.expiryTime, e.key)
		delete(s.kv, e.key)
		instrument.KeysExpired()
	}
}

// NextSlaveID hands out a unique nonzero replica identifier.
func (s *Store) NextSlaveID() uint64 {
	s.nextSlaveID++
	return s.nextSlaveID
}
