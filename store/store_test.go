// store_test.go - keyspace tests.
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

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExpiry(t *testing.T) {
	s := New()
	s.Lock()
	defer s.Unlock()

	s.Put("k", &StringValue{B: []byte("v")})
	s.SetExpiry("k", time.Now().Add(-time.Millisecond))
	s.Put("live", &StringValue{B: []byte("v")})

	s.RemoveExpired()
	_, ok := s.Get("k")
	require.False(t, ok)
	_, ok = s.Get("live")
	require.True(t, ok)
}

func TestExpiryReplaced(t *testing.T) {
	s := New()
	s.Lock()
	defer s.Unlock()

	// A SET without TTL clears a prior deadline.
	s.Put("k", &StringValue{B: []byte("v")})
	s.SetExpiry("k", time.Now().Add(-time.Millisecond))
	s.Put("k", &StringValue{B: []byte("v2")})
	s.ClearExpiry("k")

	s.RemoveExpired()
	v, ok := s.Get("k")
	require.True(t, ok)
	require.Equal(t, []byte("v2"), v.(*StringValue).B)
}

func TestExpirySameDeadline(t *testing.T) {
	s := New()
	s.Lock()
	defer s.Unlock()

	at := time.Now().Add(-time.Millisecond)
	s.Put("a", &StringValue{B: []byte("1")})
	s.Put("b", &StringValue{B: []byte("2")})
	s.SetExpiry("a", at)
	s.SetExpiry("b", at)

	s.RemoveExpired()
	require.Empty(t, s.Keys())
}

func TestDeleteClearsExpiry(t *testing.T) {
	s := New()
	s.Lock()
	defer s.Unlock()

	s.Put("k", &StringValue{B: []byte("v")})
	s.SetExpiry("k", time.Now().Add(time.Hour))
	require.True(t, s.Delete("k"))
	require.False(t, s.Delete("k"))

	// Reinserting under the old key must not inherit the deadline.
	s.Put("k", &StringValue{B: []byte("v2")})
	s.RemoveExpired()
	_, ok := s.Get("k")
	require.True(t, ok)
}

func TestNextSlaveID(t *testing.T) {
	s := New()
	a := s.NextSlaveID()
	b := s.NextSlaveID()
	require.NotZero(t, a)
	require.NotEqual(t, a, b)
}

func TestUserPasswords(t *testing.T) {
	u := NewUser()
	require.Contains(t, u.Flags, "nopass")

	u.AddPassword("hunter2")
	require.NotContains(t, u.Flags, "nopass")
	require.Len(t, u.Passwords, 1)
	require.Equal(t, HashPassword("hunter2"), u.Passwords[0])
	require.True(t, u.CheckPassword("hunter2"))
	require.False(t, u.CheckPassword("hunter3"))
}

func TestBroadcastFanout(t *testing.T) {
	b := NewBroadcast()
	id1, ch1 := b.Subscribe()
	_, ch2 := b.Subscribe()

	b.Send([]byte("x"))
	require.Equal(t, []byte("x"), (<-ch1.Out()).([]byte))
	require.Equal(t, []byte("x"), (<-ch2.Out()).([]byte))

	b.Unsubscribe(id1)
	b.Send([]byte("y"))
	require.Equal(t, []byte("y"), (<-ch2.Out()).([]byte))
	_, ok := <-ch1.Out()
	require.False(t, ok)
}

func TestChannelReceivers(t *testing.T) {
	c := NewChannel()
	require.Equal(t, 0, c.Receivers())

	id, ring := c.Subscribe()
	require.Equal(t, 1, c.Publish("hello"))
	require.Equal(t, "hello", (<-ring.Out()).(string))

	c.Unsubscribe(id)
	require.Equal(t, 0, c.Publish("bye"))
}

func TestInfoString(t *testing.T) {
	i := &Info{
		Role:             RoleMaster,
		MasterID:         "abc123",
		SendOffset:       7,
		ConnectedClients: 2,
	}
	require.Equal(t, "# Clients\nconnected_clients:2\n# Replication\nrole:master\nmaster_replid:abc123\nmaster_repl_offset:7\n", i.String())

	i.Role = RoleSlave
	i.RecvOffset = 3
	require.Contains(t, i.String(), "role:slave\n")
	require.Contains(t, i.String(), "master_repl_offset:3\n")
}

func TestNewReplicationID(t *testing.T) {
	id := NewReplicationID()
	require.Len(t, id, 40)
	require.NotEqual(t, id, NewReplicationID())
}
