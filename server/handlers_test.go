// handlers_test.go - data type handler tests.
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

package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/copperkv/copperd/frame"
)

func TestListOps(t *testing.T) {
	c := newTestConn(t)

	require.Equal(t, ":2\r\n", string(send(t, c, "RPUSH", "l", "a", "b")))
	require.Equal(t, ":3\r\n", string(send(t, c, "LPUSH", "l", "z")))
	require.Equal(t, ":3\r\n", string(send(t, c, "LLEN", "l")))
	require.Equal(t, "*3\r\n$1\r\nz\r\n$1\r\na\r\n$1\r\nb\r\n", string(send(t, c, "LRANGE", "l", "0", "-1")))
	require.Equal(t, "$1\r\nz\r\n", string(send(t, c, "LPOP", "l")))
	require.Equal(t, "*2\r\n$1\r\na\r\n$1\r\nb\r\n", string(send(t, c, "LPOP", "l", "2")))
	require.Equal(t, "$-1\r\n", string(send(t, c, "LPOP", "l")))
	require.Equal(t, ":0\r\n", string(send(t, c, "LLEN", "missing")))
}

func TestBLPopImmediate(t *testing.T) {
	c := newTestConn(t)
	send(t, c, "RPUSH", "q", "job")
	require.Equal(t, "*2\r\n$1\r\nq\r\n$3\r\njob\r\n", string(send(t, c, "BLPOP", "q", "1")))
}

func TestBLPopTimeout(t *testing.T) {
	c := newTestConn(t)
	start := time.Now()
	require.Equal(t, "*-1\r\n", string(send(t, c, "BLPOP", "empty", "0.05")))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestBLPopWakesOnPush(t *testing.T) {
	c := newTestConn(t)
	pusher := newTestConn(t)
	pusher.st = c.st

	go func() {
		time.Sleep(20 * time.Millisecond)
		f := frame.NewStringArray("RPUSH", "wq", "x")
		pusher.onFrame(f, f.Encode())
	}()
	require.Equal(t, "*2\r\n$2\r\nwq\r\n$1\r\nx\r\n", string(send(t, c, "BLPOP", "wq", "1")))
}

func TestXRangeBounds(t *testing.T) {
	c := newTestConn(t)
	send(t, c, "XADD", "s", "1-1", "a", "1")
	send(t, c, "XADD", "s", "1-2", "b", "2")
	send(t, c, "XADD", "s", "2-0", "c", "3")

	// Inclusive on both sides, "-"/"+" denote the extremes.
	reply := string(send(t, c, "XRANGE", "s", "-", "+"))
	require.Contains(t, reply, "1-1")
	require.Contains(t, reply, "2-0")

	// A bare ms expands to <ms>-0 at the start and <ms>-MAX at the end.
	reply = string(send(t, c, "XRANGE", "s", "1", "1"))
	require.Contains(t, reply, "1-1")
	require.Contains(t, reply, "1-2")
	require.NotContains(t, reply, "2-0")

	require.Equal(t, ":3\r\n", string(send(t, c, "XLEN", "s")))
	require.Equal(t, ":1\r\n", string(send(t, c, "XDEL", "s", "1-2", "9-9")))
	require.Equal(t, ":2\r\n", string(send(t, c, "XLEN", "s")))
}

func TestXReadImmediate(t *testing.T) {
	c := newTestConn(t)
	send(t, c, "XADD", "s", "1-1", "f", "v")
	send(t, c, "XADD", "s", "2-1", "g", "w")

	reply := string(send(t, c, "XREAD", "STREAMS", "s", "1-1"))
	require.NotContains(t, reply, "1-1") // strictly after the given ID
	require.Contains(t, reply, "2-1")

	// Nothing new: null array.
	require.Equal(t, "*-1\r\n", string(send(t, c, "XREAD", "STREAMS", "s", "2-1")))
}

func TestXReadBlockWakes(t *testing.T) {
	c := newTestConn(t)
	adder := newTestConn(t)
	adder.st = c.st

	send(t, c, "XADD", "s", "1-1", "f", "v")
	go func() {
		time.Sleep(20 * time.Millisecond)
		f := frame.NewStringArray("XADD", "s", "2-1", "g", "w")
		adder.onFrame(f, f.Encode())
	}()

	reply := string(send(t, c, "XREAD", "BLOCK", "500", "STREAMS", "s", "$"))
	require.Contains(t, reply, "2-1")
}

func TestXReadBlockTimeout(t *testing.T) {
	c := newTestConn(t)
	send(t, c, "XADD", "s", "1-1", "f", "v")
	require.Equal(t, "*-1\r\n", string(send(t, c, "XREAD", "BLOCK", "50", "STREAMS", "s", "$")))
}

func TestZSetOps(t *testing.T) {
	c := newTestConn(t)

	require.Equal(t, ":2\r\n", string(send(t, c, "ZADD", "z", "1", "a", "2", "b")))
	// Updating a score adds nothing.
	require.Equal(t, ":0\r\n", string(send(t, c, "ZADD", "z", "3", "a")))
	require.Equal(t, ":2\r\n", string(send(t, c, "ZCARD", "z")))
	require.Equal(t, "*2\r\n$1\r\nb\r\n$1\r\na\r\n", string(send(t, c, "ZRANGE", "z", "0", "-1")))
	require.Equal(t, ":1\r\n", string(send(t, c, "ZCOUNT", "z", "0", "2")))
	require.Equal(t, ":0\r\n", string(send(t, c, "ZRANK", "z", "b")))
	require.Equal(t, ":1\r\n", string(send(t, c, "ZRANK", "z", "a")))
	require.Equal(t, "$-1\r\n", string(send(t, c, "ZRANK", "z", "missing")))
	require.Equal(t, "$1\r\n3\r\n", string(send(t, c, "ZSCORE", "z", "a")))
	require.Equal(t, ":1\r\n", string(send(t, c, "ZREM", "z", "a", "nope")))
	require.Equal(t, ":1\r\n", string(send(t, c, "ZCARD", "z")))
}

func TestZScoreDecimal(t *testing.T) {
	c := newTestConn(t)
	send(t, c, "ZADD", "z", "1.5", "m")
	require.Equal(t, "$3\r\n1.5\r\n", string(send(t, c, "ZSCORE", "z", "m")))
}

func TestHashOps(t *testing.T) {
	c := newTestConn(t)

	require.Equal(t, ":2\r\n", string(send(t, c, "HSET", "h", "f1", "v1", "f2", "v2")))
	require.Equal(t, ":0\r\n", string(send(t, c, "HSET", "h", "f1", "v1b")))
	require.Equal(t, "$3\r\nv1b\r\n", string(send(t, c, "HGET", "h", "f1")))
	require.Equal(t, "$-1\r\n", string(send(t, c, "HGET", "h", "missing")))
	require.Equal(t, ":2\r\n", string(send(t, c, "HLEN", "h")))
	require.Equal(t, "*4\r\n$2\r\nf1\r\n$3\r\nv1b\r\n$2\r\nf2\r\n$2\r\nv2\r\n", string(send(t, c, "HGETALL", "h")))
	require.Equal(t, ":1\r\n", string(send(t, c, "HDEL", "h", "f1", "nope")))
	require.Equal(t, ":1\r\n", string(send(t, c, "HLEN", "h")))
}

func TestTypeAndKeys(t *testing.T) {
	c := newTestConn(t)
	send(t, c, "SET", "str", "v")
	send(t, c, "RPUSH", "lst", "v")
	send(t, c, "XADD", "stm", "1-1", "f", "v")
	send(t, c, "ZADD", "zst", "1", "m")
	send(t, c, "HSET", "hsh", "f", "v")

	require.Equal(t, "+string\r\n", string(send(t, c, "TYPE", "str")))
	require.Equal(t, "+list\r\n", string(send(t, c, "TYPE", "lst")))
	require.Equal(t, "+stream\r\n", string(send(t, c, "TYPE", "stm")))
	require.Equal(t, "+zset\r\n", string(send(t, c, "TYPE", "zst")))
	require.Equal(t, "+hash\r\n", string(send(t, c, "TYPE", "hsh")))
	require.Equal(t, "+none\r\n", string(send(t, c, "TYPE", "nope")))

	reply, err := run(t, c, "KEYS", "*")
	require.NoError(t, err)
	require.Len(t, reply.Items, 5)

	reply, err = run(t, c, "KEYS", "st*")
	require.NoError(t, err)
	require.Len(t, reply.Items, 2)
}

func TestDelExists(t *testing.T) {
	c := newTestConn(t)
	send(t, c, "SET", "a", "1")
	send(t, c, "SET", "b", "2")

	require.Equal(t, ":2\r\n", string(send(t, c, "EXISTS", "a", "b", "c")))
	require.Equal(t, ":2\r\n", string(send(t, c, "DEL", "a", "b", "c")))
	require.Equal(t, ":0\r\n", string(send(t, c, "EXISTS", "a", "b")))
}

func TestInfoAndConfig(t *testing.T) {
	c := newTestConn(t)
	c.st.Info.Dir = "/tmp/data"
	c.st.Info.DBFilename = "dump.rdb"

	reply := string(send(t, c, "INFO"))
	require.Contains(t, reply, "role:master\n")
	require.Contains(t, reply, "master_replid:0123456789012345678901234567890123456789\n")
	require.Contains(t, reply, "master_repl_offset:0\n")

	reply = string(send(t, c, "CONFIG", "GET", "dir", "dbfilename"))
	require.Equal(t, "*4\r\n$3\r\ndir\r\n$9\r\n/tmp/data\r\n$10\r\ndbfilename\r\n$8\r\ndump.rdb\r\n", reply)
}

func TestACLAndAuth(t *testing.T) {
	c := newTestConn(t)

	require.Equal(t, "$7\r\ndefault\r\n", string(send(t, c, "ACL", "WHOAMI")))
	require.Equal(t, "+OK\r\n", string(send(t, c, "ACL", "SETUSER", "alice", ">secret")))

	reply := string(send(t, c, "ACL", "GETUSER", "alice"))
	require.Contains(t, reply, "flags")
	require.Contains(t, reply, "passwords")
	require.NotContains(t, reply, "nopass")

	require.Equal(t, "-WRONGPASS invalid username-password pair or user is disabled.\r\n",
		string(send(t, c, "AUTH", "alice", "wrong")))
	require.Equal(t, "-WRONGPASS invalid username-password pair or user is disabled.\r\n",
		string(send(t, c, "AUTH", "nobody", "x")))
	require.Equal(t, "+OK\r\n", string(send(t, c, "AUTH", "alice", "secret")))
	require.Equal(t, "$5\r\nalice\r\n", string(send(t, c, "ACL", "WHOAMI")))
	require.True(t, c.authenticated)
}

func TestWaitNoReplicas(t *testing.T) {
	c := newTestConn(t)
	start := time.Now()
	require.Equal(t, ":0\r\n", string(send(t, c, "WAIT", "0", "100")))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitCountsAckedReplicas(t *testing.T) {
	c := newTestConn(t)

	// A replica that already acknowledged everything.
	c.st.Lock()
	c.st.SlaveOffsets[1] = 0
	c.st.Unlock()

	require.Equal(t, ":1\r\n", string(send(t, c, "WAIT", "1", "500")))

	// WAIT advanced the send offset by the GETACK it emitted.
	c.st.Lock()
	require.Equal(t, uint64(len(getAckFrame.Encode())), c.st.Info.SendOffset)
	c.st.Unlock()
}

func TestWaitTimesOut(t *testing.T) {
	c := newTestConn(t)

	// One replica, behind the primary.
	c.st.Lock()
	c.st.Info.SendOffset = 100
	c.st.SlaveOffsets[1] = 10
	c.st.Unlock()

	start := time.Now()
	require.Equal(t, ":0\r\n", string(send(t, c, "WAIT", "1", "60")))
	require.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestPsyncRegistersReplica(t *testing.T) {
	c := newTestConn(t)
	defer c.Halt()

	f := frame.NewStringArray("PSYNC", "?", "-1")
	c.onFrame(f, f.Encode())

	// FULLRESYNC line.
	v := <-c.sendQ.Out()
	require.Equal(t, "+FULLRESYNC 0123456789012345678901234567890123456789 0\r\n", string(v.([]byte)))

	// Snapshot blob, no trailing CRLF.
	v = <-c.sendQ.Out()
	blob := v.([]byte)
	require.Equal(t, frame.NewRDB(emptyRDB()).Encode(), blob)

	require.NotZero(t, c.slaveID)
	require.True(t, c.replicaWriter)
	c.st.Lock()
	_, tracked := c.st.SlaveOffsets[c.slaveID]
	c.st.Unlock()
	require.True(t, tracked)

	// A write broadcast on the store now reaches this connection's queue
	// byte for byte.
	wire := frame.NewStringArray("SET", "x", "1").Encode()
	c.st.Lock()
	c.st.Broadcast.Send(wire)
	c.st.Info.SendOffset += uint64(len(wire))
	c.st.Unlock()

	select {
	case v := <-c.sendQ.Out():
		require.Equal(t, wire, v.([]byte))
	case <-time.After(time.Second):
		t.Fatal("broadcast did not reach the replica writer")
	}

	// A GETACK poke emits the probe exactly once for this offset.
	c.st.GetAck.Send(true)
	select {
	case v := <-c.sendQ.Out():
		require.Equal(t, getAckFrame.Encode(), v.([]byte))
	case <-time.After(time.Second):
		t.Fatal("GETACK was not forwarded")
	}

	// Poking again without new writes is debounced.
	c.st.GetAck.Send(true)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 0, c.sendQ.Len())
}

func TestReplconfAckUpdatesOffsets(t *testing.T) {
	c := newTestConn(t)
	c.slaveID = 3

	f := frame.NewStringArray("REPLCONF", "ACK", "42")
	c.onFrame(f, f.Encode())

	c.st.Lock()
	require.Equal(t, uint64(42), c.st.SlaveOffsets[3])
	c.st.Unlock()
	// ACKs never get a response.
	require.Equal(t, 0, c.sendQ.Len())
}

func TestReplconfHandshakeFields(t *testing.T) {
	c := newTestConn(t)

	require.Equal(t, "+OK\r\n", string(send(t, c, "REPLCONF", "listening-port", "6380")))
	require.Equal(t, "+OK\r\n", string(send(t, c, "REPLCONF", "capa", "psync2")))
	require.NotNil(t, c.replicaCfg)
	require.Equal(t, uint16(6380), c.replicaCfg.port)
	require.Equal(t, []string{"psync2"}, c.replicaCfg.capabilities)
}
