// handlers_repl.go - replication commands, primary side.
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
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/eapache/channels.v1"

	"github.com/copperkv/copperd/frame"
)

// emptyRDBHex is the fixed empty snapshot sent during FULLRESYNC.
const emptyRDBHex = "524544495330303131fa0972656469732d76657205372e322e30fa0a72656469732d62697473c040fa056374696d65c26d08bc65fa08757365642d6d656dc2b0c41000fa08616f662d62617365c000fff06e3bfec0ff5aa2"

func emptyRDB() []byte {
	b, err := hex.DecodeString(emptyRDBHex)
	if err != nil {
		panic("BUG: invalid empty RDB constant")
	}
	return b
}

var getAckFrame = frame.NewStringArray("REPLCONF", "GETACK", "*")

// REPLCONF <listening-port port | capa name | ack offset | getack *>
func (c *incomingConn) replconf(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("replconf")
	}
	switch strings.ToLower(args[0]) {
	case "listening-port":
		if len(args) < 2 {
			return frame.Frame{}, errWrongNumArguments("replconf")
		}
		port, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return frame.Frame{}, errSyntax()
		}
		if c.replicaCfg == nil {
			c.replicaCfg = new(replicaConfig)
		}
		c.replicaCfg.port = uint16(port)
		return frame.NewSimpleString("OK"), nil
	case "capa":
		if len(args) < 2 {
			return frame.Frame{}, errWrongNumArguments("replconf")
		}
		if c.replicaCfg == nil {
			c.replicaCfg = new(replicaConfig)
		}
		c.replicaCfg.capabilities = append(c.replicaCfg.capabilities, args[1])
		return frame.NewSimpleString("OK"), nil
	case "ack":
		// Sent by a replica over its PSYNC'd connection.
		if len(args) < 2 {
			return frame.Frame{}, errWrongNumArguments("replconf")
		}
		offset, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return frame.Frame{}, errSyntax()
		}
		c.st.Lock()
		c.st.SlaveOffsets[c.slaveID] = offset
		c.st.Unlock()
		return frame.NewSimpleString("OK"), nil
	case "getack":
		// Received from the primary; the ACK goes out even though all
		// other responses on this connection are suppressed.
		c.st.Lock()
		offset := c.st.Info.RecvOffset
		c.st.Unlock()
		ack := frame.NewStringArray("REPLCONF", "ACK", strconv.FormatUint(offset, 10))
		c.enqueue(ack.Encode())
		return frame.NewSimpleString("OK"), nil
	default:
		return frame.NewNil(), nil
	}
}

// PSYNC replicationid offset
func (c *incomingConn) psync(args []string) (frame.Frame, error) {
	c.st.Lock()
	replID := c.st.Info.MasterID
	c.st.Unlock()

	// The FULLRESYNC line and the snapshot go out before the outbound
	// queue is rewired to the broadcast stream.
	sync := frame.NewSimpleString(fmt.Sprintf("FULLRESYNC %s 0", replID))
	c.enqueue(sync.Encode())
	rdb := frame.NewRDB(emptyRDB())
	c.enqueue(rdb.Encode())

	c.st.Lock()
	c.slaveID = c.st.NextSlaveID()
	c.st.SlaveOffsets[c.slaveID] = 0
	c.st.Unlock()
	c.replicaWriter = true

	bcastID, bcastCh := c.st.Broadcast.Subscribe()
	ackID, ackCh := c.st.GetAck.Subscribe()
	c.log.Noticef("Connection registered as replica %d", c.slaveID)

	c.Go(func() {
		defer c.st.Broadcast.Unsubscribe(bcastID)
		c.forwardBroadcast(bcastCh)
	})
	c.Go(func() {
		defer c.st.GetAck.Unsubscribe(ackID)
		c.forwardGetAck(ackCh)
	})

	return frame.NewSimpleString("OK"), nil
}

// forwardBroadcast feeds every propagated write frame to the replica,
// byte for byte.
func (c *incomingConn) forwardBroadcast(ch *channels.InfiniteChannel) {
	for {
		select {
		case v, ok := <-ch.Out():
			if !ok {
				return
			}
			c.enqueue(v.([]byte))
		case <-c.HaltCh():
			return
		}
	}
}

// forwardGetAck emits a REPLCONF GETACK to the replica when poked,
// debounced against the send offset it was last asked at.
func (c *incomingConn) forwardGetAck(ch *channels.InfiniteChannel) {
	for {
		select {
		case _, ok := <-ch.Out():
			if !ok {
				return
			}
			c.st.Lock()
			sendOffset := c.st.Info.SendOffset
			asked := c.st.SlaveAskedOffsets[c.slaveID]
			c.st.SlaveAskedOffsets[c.slaveID] = sendOffset
			c.st.Unlock()
			if sendOffset > asked {
				c.enqueue(getAckFrame.Encode())
			}
		case <-c.HaltCh():
			return
		}
	}
}

// WAIT numreplicas timeout
func (c *incomingConn) waitCmd(args []string) (frame.Frame, error) {
	if len(args) < 2 {
		return frame.Frame{}, errWrongNumArguments("wait")
	}
	numReplicas, err := strconv.Atoi(args[0])
	if err != nil {
		return frame.Frame{}, errSyntax()
	}
	timeoutMillis, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return frame.Frame{}, errSyntax()
	}

	getAckWire := getAckFrame.Encode()

	c.st.Lock()
	target := c.st.Info.SendOffset
	c.st.GetAck.Send(true)
	c.st.Unlock()

	deadline := time.Now().Add(time.Duration(timeoutMillis) * time.Millisecond)
	var acked int
	for {
		c.st.Lock()
		acked = 0
		for _, offset := range c.st.SlaveOffsets {
			if offset >= target {
				acked++
			}
		}
		c.st.Unlock()

		if acked >= numReplicas || !time.Now().Before(deadline) {
			break
		}
		select {
		case <-time.After(time.Millisecond):
		case <-c.HaltCh():
			return frame.NewInteger(int64(acked)), nil
		}
	}

	// Future WAITs must see the GETACK bytes as part of the propagated
	// prefix.
	c.st.Lock()
	c.st.Info.SendOffset += uint64(len(getAckWire))
	c.st.Unlock()

	return frame.NewInteger(int64(acked)), nil
}
