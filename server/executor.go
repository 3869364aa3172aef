// executor.go - per connection command dispatch.
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
	"strings"

	"github.com/copperkv/copperd/frame"
	"github.com/copperkv/copperd/internal/instrument"
)

// writeCommands is the set of commands that mutate the keyspace and are
// propagated to replicas byte-for-byte.
var writeCommands = map[string]bool{
	"set":  true,
	"del":  true,
	"incr": true,

	"lpush": true,
	"rpush": true,
	"lpop":  true,

	"xadd": true,
	"xdel": true,

	"zadd": true,
	"zrem": true,

	"hset": true,
	"hdel": true,
}

// subscriberModeCommands is the allowed set while subscription_count > 0.
var subscriberModeCommands = map[string]bool{
	"subscribe":    true,
	"unsubscribe":  true,
	"psubscribe":   true,
	"punsubscribe": true,
	"ping":         true,
	"quit":         true,
	"reset":        true,
}

// onFrame drives one decoded command through the executor: subscriber
// gating, write propagation, transaction queueing, execution, offset
// accounting, and the reply.
func (c *incomingConn) onFrame(f frame.Frame, raw []byte) {
	instrument.FramesParsed()

	args, ok := f.Args()
	if !ok || len(args) == 0 {
		c.reply(frame.NewSimpleError(errSyntax().Error()))
		return
	}
	cmd := strings.ToLower(args[0])
	instrument.Command(cmd)

	if c.subscriptionCount > 0 && !subscriberModeCommands[cmd] {
		c.reply(frame.NewSimpleError(errSubscriberMode(cmd).Error()))
		return
	}

	// On a primary, write commands are broadcast as the exact received
	// bytes; re-encoding would break the offset contract.
	if c.slaveID == 0 && writeCommands[cmd] {
		c.st.Lock()
		c.st.Broadcast.Send(raw)
		c.st.Info.SendOffset += uint64(len(raw))
		c.st.Unlock()
		instrument.BytesBroadcast(len(raw))
	}

	var resp frame.Frame
	var err error
	if c.inTransaction {
		resp, err = c.transaction(args)
	} else {
		resp, err = c.execute(cmd, args[1:])
	}

	c.st.Lock()
	c.st.Info.RecvOffset += uint64(len(raw))
	c.st.Unlock()

	if err != nil {
		c.reply(frame.NewSimpleError(err.Error()))
		return
	}

	// In subscriber mode a PING answers in the array shape the push
	// protocol uses.
	if c.subscriptionCount > 0 && cmd == "ping" {
		resp = frame.NewArray([]frame.Frame{
			frame.NewBulkStringFromString("pong"),
			frame.NewBulkStringFromString(""),
		})
	}

	c.reply(resp)
}

// execute dispatches a single command to its handler.
func (c *incomingConn) execute(cmd string, args []string) (frame.Frame, error) {
	switch cmd {
	case "ping":
		return c.ping(args)
	case "echo":
		return c.echo(args)
	case "info":
		return c.info(args)
	case "config":
		return c.configCmd(args)
	case "keys":
		return c.keys(args)
	case "type":
		return c.typeCmd(args)
	case "del":
		return c.del(args)
	case "exists":
		return c.exists(args)

	case "set":
		return c.set(args)
	case "get":
		return c.get(args)
	case "incr":
		return c.incr(args)

	case "rpush":
		return c.rpush(args)
	case "lpush":
		return c.lpush(args)
	case "lpop":
		return c.lpop(args)
	case "blpop":
		return c.blpop(args)
	case "lrange":
		return c.lrange(args)
	case "llen":
		return c.llen(args)

	case "xadd":
		return c.xadd(args)
	case "xdel":
		return c.xdel(args)
	case "xlen":
		return c.xlen(args)
	case "xrange":
		return c.xrange(args)
	case "xread":
		return c.xread(args)

	case "zadd":
		return c.zadd(args)
	case "zcard":
		return c.zcard(args)
	case "zcount":
		return c.zcount(args)
	case "zrank":
		return c.zrank(args)
	case "zrange":
		return c.zrange(args)
	case "zrem":
		return c.zrem(args)
	case "zscore":
		return c.zscore(args)

	case "hset":
		return c.hset(args)
	case "hget":
		return c.hget(args)
	case "hdel":
		return c.hdel(args)
	case "hgetall":
		return c.hgetall(args)
	case "hlen":
		return c.hlen(args)

	case "subscribe":
		return c.subscribe(args)
	case "unsubscribe":
		return c.unsubscribe(args)
	case "publish":
		return c.publish(args)

	case "multi":
		return c.multi(args)
	case "exec":
		return frame.Frame{}, errExecWithoutMulti()
	case "discard":
		return frame.Frame{}, errDiscardWithoutMulti()

	case "replconf":
		return c.replconf(args)
	case "psync":
		return c.psync(args)
	case "wait":
		return c.waitCmd(args)

	case "acl":
		return c.acl(args)
	case "auth":
		return c.auth(args)

	default:
		return frame.NewNil(), nil
	}
}

// MULTI
func (c *incomingConn) multi(args []string) (frame.Frame, error) {
	c.inTransaction = true
	return frame.NewSimpleString("OK"), nil
}

// transaction handles a command received while in MULTI state: EXEC and
// DISCARD act on the queue, everything else is appended and QUEUED.
func (c *incomingConn) transaction(args []string) (frame.Frame, error) {
	switch strings.ToLower(args[0]) {
	case "exec":
		c.inTransaction = false
		queued := c.txQueue
		c.txQueue = nil

		results := make([]frame.Frame, 0, len(queued))
		for _, q := range queued {
			resp, err := c.execute(strings.ToLower(q[0]), q[1:])
			if err != nil {
				resp = frame.NewSimpleError(err.Error())
			}
			results = append(results, resp)
		}
		return frame.NewArray(results), nil
	case "discard":
		c.inTransaction = false
		c.txQueue = nil
		return frame.NewSimpleString("OK"), nil
	default:
		c.txQueue = append(c.txQueue, args)
		return frame.NewSimpleString("QUEUED"), nil
	}
}
