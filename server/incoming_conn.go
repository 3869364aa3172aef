// incoming_conn.go - per connection tasks and state.
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
	"container/list"
	"errors"
	"fmt"
	"io"
	"net"

	"gopkg.in/eapache/channels.v1"
	"gopkg.in/op/go-logging.v1"

	"github.com/copperkv/copperd/core/worker"
	"github.com/copperkv/copperd/frame"
	"github.com/copperkv/copperd/store"
)

// replicaConfig is what a replica declares about itself via REPLCONF
// before PSYNC.
type replicaConfig struct {
	port         uint16
	capabilities []string
}

// subscription is the per channel forwarder state: the subscriber's ring
// plus the one-shot that cancels the forwarder on UNSUBSCRIBE.
type subscription struct {
	id          uint64
	channel     *store.Channel
	unsubscribe chan bool
}

// incomingConn is one framed command/response connection.  A reader task
// parses frames and executes commands; a writer task drains the outbound
// queue.  The same type serves regular clients, replica connections on
// the primary (after PSYNC), and the replica's connection to its primary
// (nonzero slaveID).
type incomingConn struct {
	worker.Worker

	s    *Server
	conn net.Conn
	e    *list.Element
	log  *logging.Logger
	st   *store.Store

	sendQ *channels.InfiniteChannel

	// slaveID is zero for regular clients.  On a replica node, the
	// connection to the primary carries a nonzero slaveID and suppresses
	// all responses.
	slaveID uint64

	// replicaWriter is set once this connection completed PSYNC on the
	// primary; from then on only the broadcast forwarders feed sendQ.
	replicaWriter bool

	inTransaction bool
	txQueue       [][]string

	subscriptions     map[string]*subscription
	subscriptionCount int

	replicaCfg    *replicaConfig
	user          string
	authenticated bool
}

func newIncomingConn(s *Server, conn net.Conn, id uint64) *incomingConn {
	c := &incomingConn{
		s:             s,
		conn:          conn,
		log:           s.logBackend.GetLogger(fmt.Sprintf("conn:%d", id)),
		st:            s.store,
		sendQ:         channels.NewInfiniteChannel(),
		subscriptions: make(map[string]*subscription),
		user:          "default",
	}
	c.log.Debugf("New incoming connection: %v", conn.RemoteAddr())
	return c
}

func (c *incomingConn) start() {
	c.st.Lock()
	c.st.Info.ConnectedClients++
	c.st.Unlock()

	c.Go(c.writerWorker)
	c.Go(c.readerWorker)
}

// enqueue places raw wire bytes on the outbound queue, unconditionally.
func (c *incomingConn) enqueue(b []byte) {
	c.sendQ.In() <- b
}

// reply encodes and enqueues a response frame unless this connection has
// been rewired as a replica writer or carries a nonzero slaveID.
func (c *incomingConn) reply(f frame.Frame) {
	if c.replicaWriter || c.slaveID != 0 {
		return
	}
	c.enqueue(f.Encode())
}

func (c *incomingConn) writerWorker() {
	defer c.conn.Close()

	for {
		select {
		case v, ok := <-c.sendQ.Out():
			if !ok {
				return
			}
			if _, err := c.conn.Write(v.([]byte)); err != nil {
				c.log.Debugf("Write failure: %v", err)
				return
			}
		case <-c.HaltCh():
			return
		}
	}
}

func (c *incomingConn) readerWorker() {
	defer func() {
		c.log.Debug("closing")
		c.conn.Close()
		c.sendQ.Close()
		c.cancelSubscriptions()
		c.st.Lock()
		c.st.Info.ConnectedClients--
		c.st.Unlock()
		if c.s != nil {
			c.s.onClosedConn(c)
		}
	}()

	r := frame.NewReader(c.conn)
	for {
		select {
		case <-c.HaltCh():
			return
		default:
		}

		f, raw, err := r.ReadFrame()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return
		default:
			// Malformed frame bytes, reset mid frame, or an oversized
			// buffer: all fatal for the connection.
			c.log.Debugf("Read failure: %v", err)
			return
		}

		c.onFrame(f, raw)
	}
}

func (c *incomingConn) cancelSubscriptions() {
	for name, sub := range c.subscriptions {
		select {
		case sub.unsubscribe <- true:
		default:
		}
		sub.channel.Unsubscribe(sub.id)
		delete(c.subscriptions, name)
	}
}
