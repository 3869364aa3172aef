// handlers_pubsub.go - pub/sub commands and the subscription forwarder.
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
	"gopkg.in/eapache/channels.v1"

	"github.com/copperkv/copperd/frame"
	"github.com/copperkv/copperd/store"
)

// SUBSCRIBE channel
func (c *incomingConn) subscribe(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("subscribe")
	}
	name := args[0]

	c.st.Lock()
	ch, ok := c.st.Channels[name]
	if !ok {
		ch = store.NewChannel()
		c.st.Channels[name] = ch
	}
	c.st.Unlock()

	id, ring := ch.Subscribe()
	sub := &subscription{
		id:          id,
		channel:     ch,
		unsubscribe: make(chan bool, 1),
	}
	c.subscriptions[name] = sub
	c.subscriptionCount++

	c.Go(func() {
		c.forwardSubscription(ring, sub.unsubscribe)
	})

	return frame.NewArray([]frame.Frame{
		frame.NewBulkStringFromString("subscribe"),
		frame.NewBulkStringFromString(name),
		frame.NewInteger(int64(c.subscriptionCount)),
	}), nil
}

// forwardSubscription pipes published messages into the outbound queue
// until the one-shot unsubscribe fires, the ring closes, or the
// connection halts.
func (c *incomingConn) forwardSubscription(ring *channels.RingChannel, unsubscribe <-chan bool) {
	for {
		select {
		case v, ok := <-ring.Out():
			if !ok {
				return
			}
			f := v.(frame.Frame)
			c.enqueue(f.Encode())
		case <-unsubscribe:
			return
		case <-c.HaltCh():
			return
		}
	}
}

// UNSUBSCRIBE channel
func (c *incomingConn) unsubscribe(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("unsubscribe")
	}
	name := args[0]

	if sub, ok := c.subscriptions[name]; ok {
		select {
		case sub.unsubscribe <- true:
		default:
		}
		sub.channel.Unsubscribe(sub.id)
		delete(c.subscriptions, name)
		c.subscriptionCount--
	}

	return frame.NewArray([]frame.Frame{
		frame.NewBulkStringFromString("unsubscribe"),
		frame.NewBulkStringFromString(name),
		frame.NewInteger(int64(c.subscriptionCount)),
	}), nil
}

// PUBLISH channel message
func (c *incomingConn) publish(args []string) (frame.Frame, error) {
	if len(args) < 2 {
		return frame.Frame{}, errWrongNumArguments("publish")
	}
	name, msg := args[0], args[1]

	c.st.Lock()
	ch, ok := c.st.Channels[name]
	c.st.Unlock()
	if !ok {
		return frame.NewInteger(0), nil
	}

	n := ch.Publish(frame.NewArray([]frame.Frame{
		frame.NewBulkStringFromString("message"),
		frame.NewBulkStringFromString(name),
		frame.NewBulkStringFromString(msg),
	}))
	return frame.NewInteger(int64(n)), nil
}
