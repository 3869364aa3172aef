// broadcast.go - fan-out channels for pub/sub and replication.
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
	"sync"

	"gopkg.in/eapache/channels.v1"
)

const subscriberBufferLen = 64

// Broadcast fans values out to every subscriber without loss: each
// subscriber gets an unbounded queue, so a slow consumer never
// backpressures the sender.  Used for replica write propagation and the
// GETACK trigger.
type Broadcast struct {
	sync.Mutex

	subscribers map[uint64]*channels.InfiniteChannel
	nextID      uint64
}

// NewBroadcast returns an empty Broadcast.
func NewBroadcast() *Broadcast {
	return &Broadcast{
		subscribers: make(map[uint64]*channels.InfiniteChannel),
	}
}

// Subscribe registers a new subscriber queue.
func (b *Broadcast) Subscribe() (uint64, *channels.InfiniteChannel) {
	b.Lock()
	defer b.Unlock()

	b.nextID++
	id := b.nextID
	ch := channels.NewInfiniteChannel()
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber queue.
func (b *Broadcast) Unsubscribe(id uint64) {
	b.Lock()
	defer b.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		ch.Close()
	}
}

// Send enqueues v for every current subscriber.
func (b *Broadcast) Send(v interface{}) {
	b.Lock()
	defer b.Unlock()

	for _, ch := range b.subscribers {
		ch.In() <- v
	}
}

// Channel is a pub/sub channel.  Delivery is at-most-once per subscriber:
// each subscriber reads from a fixed size ring, so a full ring drops the
// oldest message instead of backpressuring the publisher.
type Channel struct {
	sync.Mutex

	subscribers map[uint64]*channels.RingChannel
	nextID      uint64
}

// NewChannel returns an empty pub/sub channel.
func NewChannel() *Channel {
	return &Channel{
		subscribers: make(map[uint64]*channels.RingChannel),
	}
}

// Subscribe registers a new subscriber ring.
func (c *Channel) Subscribe() (uint64, *channels.RingChannel) {
	c.Lock()
	defer c.Unlock()

	c.nextID++
	id := c.nextID
	ch := channels.NewRingChannel(channels.BufferCap(subscriberBufferLen))
	c.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber ring.
func (c *Channel) Unsubscribe(id uint64) {
	c.Lock()
	defer c.Unlock()

	if ch, ok := c.subscribers[id]; ok {
		delete(c.subscribers, id)
		ch.Close()
	}
}

// Publish enqueues v for every subscriber and returns the receiver count.
func (c *Channel) Publish(v interface{}) int {
	c.Lock()
	defer c.Unlock()

	for _, ch := range c.subscribers {
		ch.In() <- v
	}
	return len(c.subscribers)
}

// Receivers returns the current subscriber count.
func (c *Channel) Receivers() int {
	c.Lock()
	defer c.Unlock()

	return len(c.subscribers)
}
