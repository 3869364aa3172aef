// handlers_list.go - list commands.
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
	"strconv"
	"time"

	"github.com/copperkv/copperd/frame"
	"github.com/copperkv/copperd/store"
)

// blockPollInterval is the sleep between probes of a blocking command;
// the store guard is never held across it.
const blockPollInterval = 5 * time.Millisecond

// list fetches the list behind key, optionally creating it.  The store
// lock must be held.
func (c *incomingConn) list(key string, create bool) (*store.ListValue, error) {
	v, ok := c.st.Get(key)
	if !ok {
		if !create {
			return nil, nil
		}
		lv := &store.ListValue{}
		c.st.Put(key, lv)
		return lv, nil
	}
	lv, ok := v.(*store.ListValue)
	if !ok {
		return nil, errWrongType()
	}
	return lv, nil
}

// RPUSH key element [element ...]
func (c *incomingConn) rpush(args []string) (frame.Frame, error) {
	if len(args) < 2 {
		return frame.Frame{}, errWrongNumArguments("rpush")
	}

	c.st.Lock()
	defer c.st.Unlock()

	lv, err := c.list(args[0], true)
	if err != nil {
		return frame.Frame{}, err
	}
	for _, e := range args[1:] {
		lv.PushBack([]byte(e))
	}
	return frame.NewInteger(int64(len(lv.Items))), nil
}

// LPUSH key element [element ...]
func (c *incomingConn) lpush(args []string) (frame.Frame, error) {
	if len(args) < 2 {
		return frame.Frame{}, errWrongNumArguments("lpush")
	}

	c.st.Lock()
	defer c.st.Unlock()

	lv, err := c.list(args[0], true)
	if err != nil {
		return frame.Frame{}, err
	}
	for _, e := range args[1:] {
		lv.PushFront([]byte(e))
	}
	return frame.NewInteger(int64(len(lv.Items))), nil
}

// LPOP key [count]
func (c *incomingConn) lpop(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("lpop")
	}
	count := 1
	withCount := false
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			return frame.Frame{}, errSyntax()
		}
		count = n
		withCount = true
	}

	c.st.Lock()
	defer c.st.Unlock()

	c.st.RemoveExpired()
	lv, err := c.list(args[0], false)
	if err != nil {
		return frame.Frame{}, err
	}
	if lv == nil || len(lv.Items) == 0 || count == 0 {
		return frame.NewNullString(), nil
	}
	popped := lv.PopFront(count)
	if !withCount {
		return frame.NewBulkString(popped[0]), nil
	}
	items := make([]frame.Frame, 0, len(popped))
	for _, p := range popped {
		items = append(items, frame.NewBulkString(p))
	}
	return frame.NewArray(items), nil
}

// BLPOP key timeout
func (c *incomingConn) blpop(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("blpop")
	}
	key := args[0]
	timeout := 0.0
	if len(args) > 1 {
		t, err := strconv.ParseFloat(args[1], 64)
		if err != nil || t < 0 {
			return frame.Frame{}, errSyntax()
		}
		timeout = t
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(time.Duration(timeout * float64(time.Second)))
	}

	for {
		c.st.Lock()
		c.st.RemoveExpired()
		lv, err := c.list(key, false)
		if err != nil {
			c.st.Unlock()
			return frame.Frame{}, err
		}
		if lv != nil && len(lv.Items) > 0 {
			popped := lv.PopFront(1)
			c.st.Unlock()
			return frame.NewArray([]frame.Frame{
				frame.NewBulkStringFromString(key),
				frame.NewBulkString(popped[0]),
			}), nil
		}
		c.st.Unlock()

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return frame.NewNullArray(), nil
		}
		select {
		case <-time.After(blockPollInterval):
		case <-c.HaltCh():
			return frame.NewNullArray(), nil
		}
	}
}

// LRANGE key start stop
func (c *incomingConn) lrange(args []string) (frame.Frame, error) {
	if len(args) < 3 {
		return frame.Frame{}, errWrongNumArguments("lrange")
	}
	start, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return frame.Frame{}, errNotInteger()
	}
	stop, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return frame.Frame{}, errNotInteger()
	}

	c.st.Lock()
	defer c.st.Unlock()

	c.st.RemoveExpired()
	lv, err := c.list(args[0], false)
	if err != nil {
		return frame.Frame{}, err
	}
	items := []frame.Frame{}
	if lv != nil {
		for _, e := range lv.Range(start, stop) {
			items = append(items, frame.NewBulkString(e))
		}
	}
	return frame.NewArray(items), nil
}

// LLEN key
func (c *incomingConn) llen(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("llen")
	}

	c.st.Lock()
	defer c.st.Unlock()

	c.st.RemoveExpired()
	lv, err := c.list(args[0], false)
	if err != nil {
		return frame.Frame{}, err
	}
	if lv == nil {
		return frame.NewInteger(0), nil
	}
	return frame.NewInteger(int64(len(lv.Items))), nil
}
