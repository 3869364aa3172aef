// handlers_hash.go - hash commands.
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
	"github.com/copperkv/copperd/frame"
	"github.com/copperkv/copperd/store"
)

// hash fetches the hash behind key, optionally creating it.  The store
// lock must be held.
func (c *incomingConn) hash(key string, create bool) (*store.HashValue, error) {
	v, ok := c.st.Get(key)
	if !ok {
		if !create {
			return nil, nil
		}
		hv := &store.HashValue{Fields: make(map[string][]byte)}
		c.st.Put(key, hv)
		return hv, nil
	}
	hv, ok := v.(*store.HashValue)
	if !ok {
		return nil, errWrongType()
	}
	return hv, nil
}

// HSET key field value [field value ...]
func (c *incomingConn) hset(args []string) (frame.Frame, error) {
	if len(args) < 3 || len(args)%2 != 1 {
		return frame.Frame{}, errWrongNumArguments("hset")
	}

	c.st.Lock()
	defer c.st.Unlock()

	hv, err := c.hash(args[0], true)
	if err != nil {
		return frame.Frame{}, err
	}
	var added int64
	for i := 1; i < len(args); i += 2 {
		if hv.Set(args[i], []byte(args[i+1])) {
			added++
		}
	}
	return frame.NewInteger(added), nil
}

// HGET key field
func (c *incomingConn) hget(args []string) (frame.Frame, error) {
	if len(args) < 2 {
		return frame.Frame{}, errWrongNumArguments("hget")
	}

	c.st.Lock()
	defer c.st.Unlock()

	c.st.RemoveExpired()
	hv, err := c.hash(args[0], false)
	if err != nil {
		return frame.Frame{}, err
	}
	if hv == nil {
		return frame.NewNullString(), nil
	}
	val, ok := hv.Fields[args[1]]
	if !ok {
		return frame.NewNullString(), nil
	}
	return frame.NewBulkString(val), nil
}

// HDEL key field [field ...]
func (c *incomingConn) hdel(args []string) (frame.Frame, error) {
	if len(args) < 2 {
		return frame.Frame{}, errWrongNumArguments("hdel")
	}

	c.st.Lock()
	defer c.st.Unlock()

	hv, err := c.hash(args[0], false)
	if err != nil {
		return frame.Frame{}, err
	}
	if hv == nil {
		return frame.NewInteger(0), nil
	}
	var removed int64
	for _, f := range args[1:] {
		if hv.Delete(f) {
			removed++
		}
	}
	return frame.NewInteger(removed), nil
}

// HGETALL key
func (c *incomingConn) hgetall(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("hgetall")
	}

	c.st.Lock()
	defer c.st.Unlock()

	c.st.RemoveExpired()
	hv, err := c.hash(args[0], false)
	if err != nil {
		return frame.Frame{}, err
	}
	items := []frame.Frame{}
	if hv != nil {
		for _, f := range hv.Order {
			items = append(items, frame.NewBulkStringFromString(f))
			items = append(items, frame.NewBulkString(hv.Fields[f]))
		}
	}
	return frame.NewArray(items), nil
}

// HLEN key
func (c *incomingConn) hlen(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("hlen")
	}

	c.st.Lock()
	defer c.st.Unlock()

	c.st.RemoveExpired()
	hv, err := c.hash(args[0], false)
	if err != nil {
		return frame.Frame{}, err
	}
	if hv == nil {
		return frame.NewInteger(0), nil
	}
	return frame.NewInteger(int64(len(hv.Fields))), nil
}
