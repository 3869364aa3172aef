// handlers_string.go - string commands.
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
	"strings"
	"time"

	"github.com/copperkv/copperd/frame"
	"github.com/copperkv/copperd/store"
)

// SET key value [EX seconds | PX milliseconds]
func (c *incomingConn) set(args []string) (frame.Frame, error) {
	if len(args) < 2 {
		return frame.Frame{}, errWrongNumArguments("set")
	}
	key, val := args[0], args[1]

	var ttl time.Duration
	var hasTTL bool
	if len(args) > 2 {
		if len(args) < 4 {
			return frame.Frame{}, errSyntax()
		}
		n, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil || n <= 0 {
			return frame.Frame{}, errSyntax()
		}
		switch strings.ToLower(args[2]) {
		case "ex":
			ttl = time.Duration(n) * time.Second
		case "px":
			ttl = time.Duration(n) * time.Millisecond
		case "exat":
			ttl = time.Until(time.Unix(n, 0))
		case "pxat":
			ttl = time.Until(time.UnixMilli(n))
		default:
			return frame.Frame{}, errSyntax()
		}
		hasTTL = true
	}

	c.st.Lock()
	defer c.st.Unlock()

	c.st.Put(key, &store.StringValue{B: []byte(val)})
	if hasTTL {
		c.st.SetExpiry(key, time.Now().Add(ttl))
	} else {
		c.st.ClearExpiry(key)
	}
	return frame.NewSimpleString("OK"), nil
}

// GET key
func (c *incomingConn) get(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("get")
	}

	c.st.Lock()
	defer c.st.Unlock()

	c.st.RemoveExpired()
	v, ok := c.st.Get(args[0])
	if !ok {
		return frame.NewNullString(), nil
	}
	sv, ok := v.(*store.StringValue)
	if !ok {
		return frame.Frame{}, errWrongType()
	}
	return frame.NewBulkString(sv.B), nil
}

// INCR key
func (c *incomingConn) incr(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("incr")
	}
	key := args[0]

	c.st.Lock()
	defer c.st.Unlock()

	c.st.RemoveExpired()
	v, ok := c.st.Get(key)
	if !ok {
		v = &store.StringValue{B: []byte("0")}
		c.st.Put(key, v)
	}
	sv, ok := v.(*store.StringValue)
	if !ok {
		return frame.Frame{}, errWrongType()
	}
	n, err := strconv.ParseInt(string(sv.B), 10, 64)
	if err != nil {
		return frame.Frame{}, errNotInteger()
	}
	n++
	sv.B = []byte(strconv.FormatInt(n, 10))
	return frame.NewInteger(n), nil
}
