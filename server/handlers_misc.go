// handlers_misc.go - connection and keyspace introspection commands.
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
	"path"
	"strings"

	"github.com/copperkv/copperd/frame"
)

// PING [message]
func (c *incomingConn) ping(args []string) (frame.Frame, error) {
	if len(args) > 0 {
		return frame.NewBulkStringFromString(args[0]), nil
	}
	return frame.NewSimpleString("PONG"), nil
}

// ECHO message
func (c *incomingConn) echo(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("echo")
	}
	return frame.NewBulkStringFromString(args[0]), nil
}

// INFO [section ...]
func (c *incomingConn) info(args []string) (frame.Frame, error) {
	c.st.Lock()
	body := c.st.Info.String()
	c.st.Unlock()
	return frame.NewBulkStringFromString(body), nil
}

// CONFIG GET key [key ...]
func (c *incomingConn) configCmd(args []string) (frame.Frame, error) {
	if len(args) < 2 {
		return frame.Frame{}, errWrongNumArguments("config")
	}
	if strings.ToLower(args[0]) != "get" {
		return frame.Frame{}, errSyntax()
	}

	c.st.Lock()
	defer c.st.Unlock()

	items := make([]frame.Frame, 0, 2*(len(args)-1))
	for _, key := range args[1:] {
		var val string
		switch strings.ToLower(key) {
		case "dir":
			val = c.st.Info.Dir
		case "dbfilename":
			val = c.st.Info.DBFilename
		default:
			continue
		}
		items = append(items, frame.NewBulkStringFromString(key))
		items = append(items, frame.NewBulkStringFromString(val))
	}
	return frame.NewArray(items), nil
}

// KEYS pattern
func (c *incomingConn) keys(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("keys")
	}
	pattern := args[0]

	c.st.Lock()
	defer c.st.Unlock()

	c.st.RemoveExpired()
	items := []frame.Frame{}
	for _, k := range c.st.Keys() {
		if pattern == "*" {
			items = append(items, frame.NewBulkStringFromString(k))
			continue
		}
		if ok, err := path.Match(pattern, k); err == nil && ok {
			items = append(items, frame.NewBulkStringFromString(k))
		}
	}
	return frame.NewArray(items), nil
}

// TYPE key
func (c *incomingConn) typeCmd(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("type")
	}

	c.st.Lock()
	defer c.st.Unlock()

	c.st.RemoveExpired()
	if v, ok := c.st.Get(args[0]); ok {
		return frame.NewSimpleString(v.TypeName()), nil
	}
	return frame.NewSimpleString("none"), nil
}

// DEL key [key ...]
func (c *incomingConn) del(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("del")
	}

	c.st.Lock()
	defer c.st.Unlock()

	c.st.RemoveExpired()
	var n int64
	for _, key := range args {
		if c.st.Delete(key) {
			n++
		}
	}
	return frame.NewInteger(n), nil
}

// EXISTS key [key ...]
func (c *incomingConn) exists(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("exists")
	}

	c.st.Lock()
	defer c.st.Unlock()

	c.st.RemoveExpired()
	var n int64
	for _, key := range args {
		if _, ok := c.st.Get(key); ok {
			n++
		}
	}
	return frame.NewInteger(n), nil
}
