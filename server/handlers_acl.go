// handlers_acl.go - AUTH and the ACL container command.
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
	"github.com/copperkv/copperd/store"
)

// ACL <WHOAMI | GETUSER name | SETUSER name rule ...>
func (c *incomingConn) acl(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("acl")
	}
	switch strings.ToLower(args[0]) {
	case "whoami":
		return frame.NewBulkStringFromString(c.user), nil
	case "getuser":
		return c.aclGetUser(args[1:])
	case "setuser":
		return c.aclSetUser(args[1:])
	default:
		return frame.NewNil(), nil
	}
}

// ACL GETUSER returns the user's attributes in lexicographic key order.
func (c *incomingConn) aclGetUser(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("acl|getuser")
	}

	c.st.Lock()
	defer c.st.Unlock()

	user, ok := c.st.Users[args[0]]
	if !ok {
		return frame.NewNullString(), nil
	}
	toArray := func(vals []string) frame.Frame {
		items := make([]frame.Frame, 0, len(vals))
		for _, v := range vals {
			items = append(items, frame.NewBulkStringFromString(v))
		}
		return frame.NewArray(items)
	}
	return frame.NewArray([]frame.Frame{
		frame.NewBulkStringFromString("flags"),
		toArray(user.Flags),
		frame.NewBulkStringFromString("passwords"),
		toArray(user.Passwords),
	}), nil
}

// ACL SETUSER creates or extends a user; ">pwd" rules append password
// digests.
func (c *incomingConn) aclSetUser(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("acl|setuser")
	}

	c.st.Lock()
	defer c.st.Unlock()

	user, ok := c.st.Users[args[0]]
	if !ok {
		user = store.NewUser()
		c.st.Users[args[0]] = user
	}
	for _, rule := range args[1:] {
		if strings.HasPrefix(rule, ">") {
			user.AddPassword(rule[1:])
		}
	}
	return frame.NewSimpleString("OK"), nil
}

// AUTH username password
func (c *incomingConn) auth(args []string) (frame.Frame, error) {
	if len(args) < 2 {
		return frame.Frame{}, errWrongNumArguments("auth")
	}

	c.st.Lock()
	user, ok := c.st.Users[args[0]]
	c.st.Unlock()
	if !ok || !user.CheckPassword(args[1]) {
		return frame.Frame{}, errWrongPass()
	}
	c.user = args[0]
	c.authenticated = true
	return frame.NewSimpleString("OK"), nil
}
