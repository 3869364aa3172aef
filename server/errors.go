// errors.go - client visible command errors.
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

import "fmt"

// commandError is an error whose text is sent to the client verbatim as a
// SimpleError line.  A command error is always local: the connection
// continues afterwards.
type commandError string

func (e commandError) Error() string {
	return string(e)
}

func errWrongNumArguments(cmd string) error {
	return commandError(fmt.Sprintf("ERR wrong number of arguments for '%s' command", cmd))
}

func errSyntax() error {
	return commandError("ERR syntax error")
}

func errNotInteger() error {
	return commandError("ERR value is not an integer or out of range")
}

func errWrongType() error {
	return commandError("WRONGTYPE Operation against a key holding the wrong kind of value")
}

func errExecWithoutMulti() error {
	return commandError("ERR EXEC without MULTI")
}

func errDiscardWithoutMulti() error {
	return commandError("ERR DISCARD without MULTI")
}

func errSubscriberMode(cmd string) error {
	return commandError(fmt.Sprintf("ERR Can't execute '%s': only (P|S)SUBSCRIBE / (P|S)UNSUBSCRIBE / PING / QUIT / RESET are allowed in this context", cmd))
}

func errWrongPass() error {
	return commandError("WRONGPASS invalid username-password pair or user is disabled.")
}

func errXAddIDTooSmall() error {
	return commandError("ERR The ID specified in XADD is equal or smaller than the target stream top item")
}

func errXAddIDZero() error {
	return commandError("ERR The ID specified in XADD must be greater than 0-0")
}
