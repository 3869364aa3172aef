// handlers_stream.go - stream commands.
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
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/copperkv/copperd/frame"
	"github.com/copperkv/copperd/store"
)

// stream fetches the stream behind key, optionally creating it.  The
// store lock must be held.
func (c *incomingConn) stream(key string, create bool) (*store.StreamValue, error) {
	v, ok := c.st.Get(key)
	if !ok {
		if !create {
			return nil, nil
		}
		sv := &store.StreamValue{}
		c.st.Put(key, sv)
		return sv, nil
	}
	sv, ok := v.(*store.StreamValue)
	if !ok {
		return nil, errWrongType()
	}
	return sv, nil
}

func entryFrame(e store.StreamEntry) frame.Frame {
	fields := make([]frame.Frame, 0, len(e.Fields))
	for _, f := range e.Fields {
		fields = append(fields, frame.NewBulkStringFromString(f))
	}
	return frame.NewArray([]frame.Frame{
		frame.NewBulkStringFromString(e.ID.String()),
		frame.NewArray(fields),
	})
}

func entriesFrame(entries []store.StreamEntry) frame.Frame {
	items := make([]frame.Frame, 0, len(entries))
	for _, e := range entries {
		items = append(items, entryFrame(e))
	}
	return frame.NewArray(items)
}

// XADD key <* | id> field value [field value ...]
func (c *incomingConn) xadd(args []string) (frame.Frame, error) {
	if len(args) < 4 || len(args)%2 != 0 {
		return frame.Frame{}, errWrongNumArguments("xadd")
	}
	key, idArg := args[0], args[1]
	fields := args[2:]

	c.st.Lock()
	defer c.st.Unlock()

	sv, err := c.stream(key, true)
	if err != nil {
		return frame.Frame{}, err
	}
	id, err := sv.NextID(idArg)
	if err != nil {
		return frame.Frame{}, errSyntax()
	}
	if id == (store.StreamEntryID{}) {
		return frame.Frame{}, errXAddIDZero()
	}
	if len(sv.Entries) > 0 && !sv.Last().Less(id) {
		return frame.Frame{}, errXAddIDTooSmall()
	}
	sv.Append(store.StreamEntry{ID: id, Fields: append([]string(nil), fields...)})
	return frame.NewBulkStringFromString(id.String()), nil
}

// XDEL key id [id ...]
func (c *incomingConn) xdel(args []string) (frame.Frame, error) {
	if len(args) < 2 {
		return frame.Frame{}, errWrongNumArguments("xdel")
	}

	c.st.Lock()
	defer c.st.Unlock()

	sv, err := c.stream(args[0], false)
	if err != nil {
		return frame.Frame{}, err
	}
	if sv == nil {
		return frame.NewInteger(0), nil
	}
	return frame.NewInteger(int64(sv.Delete(args[1:]))), nil
}

// XLEN key
func (c *incomingConn) xlen(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("xlen")
	}

	c.st.Lock()
	defer c.st.Unlock()

	c.st.RemoveExpired()
	sv, err := c.stream(args[0], false)
	if err != nil {
		return frame.Frame{}, err
	}
	if sv == nil {
		return frame.NewInteger(0), nil
	}
	return frame.NewInteger(int64(len(sv.Entries))), nil
}

// XRANGE key start end
func (c *incomingConn) xrange(args []string) (frame.Frame, error) {
	if len(args) < 3 {
		return frame.Frame{}, errWrongNumArguments("xrange")
	}

	var start, end store.StreamEntryID
	var err error
	switch args[1] {
	case "-":
		start = store.StreamEntryID{}
	default:
		start, err = store.ParseRangeID(args[1], false)
		if err != nil {
			return frame.Frame{}, errSyntax()
		}
	}
	switch args[2] {
	case "+":
		end = store.StreamEntryID{Time: math.MaxUint64, Seq: math.MaxUint64}
	default:
		end, err = store.ParseRangeID(args[2], true)
		if err != nil {
			return frame.Frame{}, errSyntax()
		}
	}

	c.st.Lock()
	defer c.st.Unlock()

	c.st.RemoveExpired()
	sv, err := c.stream(args[0], false)
	if err != nil {
		return frame.Frame{}, err
	}
	if sv == nil {
		return frame.NewArray(nil), nil
	}
	return entriesFrame(sv.EntriesRange(start, end)), nil
}

// XREAD [COUNT count] [BLOCK milliseconds] STREAMS key [key ...] id [id ...]
func (c *incomingConn) xread(args []string) (frame.Frame, error) {
	var blockMillis int64 = -1
	count := 0

	i := 0
loop:
	for i < len(args) {
		switch strings.ToLower(args[i]) {
		case "count":
			if i+1 >= len(args) {
				return frame.Frame{}, errWrongNumArguments("xread")
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil {
				return frame.Frame{}, errSyntax()
			}
			count = n
			i += 2
		case "block":
			if i+1 >= len(args) {
				return frame.Frame{}, errWrongNumArguments("xread")
			}
			n, err := strconv.ParseInt(args[i+1], 10, 64)
			if err != nil || n < 0 {
				return frame.Frame{}, errSyntax()
			}
			blockMillis = n
			i += 2
		case "streams":
			i++
			break loop
		default:
			return frame.Frame{}, errSyntax()
		}
	}

	rest := args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return frame.Frame{}, errWrongNumArguments("xread")
	}
	n := len(rest) / 2
	keys := rest[:n]
	ids := rest[n:]

	// Resolve the per stream start positions up front; "$" pins to the
	// tail as of the call.
	starts := make([]store.StreamEntryID, n)
	c.st.Lock()
	c.st.RemoveExpired()
	for j, key := range keys {
		sv, err := c.stream(key, true)
		if err != nil {
			c.st.Unlock()
			return frame.Frame{}, err
		}
		switch ids[j] {
		case "$":
			starts[j] = sv.Last()
		case "-":
			starts[j] = store.StreamEntryID{}
		default:
			id, err := store.ParseRangeID(ids[j], false)
			if err != nil {
				c.st.Unlock()
				return frame.Frame{}, errSyntax()
			}
			starts[j] = id
		}
	}
	c.st.Unlock()

	var deadline time.Time
	switch {
	case blockMillis < 0:
		deadline = time.Now() // single probe
	case blockMillis > 0:
		deadline = time.Now().Add(time.Duration(blockMillis) * time.Millisecond)
	}

	for {
		c.st.Lock()
		result := []frame.Frame{}
		for j, key := range keys {
			sv, err := c.stream(key, true)
			if err != nil {
				c.st.Unlock()
				return frame.Frame{}, err
			}
			entries := sv.EntriesAfter(starts[j])
			if len(entries) == 0 {
				continue
			}
			if count > 0 && len(entries) > count {
				entries = entries[:count]
			}
			result = append(result, frame.NewArray([]frame.Frame{
				frame.NewBulkStringFromString(key),
				entriesFrame(entries),
			}))
		}
		c.st.Unlock()

		if len(result) > 0 {
			return frame.NewArray(result), nil
		}
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
