// handlers_zset.go - sorted set commands.
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

	"github.com/copperkv/copperd/frame"
	"github.com/copperkv/copperd/store"
)

// zset fetches the sorted set behind key, optionally creating it.  The
// store lock must be held.
func (c *incomingConn) zset(key string, create bool) (*store.ZSetValue, error) {
	v, ok := c.st.Get(key)
	if !ok {
		if !create {
			return nil, nil
		}
		zv := store.NewZSet()
		c.st.Put(key, zv)
		return zv, nil
	}
	zv, ok := v.(*store.ZSetValue)
	if !ok {
		return nil, errWrongType()
	}
	return zv, nil
}

// ZADD key score member [score member ...]
func (c *incomingConn) zadd(args []string) (frame.Frame, error) {
	if len(args) < 3 || len(args)%2 != 1 {
		return frame.Frame{}, errWrongNumArguments("zadd")
	}

	c.st.Lock()
	defer c.st.Unlock()

	zv, err := c.zset(args[0], true)
	if err != nil {
		return frame.Frame{}, err
	}
	var added int64
	for i := 1; i < len(args); i += 2 {
		score, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return frame.Frame{}, errSyntax()
		}
		if zv.Add(score, args[i+1]) {
			added++
		}
	}
	return frame.NewInteger(added), nil
}

// ZCARD key
func (c *incomingConn) zcard(args []string) (frame.Frame, error) {
	if len(args) < 1 {
		return frame.Frame{}, errWrongNumArguments("zcard")
	}

	c.st.Lock()
	defer c.st.Unlock()

	c.st.RemoveExpired()
	zv, err := c.zset(args[0], false)
	if err != nil {
		return frame.Frame{}, err
	}
	if zv == nil {
		return frame.NewInteger(0), nil
	}
	return frame.NewInteger(int64(zv.Card())), nil
}

// ZCOUNT key min max
func (c *incomingConn) zcount(args []string) (frame.Frame, error) {
	if len(args) < 3 {
		return frame.Frame{}, errWrongNumArguments("zcount")
	}
	min, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return frame.Frame{}, errSyntax()
	}
	max, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return frame.Frame{}, errSyntax()
	}

	c.st.Lock()
	defer c.st.Unlock()

	c.st.RemoveExpired()
	zv, err := c.zset(args[0], false)
	if err != nil {
		return frame.Frame{}, err
	}
	if zv == nil {
		return frame.NewInteger(0), nil
	}
	return frame.NewInteger(int64(zv.Count(min, max))), nil
}

// ZRANK key member
func (c *incomingConn) zrank(args []string) (frame.Frame, error) {
	if len(args) < 2 {
		return frame.Frame{}, errWrongNumArguments("zrank")
	}

	c.st.Lock()
	defer c.st.Unlock()

	c.st.RemoveExpired()
	zv, err := c.zset(args[0], false)
	if err != nil {
		return frame.Frame{}, err
	}
	if zv == nil {
		return frame.NewNullString(), nil
	}
	rank, ok := zv.Rank(args[1])
	if !ok {
		return frame.NewNullString(), nil
	}
	return frame.NewInteger(int64(rank)), nil
}

// ZRANGE key start stop
func (c *incomingConn) zrange(args []string) (frame.Frame, error) {
	if len(args) < 3 {
		return frame.Frame{}, errWrongNumArguments("zrange")
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
	zv, err := c.zset(args[0], false)
	if err != nil {
		return frame.Frame{}, err
	}
	items := []frame.Frame{}
	if zv != nil {
		for _, m := range zv.Range(start, stop) {
			items = append(items, frame.NewBulkStringFromString(m))
		}
	}
	return frame.NewArray(items), nil
}

// ZREM key member [member ...]
func (c *incomingConn) zrem(args []string) (frame.Frame, error) {
	if len(args) < 2 {
		return frame.Frame{}, errWrongNumArguments("zrem")
	}

	c.st.Lock()
	defer c.st.Unlock()

	zv, err := c.zset(args[0], false)
	if err != nil {
		return frame.Frame{}, err
	}
	if zv == nil {
		return frame.NewInteger(0), nil
	}
	var removed int64
	for _, m := range args[1:] {
		if zv.Remove(m) {
			removed++
		}
	}
	return frame.NewInteger(removed), nil
}

// ZSCORE key member
func (c *incomingConn) zscore(args []string) (frame.Frame, error) {
	if len(args) < 2 {
		return frame.Frame{}, errWrongNumArguments("zscore")
	}

	c.st.Lock()
	defer c.st.Unlock()

	c.st.RemoveExpired()
	zv, err := c.zset(args[0], false)
	if err != nil {
		return frame.Frame{}, err
	}
	if zv == nil {
		return frame.NewNullString(), nil
	}
	score, ok := zv.Score(args[1])
	if !ok {
		return frame.NewNullString(), nil
	}
	return frame.NewBulkStringFromString(strconv.FormatFloat(score, 'g', -1, 64)), nil
}
