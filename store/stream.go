// stream.go - stream value and entry identifiers.
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
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// StreamEntryID identifies an entry within a stream: a millisecond
// timestamp and a sequence number, ordered lexicographically.
type StreamEntryID struct {
	Time uint64
	Seq  uint64
}

// Less reports whether id orders strictly before other.
func (id StreamEntryID) Less(other StreamEntryID) bool {
	if id.Time != other.Time {
		return id.Time < other.Time
	}
	return id.Seq < other.Seq
}

// String returns the textual "<ms>-<seq>" form.
func (id StreamEntryID) String() string {
	return fmt.Sprintf("%d-%d", id.Time, id.Seq)
}

// ParseStreamEntryID parses the explicit "<ms>-<seq>" form.
func ParseStreamEntryID(s string) (StreamEntryID, error) {
	t, seq, ok := splitStreamID(s)
	if !ok || seq == "" {
		return StreamEntryID{}, fmt.Errorf("store: invalid stream ID: %q", s)
	}
	tv, err := strconv.ParseUint(t, 10, 64)
	if err != nil {
		return StreamEntryID{}, fmt.Errorf("store: invalid stream ID: %q", s)
	}
	sv, err := strconv.ParseUint(seq, 10, 64)
	if err != nil {
		return StreamEntryID{}, fmt.Errorf("store: invalid stream ID: %q", s)
	}
	return StreamEntryID{Time: tv, Seq: sv}, nil
}

// ParseRangeID parses a range bound: a bare "<ms>" expands to sequence 0
// at a start bound and to the maximum sequence at an end bound.
func ParseRangeID(s string, end bool) (StreamEntryID, error) {
	t, seq, ok := splitStreamID(s)
	if !ok {
		return StreamEntryID{}, fmt.Errorf("store: invalid stream ID: %q", s)
	}
	tv, err := strconv.ParseUint(t, 10, 64)
	if err != nil {
		return StreamEntryID{}, fmt.Errorf("store: invalid stream ID: %q", s)
	}
	if seq == "" {
		if end {
			return StreamEntryID{Time: tv, Seq: math.MaxUint64}, nil
		}
		return StreamEntryID{Time: tv, Seq: 0}, nil
	}
	sv, err := strconv.ParseUint(seq, 10, 64)
	if err != nil {
		return StreamEntryID{}, fmt.Errorf("store: invalid stream ID: %q", s)
	}
	return StreamEntryID{Time: tv, Seq: sv}, nil
}

func splitStreamID(s string) (t, seq string, ok bool) {
	if s == "" {
		return "", "", false
	}
	if i := strings.IndexByte(s, '-'); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", true
}

// StreamEntry is one appended element: an ID plus field/value pairs in
// submission order.
type StreamEntry struct {
	ID     StreamEntryID
	Fields []string
}

// StreamValue holds an append-only sequence of entries with strictly
// increasing IDs.
type StreamValue struct {
	Entries []StreamEntry
}

// TypeName implements Value.
func (v *StreamValue) TypeName() string { return "stream" }

// Last returns the tail entry ID, or the zero ID for an empty stream.
func (v *StreamValue) Last() StreamEntryID {
	if len(v.Entries) == 0 {
		return StreamEntryID{}
	}
	return v.Entries[len(v.Entries)-1].ID
}

// NextID resolves the textual ID argument of an append: "*" takes the
// wall clock, "<ms>-*" picks the next sequence for that timestamp, and
// the explicit form is used verbatim.
func (v *StreamValue) NextID(arg string) (StreamEntryID, error) {
	if arg == "*" {
		return StreamEntryID{Time: uint64(time.Now().UnixMilli()), Seq: 0}, nil
	}
	t, seq, ok := splitStreamID(arg)
	if ok && seq == "*" {
		tv, err := strconv.ParseUint(t, 10, 64)
		if err != nil {
			return StreamEntryID{}, fmt.Errorf("store: invalid stream ID: %q", arg)
		}
		id := StreamEntryID{Time: tv, Seq: 0}
		if tv == 0 {
			id.Seq = 1
		}
		if last := v.Last(); len(v.Entries) > 0 && last.Time == tv {
			id.Seq = last.Seq + 1
		}
		return id, nil
	}
	return ParseStreamEntryID(arg)
}

// Append adds an entry; the ID must be strictly greater than the current
// tail.
func (v *StreamValue) Append(e StreamEntry) {
	v.Entries = append(v.Entries, e)
}

// EntriesAfter returns all entries with ID strictly greater than id.
func (v *StreamValue) EntriesAfter(id StreamEntryID) []StreamEntry {
	i := sort.Search(len(v.Entries), func(i int) bool {
		return id.Less(v.Entries[i].ID)
	})
	return v.Entries[i:]
}

// EntriesRange returns all entries with start <= ID <= end.
func (v *StreamValue) EntriesRange(start, end StreamEntryID) []StreamEntry {
	lo := sort.Search(len(v.Entries), func(i int) bool {
		return !v.Entries[i].ID.Less(start)
	})
	hi := sort.Search(len(v.Entries), func(i int) bool {
		return end.Less(v.Entries[i].ID)
	})
	if lo >= hi {
		return nil
	}
	return v.Entries[lo:hi]
}

// Delete removes the entries whose textual ID matches any of ids,
// returning the count removed.
func (v *StreamValue) Delete(ids []string) int {
	var removed int
	for _, id := range ids {
		for i := range v.Entries {
			if v.Entries[i].ID.String() == id {
				v.Entries = append(v.Entries[:i], v.Entries[i+1:]...)
				removed++
				break
			}
		}
	}
	return removed
}
