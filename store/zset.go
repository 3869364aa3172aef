// zset.go - sorted set value.
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
	"gitlab.com/yawning/avl.git"
)

type zsetEntry struct {
	score  float64
	member string
}

// ZSetValue is a sorted set: a member to score map for O(1) lookup paired
// with a balanced tree ordered by (score, member) for range and rank
// queries.  The two indexes always agree.
type ZSetValue struct {
	Scores  map[string]float64
	ordered *avl.Tree
}

// TypeName implements Value.
func (v *ZSetValue) TypeName() string { return "zset" }

// NewZSet returns an empty sorted set.
func NewZSet() *ZSetValue {
	return &ZSetValue{
		Scores: make(map[string]float64),
		ordered: avl.New(func(a, b interface{}) int {
			ea, eb := a.(*zsetEntry), b.(*zsetEntry)
			switch {
			case ea.score < eb.score:
				return -1
			case ea.score > eb.score:
				return 1
			case ea.member < eb.member:
				return -1
			case ea.member > eb.member:
				return 1
			default:
				return 0
			}
		}),
	}
}

// Add upserts a member, returning true when the member is new.  An update
// removes the stale (oldScore, member) node before inserting the new pair
// so the ordered index never disagrees with the score map.
func (v *ZSetValue) Add(score float64, member string) bool {
	prev, exists := v.Scores[member]
	if exists {
		if node := v.ordered.Find(&zsetEntry{score: prev, member: member}); node != nil {
			v.ordered.Remove(node)
		}
	}
	v.Scores[member] = score
	v.ordered.Insert(&zsetEntry{score: score, member: member})
	return !exists
}

// Remove deletes a member, returning true when it existed.
func (v *ZSetValue) Remove(member string) bool {
	score, exists := v.Scores[member]
	if !exists {
		return false
	}
	delete(v.Scores, member)
	if node := v.ordered.Find(&zsetEntry{score: score, member: member}); node != nil {
		v.ordered.Remove(node)
	}
	return true
}

// Score returns the member's score.
func (v *ZSetValue) Score(member string) (float64, bool) {
	score, ok := v.Scores[member]
	return score, ok
}

// Card returns the number of members.
func (v *ZSetValue) Card() int {
	return len(v.Scores)
}

// Count returns the number of members with score in [min, max].
func (v *ZSetValue) Count(min, max float64) int {
	var count int
	iter := v.ordered.Iterator(avl.Forward)
	for node := iter.First(); node != nil; node = iter.Next() {
		e := node.Value.(*zsetEntry)
		if e.score > max {
			break
		}
		if e.score >= min {
			count++
		}
	}
	return count
}

// Rank returns the 0-based position of member in score-then-lex order.
func (v *ZSetValue) Rank(member string) (int, bool) {
	if _, ok := v.Scores[member]; !ok {
		return 0, false
	}
	var rank int
	iter := v.ordered.Iterator(avl.Forward)
	for node := iter.First(); node != nil; node = iter.Next() {
		e := node.Value.(*zsetEntry)
		if e.member == member {
			return rank, true
		}
		rank++
	}
	return 0, false
}

// Range returns the members in index range [start, stop], with negative
// indices counted from the end and the stop bound inclusive.
func (v *ZSetValue) Range(start, stop int64) []string {
	members := make([]string, 0, v.ordered.Len())
	iter := v.ordered.Iterator(avl.Forward)
	for node := iter.First(); node != nil; node = iter.Next() {
		members = append(members, node.Value.(*zsetEntry).member)
	}
	return sliceRange(members, start, stop)
}
