// zset_test.go - sorted set tests.
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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZSetAdd(t *testing.T) {
	z := NewZSet()
	require.True(t, z.Add(1, "a"))
	require.True(t, z.Add(2, "b"))
	require.False(t, z.Add(3, "a")) // update, not an insert

	require.Equal(t, 2, z.Card())
	score, ok := z.Score("a")
	require.True(t, ok)
	require.Equal(t, 3.0, score)
	require.Equal(t, []string{"b", "a"}, z.Range(0, -1))
}

// An update must remove the stale ordered entry; the two indexes always
// agree.
func TestZSetUpdateConsistency(t *testing.T) {
	z := NewZSet()
	z.Add(5, "m")
	z.Add(1, "m")

	require.Equal(t, 1, z.Card())
	require.Equal(t, []string{"m"}, z.Range(0, -1))
	require.Equal(t, 1, z.Count(0, 10))
	require.Equal(t, 0, z.Count(4, 6))
}

func TestZSetTieBreaksLex(t *testing.T) {
	z := NewZSet()
	z.Add(1, "b")
	z.Add(1, "a")
	z.Add(1, "c")

	require.Equal(t, []string{"a", "b", "c"}, z.Range(0, -1))
	rank, ok := z.Rank("b")
	require.True(t, ok)
	require.Equal(t, 1, rank)
}

func TestZSetRemove(t *testing.T) {
	z := NewZSet()
	z.Add(1, "a")
	z.Add(2, "b")

	require.True(t, z.Remove("a"))
	require.False(t, z.Remove("a"))
	require.Equal(t, 1, z.Card())
	require.Equal(t, []string{"b"}, z.Range(0, -1))
	_, ok := z.Score("a")
	require.False(t, ok)
}

func TestZSetRank(t *testing.T) {
	z := NewZSet()
	z.Add(10, "x")
	z.Add(20, "y")
	z.Add(30, "z")

	rank, ok := z.Rank("x")
	require.True(t, ok)
	require.Equal(t, 0, rank)
	rank, ok = z.Rank("z")
	require.True(t, ok)
	require.Equal(t, 2, rank)
	_, ok = z.Rank("missing")
	require.False(t, ok)
}

func TestZSetCount(t *testing.T) {
	z := NewZSet()
	for i, m := range []string{"a", "b", "c", "d"} {
		z.Add(float64(i), m)
	}
	require.Equal(t, 4, z.Count(0, 3))
	require.Equal(t, 2, z.Count(1, 2))
	require.Equal(t, 0, z.Count(10, 20))
}

func TestZSetRangeNegativeIndices(t *testing.T) {
	z := NewZSet()
	for i, m := range []string{"a", "b", "c", "d"} {
		z.Add(float64(i), m)
	}
	require.Equal(t, []string{"c", "d"}, z.Range(-2, -1))
	require.Equal(t, []string{"a", "b"}, z.Range(0, 1))
	require.Equal(t, []string{"a", "b", "c", "d"}, z.Range(0, 99))
}
