// frame_test.go - RESP frame codec tests.
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

package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWireForms(t *testing.T) {
	cases := []struct {
		f    Frame
		wire string
	}{
		{NewSimpleString("PONG"), "+PONG\r\n"},
		{NewSimpleError("ERR syntax error"), "-ERR syntax error\r\n"},
		{NewInteger(42), ":42\r\n"},
		{NewInteger(-7), ":-7\r\n"},
		{NewBulkStringFromString("hello"), "$5\r\nhello\r\n"},
		{NewBulkStringFromString(""), "$0\r\n\r\n"},
		{NewNullString(), "$-1\r\n"},
		{NewNullArray(), "*-1\r\n"},
		{NewNil(), "_\r\n"},
		{Frame{Type: Boolean, Bool: true}, "#t\r\n"},
		{Frame{Type: Boolean, Bool: false}, "#f\r\n"},
		{Frame{Type: Double, Dbl: 1.5}, ",1.5\r\n"},
		{Frame{Type: BigNumber, Str: "349857348571"}, "(349857348571\r\n"},
		{Frame{Type: BulkError, Bulk: []byte("SYNTAX")}, "!6\r\nSYNTAX\r\n"},
		{Frame{Type: Verbatim, Enc: "txt", Str: "some text"}, "=9\r\ntxt:some text\r\n"},
		{NewStringArray("ECHO", "hello"), "*2\r\n$4\r\nECHO\r\n$5\r\nhello\r\n"},
		{Frame{Type: Set, Items: []Frame{NewBulkStringFromString("a")}}, "~1\r\n$1\r\na\r\n"},
		{Frame{Type: Push, Items: []Frame{NewBulkStringFromString("pubsub")}}, ">1\r\n$6\r\npubsub\r\n"},
		{Frame{Type: Map, Pairs: []Pair{{Key: "k", Value: NewInteger(1)}}}, "%1\r\n$1\r\nk\r\n:1\r\n"},
		{Frame{Type: Attributes, Pairs: []Pair{{Key: "ttl", Value: NewInteger(3)}}}, "|1\r\n$3\r\nttl\r\n:3\r\n"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.wire, string(tc.f.Encode()))
	}
}

func TestEncodeRDBNoTerminator(t *testing.T) {
	blob := []byte{0x52, 0x45, 0x44, 0x49, 0x53}
	f := NewRDB(blob)
	wire := f.Encode()
	require.Equal(t, "$5\r\nREDIS", string(wire))
	require.False(t, bytes.HasSuffix(wire, crlf))
}

func roundTripFrames() []Frame {
	return []Frame{
		NewSimpleString("OK"),
		NewSimpleError("WRONGTYPE Operation against a key holding the wrong kind of value"),
		NewInteger(0),
		NewInteger(-9223372036854775808),
		NewBulkStringFromString("with\r\nbinary\x00bytes"),
		NewNullString(),
		NewNullArray(),
		NewNil(),
		Frame{Type: Boolean, Bool: true},
		Frame{Type: Double, Dbl: 3},
		Frame{Type: Double, Dbl: -0.125},
		Frame{Type: BigNumber, Str: "-123456789012345678901234567890"},
		Frame{Type: BulkError, Bulk: []byte("ERR detail")},
		Frame{Type: Verbatim, Enc: "mkd", Str: "# heading"},
		NewStringArray("SET", "k", "v", "PX", "100"),
		NewArray([]Frame{
			NewStringArray("nested"),
			NewInteger(12),
			NewNullString(),
		}),
		Frame{Type: Set, Items: []Frame{NewBulkStringFromString("x"), NewBulkStringFromString("y")}},
		Frame{Type: Push, Items: []Frame{NewBulkStringFromString("message"), NewBulkStringFromString("ch"), NewBulkStringFromString("hi")}},
		Frame{Type: Map, Pairs: []Pair{
			{Key: "first", Value: NewBulkStringFromString("a")},
			{Key: "second", Value: NewInteger(2)},
		}},
		Frame{Type: Attributes, Pairs: []Pair{{Key: "meta", Value: NewNil()}}},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, f := range roundTripFrames() {
		wire := f.Encode()
		consumed, got, err := Parse(wire)
		require.NoError(t, err, "frame %+v", f)
		require.Equal(t, len(wire), consumed)
		require.Equal(t, f, got)
	}
}

func TestParseIncomplete(t *testing.T) {
	for _, f := range roundTripFrames() {
		wire := f.Encode()
		for cut := 0; cut < len(wire); cut++ {
			_, _, err := Parse(wire[:cut])
			require.ErrorIs(t, err, ErrIncomplete, "cut=%d wire=%q", cut, wire)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	cases := [][]byte{
		[]byte("@oops\r\n"),
		[]byte(":notanumber\r\n"),
		[]byte("$-2\r\n"),
		[]byte("$3\r\nabcXY"),
		[]byte("#x\r\n"),
		[]byte(",abc\r\n"),
		[]byte("*-2\r\n"),
		[]byte("%1\r\n:1\r\n:2\r\n"),
		[]byte("+caf\xc3\x28\r\n"),
	}
	for _, wire := range cases {
		_, _, err := Parse(wire)
		var mErr *MalformedError
		require.ErrorAs(t, err, &mErr, "wire=%q", wire)
	}
}

func TestParseConsumedSpan(t *testing.T) {
	first := NewStringArray("PING")
	second := NewStringArray("ECHO", "hello")
	wire := append(first.Encode(), second.Encode()...)

	consumed, got, err := Parse(wire)
	require.NoError(t, err)
	require.Equal(t, first.WireLen(), consumed)
	require.Equal(t, first, got)

	consumed2, got2, err := Parse(wire[consumed:])
	require.NoError(t, err)
	require.Equal(t, second.WireLen(), consumed2)
	require.Equal(t, second, got2)
	require.Equal(t, len(wire), consumed+consumed2)
}

// chunkReader yields its input in fixed size chunks to exercise partial
// frame buffering.
type chunkReader struct {
	data  []byte
	chunk int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.chunk
	if n > len(c.data) {
		n = len(c.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func TestReaderStreaming(t *testing.T) {
	frames := roundTripFrames()
	var wire []byte
	for i := range frames {
		wire = frames[i].Append(wire)
	}

	for _, chunk := range []int{1, 2, 3, 7, 64, len(wire)} {
		r := NewReader(&chunkReader{data: append([]byte(nil), wire...), chunk: chunk})
		var total int
		for _, want := range frames {
			got, raw, err := r.ReadFrame()
			require.NoError(t, err, "chunk=%d", chunk)
			require.Equal(t, want, got)
			require.Equal(t, want.Encode(), raw)
			total += len(raw)
		}
		require.Equal(t, len(wire), total)
		_, _, err := r.ReadFrame()
		require.ErrorIs(t, err, io.EOF)
	}
}

func TestReaderResetMidFrame(t *testing.T) {
	wire := NewStringArray("SET", "k", "v").Encode()
	r := NewReader(bytes.NewReader(wire[:len(wire)-3]))
	_, _, err := r.ReadFrame()
	require.ErrorIs(t, err, ErrConnReset)
}

func TestReaderRDB(t *testing.T) {
	blob := []byte("\x52\x45\x44\x49\x53\x30\x30\x31\x31fake")
	var wire []byte
	rdb := NewRDB(blob)
	wire = rdb.Append(wire)
	// A propagated command follows the blob immediately.
	next := NewStringArray("SET", "x", "1")
	wire = next.Append(wire)

	r := NewReader(&chunkReader{data: wire, chunk: 3})
	got, n, err := r.ReadRDB()
	require.NoError(t, err)
	require.Equal(t, blob, got)
	require.Equal(t, rdb.WireLen(), n)

	f, raw, err := r.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, next, f)
	require.Equal(t, next.Encode(), raw)
}

func TestReaderBufferCap(t *testing.T) {
	// A declared bulk length beyond the cap must abort, not buffer forever.
	huge := append([]byte("$999999999\r\n"), make([]byte, maxBufferLen+readChunk)...)
	r := NewReader(&chunkReader{data: huge, chunk: 1 << 20})
	_, _, err := r.ReadFrame()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrBufferFull))
}

func TestArgs(t *testing.T) {
	f := NewStringArray("GET", "key")
	args, ok := f.Args()
	require.True(t, ok)
	require.Equal(t, []string{"GET", "key"}, args)

	notArray := NewInteger(1)
	_, ok = notArray.Args()
	require.False(t, ok)

	mixed := NewArray([]Frame{NewInteger(1)})
	_, ok = mixed.Args()
	require.False(t, ok)
}
