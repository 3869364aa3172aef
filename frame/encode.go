// encode.go - RESP frame encoder.
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

import "strconv"

var crlf = []byte("\r\n")

// Append encodes f and appends the wire bytes to dst, returning the
// extended slice.  Encoding is byte-exact: replicas and offset accounting
// depend on a frame having exactly one wire form.
func (f *Frame) Append(dst []byte) []byte {
	switch f.Type {
	case SimpleString:
		dst = append(dst, '+')
		dst = append(dst, f.Str...)
		dst = append(dst, crlf...)
	case SimpleError:
		dst = append(dst, '-')
		dst = append(dst, f.Str...)
		dst = append(dst, crlf...)
	case Integer:
		dst = append(dst, ':')
		dst = strconv.AppendInt(dst, f.Int, 10)
		dst = append(dst, crlf...)
	case BulkString:
		dst = appendBulk(dst, '$', f.Bulk)
	case BulkError:
		dst = appendBulk(dst, '!', f.Bulk)
	case Array:
		dst = appendAggregate(dst, '*', f.Items)
	case Boolean:
		if f.Bool {
			dst = append(dst, "#t\r\n"...)
		} else {
			dst = append(dst, "#f\r\n"...)
		}
	case Double:
		dst = append(dst, ',')
		dst = strconv.AppendFloat(dst, f.Dbl, 'g', -1, 64)
		dst = append(dst, crlf...)
	case BigNumber:
		dst = append(dst, '(')
		dst = append(dst, f.Str...)
		dst = append(dst, crlf...)
	case Verbatim:
		dst = append(dst, '=')
		// The length prefix counts the body only, not the encoding tag.
		dst = strconv.AppendInt(dst, int64(len(f.Str)), 10)
		dst = append(dst, crlf...)
		dst = append(dst, f.Enc...)
		dst = append(dst, ':')
		dst = append(dst, f.Str...)
		dst = append(dst, crlf...)
	case Map:
		dst = appendPairs(dst, '%', f.Pairs)
	case Attributes:
		dst = appendPairs(dst, '|', f.Pairs)
	case Set:
		dst = appendAggregate(dst, '~', f.Items)
	case Push:
		dst = appendAggregate(dst, '>', f.Items)
	case RDB:
		// Deliberately no trailing CRLF; the replication offset contract
		// counts the blob as prefix + payload only.
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(f.Bulk)), 10)
		dst = append(dst, crlf...)
		dst = append(dst, f.Bulk...)
	case NullString:
		dst = append(dst, "$-1\r\n"...)
	case NullArray:
		dst = append(dst, "*-1\r\n"...)
	case Nil:
		dst = append(dst, "_\r\n"...)
	}
	return dst
}

// Encode returns the wire bytes of f.
func (f *Frame) Encode() []byte {
	return f.Append(nil)
}

// WireLen returns the encoded length of f in bytes.
func (f *Frame) WireLen() int {
	return len(f.Encode())
}

func appendBulk(dst []byte, prefix byte, b []byte) []byte {
	dst = append(dst, prefix)
	dst = strconv.AppendInt(dst, int64(len(b)), 10)
	dst = append(dst, crlf...)
	dst = append(dst, b...)
	dst = append(dst, crlf...)
	return dst
}

func appendAggregate(dst []byte, prefix byte, items []Frame) []byte {
	dst = append(dst, prefix)
	dst = strconv.AppendInt(dst, int64(len(items)), 10)
	dst = append(dst, crlf...)
	for i := range items {
		dst = items[i].Append(dst)
	}
	return dst
}

func appendPairs(dst []byte, prefix byte, pairs []Pair) []byte {
	dst = append(dst, prefix)
	dst = strconv.AppendInt(dst, int64(len(pairs)), 10)
	dst = append(dst, crlf...)
	for i := range pairs {
		dst = appendBulk(dst, '$', []byte(pairs[i].Key))
		dst = pairs[i].Value.Append(dst)
	}
	return dst
}
