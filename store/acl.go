// acl.go - user records for AUTH and the ACL commands.
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
	"crypto/sha256"
	"encoding/hex"
)

// User is a minimal ACL record: flag strings plus hex SHA-256 password
// digests.
type User struct {
	Flags     []string
	Passwords []string
}

// NewUser returns a fresh passwordless user.
func NewUser() *User {
	return &User{
		Flags: []string{"nopass"},
	}
}

// AddPassword appends the digest of pwd and drops the nopass flag.
func (u *User) AddPassword(pwd string) {
	u.Passwords = append(u.Passwords, HashPassword(pwd))
	for i, f := range u.Flags {
		if f == "nopass" {
			u.Flags = append(u.Flags[:i], u.Flags[i+1:]...)
			break
		}
	}
}

// CheckPassword reports whether pwd digests to a known password.
func (u *User) CheckPassword(pwd string) bool {
	digest := HashPassword(pwd)
	for _, p := range u.Passwords {
		if p == digest {
			return true
		}
	}
	return false
}

// HashPassword returns the lowercase hex SHA-256 digest of pwd.
func HashPassword(pwd string) string {
	sum := sha256.Sum256([]byte(pwd))
	return hex.EncodeToString(sum[:])
}
