// Copyright 2025 The vkernel Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package disklayout

import "encoding/binary"

// DirName is a fixed-width directory entry name. Shorter names are
// NUL-padded; a name of exactly DirNameLen bytes has no terminator.
type DirName [DirNameLen]byte

// NameFromString converts s to fixed-width form, silently dropping bytes
// beyond DirNameLen. This matches the on-disk comparison rules: names are
// equal exactly when their fixed-width forms are equal.
func NameFromString(s string) (n DirName) {
	copy(n[:], s)
	return
}

// String returns the name up to the first NUL, or all DirNameLen bytes
// if there is none.
func (n DirName) String() string {
	for i, c := range n {
		if c == 0 {
			return string(n[:i])
		}
	}
	return string(n[:])
}

// Dirent is the on-disk directory entry. A directory's contents are a
// packed array of these; Inum zero marks a free slot.
type Dirent struct {
	Inum uint16
	Name DirName
}

// DecodeDirent parses one directory entry from b.
func DecodeDirent(b []byte) (de Dirent) {
	de.Inum = binary.LittleEndian.Uint16(b[0:2])
	copy(de.Name[:], b[2:2+DirNameLen])
	return
}

// Encode writes the directory entry into the first DirentSize bytes of b.
func (de *Dirent) Encode(b []byte) {
	binary.LittleEndian.PutUint16(b[0:2], de.Inum)
	copy(b[2:2+DirNameLen], de.Name[:])
}
