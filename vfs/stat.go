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

package vfs

import "encoding/binary"

// StatSize is the encoded size of a Stat as copied out to task memory.
const StatSize = 16

// Stat is the record returned by fstat.
type Stat struct {
	Dev   uint32
	Ino   uint32
	Type  int16
	NLink int16
	Size  uint32
}

// Encode writes the stat record in its wire form: dev, ino and size as
// little-endian u32, type and nlink as little-endian i16.
func (st *Stat) Encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], st.Dev)
	binary.LittleEndian.PutUint32(b[4:8], st.Ino)
	binary.LittleEndian.PutUint16(b[8:10], uint16(st.Type))
	binary.LittleEndian.PutUint16(b[10:12], uint16(st.NLink))
	binary.LittleEndian.PutUint32(b[12:16], st.Size)
}

// DecodeStat parses a stat record encoded by Encode.
func DecodeStat(b []byte) (st Stat) {
	st.Dev = binary.LittleEndian.Uint32(b[0:4])
	st.Ino = binary.LittleEndian.Uint32(b[4:8])
	st.Type = int16(binary.LittleEndian.Uint16(b[8:10]))
	st.NLink = int16(binary.LittleEndian.Uint16(b[10:12]))
	st.Size = binary.LittleEndian.Uint32(b[12:16])
	return
}
