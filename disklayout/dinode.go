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

// Dinode is the on-disk inode record. Records are packed InodesPerBlock
// to a block, starting at Superblock.InodeStart.
type Dinode struct {
	Type  int16  // file type, TypeFree when unallocated
	Major int16  // device major number (TypeDevice only)
	Minor int16  // device minor number (TypeDevice only)
	NLink int16  // number of directory entries referring to this inode
	Size  uint32 // file size in bytes
	Addrs [NDirect + 1]uint32
}

// DecodeDinode parses the dinode at byte offset off within an inode block.
func DecodeDinode(b []byte, off int) (di Dinode) {
	b = b[off : off+InodeSize]

	di.Type = int16(binary.LittleEndian.Uint16(b[0:2]))
	di.Major = int16(binary.LittleEndian.Uint16(b[2:4]))
	di.Minor = int16(binary.LittleEndian.Uint16(b[4:6]))
	di.NLink = int16(binary.LittleEndian.Uint16(b[6:8]))
	di.Size = binary.LittleEndian.Uint32(b[8:12])
	for i := 0; i <= NDirect; i++ {
		di.Addrs[i] = binary.LittleEndian.Uint32(b[12+4*i : 16+4*i])
	}

	return
}

// Encode writes the dinode at byte offset off within an inode block.
func (di *Dinode) Encode(b []byte, off int) {
	b = b[off : off+InodeSize]

	binary.LittleEndian.PutUint16(b[0:2], uint16(di.Type))
	binary.LittleEndian.PutUint16(b[2:4], uint16(di.Major))
	binary.LittleEndian.PutUint16(b[4:6], uint16(di.Minor))
	binary.LittleEndian.PutUint16(b[6:8], uint16(di.NLink))
	binary.LittleEndian.PutUint32(b[8:12], di.Size)
	for i := 0; i <= NDirect; i++ {
		binary.LittleEndian.PutUint32(b[12+4*i:16+4*i], di.Addrs[i])
	}
}

// DinodeOffset returns the byte offset of inode inum within its block.
func DinodeOffset(inum uint32) int {
	return int(inum%InodesPerBlock) * InodeSize
}
