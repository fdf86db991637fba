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

import (
	"encoding/binary"
	"fmt"
)

// SuperblockNum is the block that holds the superblock.
const SuperblockNum = 1

// Superblock is the on-disk description of the file system geometry,
// stored in block 1.
type Superblock struct {
	Magic      uint32 // must be disklayout.Magic
	Size       uint32 // size of the image in blocks
	NBlocks    uint32 // number of data blocks
	NInodes    uint32 // number of inodes
	NLog       uint32 // number of log blocks
	LogStart   uint32 // block number of the first log block
	InodeStart uint32 // block number of the first inode block
	BmapStart  uint32 // block number of the first free-map block
}

// DecodeSuperblock parses a superblock from the contents of block 1.
func DecodeSuperblock(b []byte) (sb Superblock, err error) {
	if len(b) < 32 {
		err = fmt.Errorf("superblock: short block: %d bytes", len(b))
		return
	}

	sb.Magic = binary.LittleEndian.Uint32(b[0:4])
	sb.Size = binary.LittleEndian.Uint32(b[4:8])
	sb.NBlocks = binary.LittleEndian.Uint32(b[8:12])
	sb.NInodes = binary.LittleEndian.Uint32(b[12:16])
	sb.NLog = binary.LittleEndian.Uint32(b[16:20])
	sb.LogStart = binary.LittleEndian.Uint32(b[20:24])
	sb.InodeStart = binary.LittleEndian.Uint32(b[24:28])
	sb.BmapStart = binary.LittleEndian.Uint32(b[28:32])

	return
}

// Encode writes the superblock into the first 32 bytes of b.
func (sb *Superblock) Encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], sb.Magic)
	binary.LittleEndian.PutUint32(b[4:8], sb.Size)
	binary.LittleEndian.PutUint32(b[8:12], sb.NBlocks)
	binary.LittleEndian.PutUint32(b[12:16], sb.NInodes)
	binary.LittleEndian.PutUint32(b[16:20], sb.NLog)
	binary.LittleEndian.PutUint32(b[20:24], sb.LogStart)
	binary.LittleEndian.PutUint32(b[24:28], sb.InodeStart)
	binary.LittleEndian.PutUint32(b[28:32], sb.BmapStart)
}
