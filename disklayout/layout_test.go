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

package disklayout_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkernel/vfs/disklayout"
)

func TestSuperblockWireFormat(t *testing.T) {
	// Field order and endianness are fixed by the disk format; build the
	// block by hand and make sure the decoder agrees.
	b := make([]byte, disklayout.BlockSize)
	fields := []uint32{disklayout.Magic, 1000, 941, 200, 30, 2, 32, 45}
	for i, v := range fields {
		binary.LittleEndian.PutUint32(b[4*i:], v)
	}

	sb, err := disklayout.DecodeSuperblock(b)

	require.NoError(t, err)
	assert.Equal(t, uint32(disklayout.Magic), sb.Magic)
	assert.Equal(t, uint32(1000), sb.Size)
	assert.Equal(t, uint32(941), sb.NBlocks)
	assert.Equal(t, uint32(200), sb.NInodes)
	assert.Equal(t, uint32(30), sb.NLog)
	assert.Equal(t, uint32(2), sb.LogStart)
	assert.Equal(t, uint32(32), sb.InodeStart)
	assert.Equal(t, uint32(45), sb.BmapStart)

	out := make([]byte, disklayout.BlockSize)
	sb.Encode(out)
	assert.Equal(t, b[:32], out[:32])
}

func TestDinodeSizeConstants(t *testing.T) {
	// Eight inodes to a 512-byte block.
	assert.Equal(t, 64, disklayout.InodeSize)
	assert.Equal(t, uint32(8), uint32(disklayout.InodesPerBlock))
	assert.Equal(t, 16, disklayout.DirentSize)
	assert.Equal(t, 140, disklayout.MaxFileBlocks)
}

func TestDinodeRoundTripAtOffset(t *testing.T) {
	di := disklayout.Dinode{
		Type:  disklayout.TypeFile,
		Major: 3,
		Minor: 4,
		NLink: 2,
		Size:  12345,
	}
	for i := range di.Addrs {
		di.Addrs[i] = uint32(100 + i)
	}

	// Encode into the slot for inode 5 of its block and read it back.
	b := make([]byte, disklayout.BlockSize)
	off := disklayout.DinodeOffset(5)
	require.Equal(t, 5*disklayout.InodeSize, off)
	di.Encode(b, off)

	got := disklayout.DecodeDinode(b, off)
	assert.Equal(t, di, got)

	// Neighboring slots are untouched.
	assert.Equal(t, disklayout.Dinode{}, disklayout.DecodeDinode(b, disklayout.DinodeOffset(4)))
}

func TestDirNameFixedWidth(t *testing.T) {
	testCases := []struct {
		name     string
		in       string
		stored   string
		loseless bool
	}{
		{"short", "a", "a", true},
		{"exactly 14 bytes", "abcdefghijklmn", "abcdefghijklmn", true},
		{"15 bytes truncates", "abcdefghijklmno", "abcdefghijklmn", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			n := disklayout.NameFromString(tc.in)
			assert.Equal(t, tc.stored, n.String())
			assert.Equal(t, tc.loseless, n.String() == tc.in)
		})
	}
}

func TestDirentEncodeIsSixteenBytes(t *testing.T) {
	de := disklayout.Dirent{
		Inum: 7,
		Name: disklayout.NameFromString(".."),
	}

	b := make([]byte, disklayout.DirentSize)
	de.Encode(b)

	assert.Equal(t, []byte{7, 0}, b[0:2])
	assert.Equal(t, byte('.'), b[2])
	assert.Equal(t, byte('.'), b[3])
	assert.Equal(t, de, disklayout.DecodeDirent(b))
}

func TestBlockMath(t *testing.T) {
	sb := disklayout.Superblock{InodeStart: 32, BmapStart: 58}

	assert.Equal(t, uint32(32), disklayout.InodeBlock(1, &sb))
	assert.Equal(t, uint32(33), disklayout.InodeBlock(8, &sb))
	assert.Equal(t, uint32(58), disklayout.BitmapBlock(0, &sb))
	assert.Equal(t, uint32(58), disklayout.BitmapBlock(disklayout.BitsPerBlock-1, &sb))
	assert.Equal(t, uint32(59), disklayout.BitmapBlock(disklayout.BitsPerBlock, &sb))
}
