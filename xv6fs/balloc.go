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

package xv6fs

import (
	"fmt"

	"github.com/vkernel/vfs/disklayout"
)

// Zero block bno on disk.
func (fs *FileSystem) bzero(dev uint32, bno uint32) {
	b := fs.cache.Bread(dev, bno)
	for i := range b.Data {
		b.Data[i] = 0
	}
	fs.cache.Bwrite(b)
	fs.cache.Brelse(b)
}

// balloc allocates a zeroed data block on dev. Returns 0 when the disk
// is full.
func (fs *FileSystem) balloc(dev uint32) uint32 {
	sb := fs.super(dev)

	for base := uint32(0); base < sb.Size; base += disklayout.BitsPerBlock {
		bp := fs.cache.Bread(dev, disklayout.BitmapBlock(base, sb))
		for bi := uint32(0); bi < disklayout.BitsPerBlock && base+bi < sb.Size; bi++ {
			mask := byte(1) << (bi % 8)
			if bp.Data[bi/8]&mask == 0 {
				bp.Data[bi/8] |= mask
				fs.cache.Bwrite(bp)
				fs.cache.Brelse(bp)
				fs.bzero(dev, base+bi)
				return base + bi
			}
		}
		fs.cache.Brelse(bp)
	}

	return 0
}

// bfree releases data block b. Freeing a free block is fatal.
func (fs *FileSystem) bfree(dev uint32, b uint32) {
	sb := fs.super(dev)

	bp := fs.cache.Bread(dev, disklayout.BitmapBlock(b, sb))
	bi := b % disklayout.BitsPerBlock
	mask := byte(1) << (bi % 8)
	if bp.Data[bi/8]&mask == 0 {
		panic(fmt.Sprintf("xv6fs: freeing free block %d on device %d", b, dev))
	}
	bp.Data[bi/8] &^= mask
	fs.cache.Bwrite(bp)
	fs.cache.Brelse(bp)
}
