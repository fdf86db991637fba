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
	"encoding/binary"

	"github.com/vkernel/vfs/disklayout"
	"github.com/vkernel/vfs/memio"
	"github.com/vkernel/vfs/vfs"
)

// Read copies up to n bytes from byte offset off of ip into dst. Reads
// starting at or past end of file, and requests whose offset
// arithmetic overflows, deliver zero bytes. Sparse blocks read as
// zeros without being allocated. The caller must hold the sleep lock.
func (fs *FileSystem) Read(
	ip *vfs.Inode,
	dst memio.Target,
	off uint32,
	n uint32) (int, error) {
	if off > ip.Size || off+n < off {
		return 0, nil
	}
	if off+n > ip.Size {
		n = ip.Size - off
	}

	var zero [disklayout.BlockSize]byte

	tot := uint32(0)
	for tot < n {
		m := n - tot
		if frag := disklayout.BlockSize - off%disklayout.BlockSize; m > frag {
			m = frag
		}

		bn := off / disklayout.BlockSize
		addr := fs.mapped(ip, bn)

		var src []byte
		if addr == 0 {
			// Hole: never allocated, reads as zeros.
			src = zero[off%disklayout.BlockSize : off%disklayout.BlockSize+m]
			if err := dst.CopyOut(int64(tot), src); err != nil {
				return int(tot), vfs.ErrShortCopy
			}
		} else {
			b := fs.cache.Bread(ip.Dev(), addr)
			src = b.Data[off%disklayout.BlockSize : off%disklayout.BlockSize+m]
			err := dst.CopyOut(int64(tot), src)
			fs.cache.Brelse(b)
			if err != nil {
				return int(tot), vfs.ErrShortCopy
			}
		}

		tot += m
		off += m
	}

	return int(tot), nil
}

// mapped returns the disk block for file block bn without allocating,
// or 0 for a hole.
func (fs *FileSystem) mapped(ip *vfs.Inode, bn uint32) uint32 {
	p := payload(ip)

	if bn < disklayout.NDirect {
		return p.addrs[bn]
	}
	bn -= disklayout.NDirect

	iaddr := p.addrs[disklayout.NDirect]
	if iaddr == 0 {
		return 0
	}

	b := fs.cache.Bread(ip.Dev(), iaddr)
	addr := binary.LittleEndian.Uint32(b.Data[4*bn : 4*bn+4])
	fs.cache.Brelse(b)
	return addr
}

// Write copies n bytes from src to byte offset off of ip, allocating
// blocks as needed and growing the size. The caller must hold the
// sleep lock and a log bracket. A short count means the disk filled
// up; the inode is updated regardless, since bmap may have grown the
// address array.
func (fs *FileSystem) Write(
	ip *vfs.Inode,
	src memio.Target,
	off uint32,
	n uint32) (int, error) {
	if off > ip.Size || off+n < off {
		return 0, vfs.ErrBadArgument
	}
	if off+n > disklayout.MaxFileBlocks*disklayout.BlockSize {
		return 0, vfs.ErrBadArgument
	}

	var copyErr error

	tot := uint32(0)
	for tot < n {
		m := n - tot
		if frag := disklayout.BlockSize - off%disklayout.BlockSize; m > frag {
			m = frag
		}

		addr := fs.bmap(ip, off/disklayout.BlockSize)
		if addr == 0 {
			break
		}

		b := fs.cache.Bread(ip.Dev(), addr)
		boff := off % disklayout.BlockSize
		if err := src.CopyIn(b.Data[boff:boff+m], int64(tot)); err != nil {
			fs.cache.Brelse(b)
			copyErr = vfs.ErrShortCopy
			break
		}
		fs.cache.Bwrite(b)
		fs.cache.Brelse(b)

		tot += m
		off += m
	}

	if off > ip.Size {
		ip.Size = off
	}

	// bmap may have grown the address array even on failure.
	fs.WriteInode(ip)

	return int(tot), copyErr
}
