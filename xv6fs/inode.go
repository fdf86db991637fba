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
	"fmt"

	"github.com/vkernel/vfs/disklayout"
	"github.com/vkernel/vfs/vfs"
)

// AllocInode claims a free on-disk inode of the given type and returns
// its referenced in-memory shell.
func (fs *FileSystem) AllocInode(sb *vfs.Superblock, typ int16) (*vfs.Inode, error) {
	dsb := sb.Private.(*disklayout.Superblock)

	var dev uint32
	found := false
	fs.mu.Lock()
	for d, vsb := range fs.vsbs {
		if vsb == sb {
			dev = d
			found = true
		}
	}
	fs.mu.Unlock()
	if !found {
		panic("xv6fs: AllocInode on unmounted superblock")
	}

	for inum := uint32(1); inum < dsb.NInodes; inum++ {
		b := fs.cache.Bread(dev, disklayout.InodeBlock(inum, dsb))
		off := disklayout.DinodeOffset(inum)
		di := disklayout.DecodeDinode(b.Data[:], off)
		if di.Type == disklayout.TypeFree {
			// Claim it on disk.
			di = disklayout.Dinode{Type: typ}
			di.Encode(b.Data[:], off)
			fs.cache.Bwrite(b)
			fs.cache.Brelse(b)
			return fs.Geti(dev, inum, true), nil
		}
		fs.cache.Brelse(b)
	}

	return nil, vfs.ErrNoInodes
}

// WriteInode copies the in-memory inode to its disk record. The caller
// must hold the sleep lock and a log bracket.
func (fs *FileSystem) WriteInode(ip *vfs.Inode) {
	sb := fs.super(ip.Dev())
	p := payload(ip)

	b := fs.cache.Bread(ip.Dev(), disklayout.InodeBlock(ip.Inum(), sb))
	di := disklayout.Dinode{
		Type:  ip.Type,
		Major: p.major,
		Minor: p.minor,
		NLink: ip.NLink,
		Size:  ip.Size,
		Addrs: p.addrs,
	}
	di.Encode(b.Data[:], disklayout.DinodeOffset(ip.Inum()))
	fs.cache.Bwrite(b)
	fs.cache.Brelse(b)
}

// ReleaseInode drops the in-memory payload; the disk record stays.
func (fs *FileSystem) ReleaseInode(ip *vfs.Inode) {
	ip.Private = nil
}

// FreeInode drops the payload of an inode whose zeroed record has
// already been written back, completing the disk-side free.
func (fs *FileSystem) FreeInode(ip *vfs.Inode) {
	ip.Private = nil
}

// bmap returns the disk block holding file block bn of ip, allocating
// it (and the indirect block) on demand. Returns 0 when the disk is
// full; bn beyond the largest mappable block is fatal.
func (fs *FileSystem) bmap(ip *vfs.Inode, bn uint32) uint32 {
	p := payload(ip)

	if bn < disklayout.NDirect {
		addr := p.addrs[bn]
		if addr == 0 {
			addr = fs.balloc(ip.Dev())
			if addr == 0 {
				return 0
			}
			p.addrs[bn] = addr
		}
		return addr
	}
	bn -= disklayout.NDirect

	if bn < disklayout.NIndirect {
		// Load the indirect block, allocating if necessary.
		iaddr := p.addrs[disklayout.NDirect]
		if iaddr == 0 {
			iaddr = fs.balloc(ip.Dev())
			if iaddr == 0 {
				return 0
			}
			p.addrs[disklayout.NDirect] = iaddr
		}

		b := fs.cache.Bread(ip.Dev(), iaddr)
		addr := binary.LittleEndian.Uint32(b.Data[4*bn : 4*bn+4])
		if addr == 0 {
			addr = fs.balloc(ip.Dev())
			if addr != 0 {
				binary.LittleEndian.PutUint32(b.Data[4*bn:4*bn+4], addr)
				fs.cache.Bwrite(b)
			}
		}
		fs.cache.Brelse(b)
		return addr
	}

	panic(fmt.Sprintf("xv6fs: bmap block %d out of range", bn+disklayout.NDirect))
}

// Trunc frees all of ip's content blocks and zeroes its size. The
// caller must hold the sleep lock and a log bracket.
func (fs *FileSystem) Trunc(ip *vfs.Inode) {
	p := payload(ip)

	for i := 0; i < disklayout.NDirect; i++ {
		if p.addrs[i] != 0 {
			fs.bfree(ip.Dev(), p.addrs[i])
			p.addrs[i] = 0
		}
	}

	if p.addrs[disklayout.NDirect] != 0 {
		b := fs.cache.Bread(ip.Dev(), p.addrs[disklayout.NDirect])
		for i := 0; i < disklayout.NIndirect; i++ {
			addr := binary.LittleEndian.Uint32(b.Data[4*i : 4*i+4])
			if addr != 0 {
				fs.bfree(ip.Dev(), addr)
			}
		}
		fs.cache.Brelse(b)
		fs.bfree(ip.Dev(), p.addrs[disklayout.NDirect])
		p.addrs[disklayout.NDirect] = 0
	}

	ip.Size = 0
	fs.WriteInode(ip)
}
