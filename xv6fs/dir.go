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
	"github.com/vkernel/vfs/memio"
	"github.com/vkernel/vfs/vfs"
)

// Directories are files whose contents are a packed array of
// disklayout.Dirent records; an entry with inum zero is unused. Name
// comparison is fixed-width, so an unterminated 14-byte name compares
// equal to itself and to nothing shorter.

// readEntry reads the directory entry at byte offset off of dp.
//
// LOCKS_REQUIRED(dp.lk)
func (fs *FileSystem) readEntry(dp *vfs.Inode, off uint32) disklayout.Dirent {
	var b [disklayout.DirentSize]byte
	r, err := fs.Read(dp, memio.Bytes(b[:]), off, disklayout.DirentSize)
	if r != disklayout.DirentSize || err != nil {
		panic(fmt.Sprintf("xv6fs: dirent read at %d: got %d bytes, %v", off, r, err))
	}
	return disklayout.DecodeDirent(b[:])
}

// writeEntry writes the directory entry at byte offset off of dp.
//
// LOCKS_REQUIRED(dp.lk)
func (fs *FileSystem) writeEntry(dp *vfs.Inode, off uint32, de disklayout.Dirent) error {
	var b [disklayout.DirentSize]byte
	de.Encode(b[:])
	r, err := fs.Write(dp, memio.Bytes(b[:]), off, disklayout.DirentSize)
	if err != nil {
		return err
	}
	if r != disklayout.DirentSize {
		return vfs.ErrNoSpace
	}
	return nil
}

// DirLookup scans directory dp for name. On a hit the returned dentry
// carries one reference to the child inode.
//
// LOCKS_REQUIRED(dp.lk)
func (fs *FileSystem) DirLookup(dp *vfs.Inode, name vfs.Name) *vfs.Dentry {
	if dp.Type != vfs.TypeDir {
		panic("xv6fs: dirlookup on non-directory")
	}

	want := disklayout.DirName(name)
	for off := uint32(0); off < dp.Size; off += disklayout.DirentSize {
		de := fs.readEntry(dp, off)
		if de.Inum == 0 {
			continue
		}
		if de.Name != want {
			continue
		}

		child := fs.Geti(dp.Dev(), uint32(de.Inum), true)

		d := fs.dtable.GetBlank()
		if d == nil {
			// Pool exhausted; surface as a miss after undoing the ref.
			fs.itable.Unref(child)
			return nil
		}
		d.Ops = fs
		d.Parent = dp
		d.Name = name
		d.Inode = child
		return d
	}

	return nil
}

// ReleaseDentry returns a dentry to the pool without touching its
// inode reference.
func (fs *FileSystem) ReleaseDentry(d *vfs.Dentry) {
	fs.dtable.Free(d)
}

// Link writes the entry (d.Name -> d.Inode) into d.Parent, reusing the
// first free slot or appending. Fails with ErrExists on a collision.
//
// LOCKS_REQUIRED(d.Parent.lk)
func (fs *FileSystem) Link(d *vfs.Dentry) error {
	dp := d.Parent

	// The name must not be present.
	if existing := fs.DirLookup(dp, d.Name); existing != nil {
		fs.itable.Put(existing.Inode)
		fs.ReleaseDentry(existing)
		return vfs.ErrExists
	}

	// Find a free slot, or append at the end.
	off := dp.Size
	for o := uint32(0); o < dp.Size; o += disklayout.DirentSize {
		if de := fs.readEntry(dp, o); de.Inum == 0 {
			off = o
			break
		}
	}

	de := disklayout.Dirent{
		Inum: uint16(d.Inode.Inum()),
		Name: disklayout.DirName(d.Name),
	}
	return fs.writeEntry(dp, off, de)
}

// Unlink zeroes every entry of d.Parent whose name is d.Name.
//
// LOCKS_REQUIRED(d.Parent.lk)
func (fs *FileSystem) Unlink(d *vfs.Dentry) error {
	dp := d.Parent
	want := disklayout.DirName(d.Name)

	for off := uint32(0); off < dp.Size; off += disklayout.DirentSize {
		de := fs.readEntry(dp, off)
		if de.Inum == 0 || de.Name != want {
			continue
		}
		if err := fs.writeEntry(dp, off, disklayout.Dirent{}); err != nil {
			return err
		}
	}
	return nil
}

// IsDirEmpty reports whether dp contains only "." and "..".
//
// LOCKS_REQUIRED(dp.lk)
func (fs *FileSystem) IsDirEmpty(dp *vfs.Inode) bool {
	for off := uint32(2 * disklayout.DirentSize); off < dp.Size; off += disklayout.DirentSize {
		if de := fs.readEntry(dp, off); de.Inum != 0 {
			return false
		}
	}
	return true
}

// Create stamps device numbers on the freshly allocated inode carried
// by d.
//
// LOCKS_REQUIRED(d.Inode.lk)
func (fs *FileSystem) Create(d *vfs.Dentry, typ int16, major int16, minor int16) error {
	p := payload(d.Inode)
	p.major = major
	p.minor = minor
	return nil
}
