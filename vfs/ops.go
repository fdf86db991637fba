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

import "github.com/vkernel/vfs/memio"

// Ops is the operation table every concrete file system supplies. All
// polymorphism in the core dispatches through it.
//
// Locking contract: methods that read or mutate inode metadata or
// contents (WriteInode, ReleaseInode, FreeInode, Trunc, UpdateLock,
// Read, Write, and the directory operations) require the inode's sleep
// lock to be held by the caller, except where noted.
type Ops interface {
	// Init is invoked once at boot, before any mount.
	Init()

	// Mount reads the device's superblock and returns the in-memory
	// superblock with its root inode referenced. A malformed superblock
	// is fatal.
	Mount(devpath string) (*Superblock, error)

	// Unmount detaches a previously mounted superblock.
	Unmount(sb *Superblock) error

	// AllocInode allocates a fresh on-disk inode of the given type and
	// returns its referenced in-memory shell, or ErrNoInodes.
	AllocInode(sb *Superblock, typ int16) (*Inode, error)

	// WriteInode flushes the inode's metadata to disk.
	WriteInode(ip *Inode)

	// ReleaseInode drops the inode's in-memory FS payload without
	// touching the disk.
	ReleaseInode(ip *Inode)

	// FreeInode drops the payload of an inode whose disk record has
	// already been zeroed and written back.
	FreeInode(ip *Inode)

	// Trunc frees all content blocks and sets the size to zero.
	Trunc(ip *Inode)

	// UpdateLock populates the inode's metadata and FS payload from
	// disk. Called from Inode.Lock on first acquisition.
	UpdateLock(ip *Inode)

	// Geti returns the in-memory inode for (dev, inum). It does not read
	// the disk: metadata and payload are loaded by UpdateLock on the
	// inode's first Lock. With incRef false the table reference taken by
	// the lookup is returned immediately.
	Geti(dev uint32, inum uint32, incRef bool) *Inode

	// Read copies up to n bytes at byte offset off into dst. It returns
	// the number of bytes delivered, which is short at end of file.
	Read(ip *Inode, dst memio.Target, off uint32, n uint32) (int, error)

	// Write copies n bytes from src to byte offset off, extending the
	// file as needed. A short count signals an error.
	Write(ip *Inode, src memio.Target, off uint32, n uint32) (int, error)

	// Create stamps FS-specific state (device numbers) on the freshly
	// allocated inode carried by d.
	Create(d *Dentry, typ int16, major int16, minor int16) error

	// DirLookup scans directory dp for name. On a hit it returns a
	// dentry carrying one reference to the target inode; the caller
	// must eventually put that reference and release the dentry.
	DirLookup(dp *Inode, name Name) *Dentry

	// Link writes the entry (d.Name -> d.Inode) into d.Parent. Fails
	// with ErrExists on a name collision.
	Link(d *Dentry) error

	// Unlink zeroes every entry in d.Parent whose name is d.Name.
	Unlink(d *Dentry) error

	// ReleaseDentry returns a dentry obtained from DirLookup to the
	// pool. It does not put the inode reference.
	ReleaseDentry(d *Dentry)

	// IsDirEmpty reports whether dp contains only "." and "..".
	IsDirEmpty(dp *Inode) bool

	// Open builds an open-file record for ip, adopting the caller's
	// inode reference. Fails with ErrTooManyFiles.
	Open(ip *Inode, readable bool, writable bool) (*File, error)

	// Close runs the release actions for a file whose last reference
	// was just dropped: putting the inode reference inside a log
	// bracket. Not used for pipe files.
	Close(f *File)
}

// Device is one row of the device switch, selected by an inode's major
// number.
type Device interface {
	Read(dst memio.Target, n int) (int, error)
	Write(src memio.Target, n int) (int, error)
}

// DevSwitch resolves a major number to a device driver, or nil.
type DevSwitch interface {
	Get(major int16) Device
}

// PipeEnd is the pipe subsystem's contract as seen from a pipe-backed
// open file.
type PipeEnd interface {
	Read(dst memio.Target, n int) (int, error)
	Write(src memio.Target, n int) (int, error)
	Close(writable bool)
}
