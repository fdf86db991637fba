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

// Package xv6fs implements the vfs operation table on the classic
// unix-v6-style disk format: bitmap-allocated data blocks, packed
// inodes with direct and singly-indirect addressing, and linear
// directories.
package xv6fs

import (
	"fmt"
	"sync"

	"github.com/vkernel/vfs/buf"
	"github.com/vkernel/vfs/disklayout"
	"github.com/vkernel/vfs/internal/logger"
	"github.com/vkernel/vfs/vfs"
	"github.com/vkernel/vfs/wal"
)

// TypeName is the name this file system registers under.
const TypeName = "xv6fs"

// inodeData is the FS payload attached to a valid in-memory inode.
type inodeData struct {
	major int16
	minor int16
	addrs [disklayout.NDirect + 1]uint32
}

// FileSystem implements vfs.Ops over a block device.
type FileSystem struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	cache  *buf.Cache
	log    wal.Log
	itable *vfs.ITable
	dtable *vfs.DTable
	ftable *vfs.FTable

	fstype *vfs.FilesystemType

	/////////////////////////
	// Mutable state
	/////////////////////////

	mu sync.Mutex

	// Device-path registrations, dev numbers keyed by path.
	//
	// GUARDED_BY(mu)
	devices map[string]uint32

	// Cached on-disk superblocks of mounted devices.
	//
	// GUARDED_BY(mu)
	supers map[uint32]*disklayout.Superblock

	// In-memory superblocks of mounted devices.
	//
	// GUARDED_BY(mu)
	vsbs map[uint32]*vfs.Superblock
}

var _ vfs.Ops = (*FileSystem)(nil)

// New creates the file system over the given cache and tables.
func New(
	cache *buf.Cache,
	log wal.Log,
	itable *vfs.ITable,
	dtable *vfs.DTable,
	ftable *vfs.FTable) *FileSystem {
	fs := &FileSystem{
		cache:   cache,
		log:     log,
		itable:  itable,
		dtable:  dtable,
		ftable:  ftable,
		devices: make(map[string]uint32),
		supers:  make(map[uint32]*disklayout.Superblock),
		vsbs:    make(map[uint32]*vfs.Superblock),
	}
	fs.fstype = &vfs.FilesystemType{Name: TypeName, Ops: fs}
	return fs
}

// FilesystemType returns the registrable type descriptor.
func (fs *FileSystem) FilesystemType() *vfs.FilesystemType {
	return fs.fstype
}

// RegisterDevice binds a device path, as passed to Mount, to a device
// number registered with the buffer cache.
func (fs *FileSystem) RegisterDevice(path string, dev uint32) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.devices[path] = dev
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *FileSystem) super(dev uint32) *disklayout.Superblock {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	sb, ok := fs.supers[dev]
	if !ok {
		panic(fmt.Sprintf("xv6fs: device %d not mounted", dev))
	}
	return sb
}

func (fs *FileSystem) Init() {
	logger.Infof("xv6fs: initialized")
}

func (fs *FileSystem) Mount(devpath string) (*vfs.Superblock, error) {
	if len(devpath) > vfs.MaxPath {
		return nil, fmt.Errorf("xv6fs: device path too long")
	}

	fs.mu.Lock()
	dev, ok := fs.devices[devpath]
	fs.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("xv6fs: unknown device %q", devpath)
	}

	b := fs.cache.Bread(dev, disklayout.SuperblockNum)
	dsb, err := disklayout.DecodeSuperblock(b.Data[:])
	fs.cache.Brelse(b)
	if err != nil {
		return nil, fmt.Errorf("xv6fs: superblock: %w", err)
	}
	if dsb.Magic != disklayout.Magic {
		panic(fmt.Sprintf("xv6fs: bad magic %#x on device %d", dsb.Magic, dev))
	}

	vsb := &vfs.Superblock{
		Type:       fs.fstype,
		Ops:        fs,
		DevicePath: devpath,
		Private:    &dsb,
	}

	fs.mu.Lock()
	fs.supers[dev] = &dsb
	fs.vsbs[dev] = vsb
	fs.mu.Unlock()

	vsb.Root = fs.Geti(dev, disklayout.RootIno, true)

	logger.Infof(
		"xv6fs: mounted %q: %d blocks, %d inodes, log %d blocks",
		devpath, dsb.Size, dsb.NInodes, dsb.NLog)
	return vsb, nil
}

func (fs *FileSystem) Unmount(sb *vfs.Superblock) error {
	fs.log.Begin()
	fs.itable.Put(sb.Root)
	fs.log.End()

	fs.mu.Lock()
	defer fs.mu.Unlock()
	for dev, vsb := range fs.vsbs {
		if vsb == sb {
			delete(fs.vsbs, dev)
			delete(fs.supers, dev)
		}
	}
	return nil
}

// Geti returns the in-memory inode for (dev, inum). The disk is not
// consulted here: metadata and payload load on the first Lock, so a
// lookup can hand back ".." without taking the ancestor's sleep lock
// out of order.
func (fs *FileSystem) Geti(dev uint32, inum uint32, incRef bool) *vfs.Inode {
	fs.mu.Lock()
	vsb := fs.vsbs[dev]
	fs.mu.Unlock()
	if vsb == nil {
		panic(fmt.Sprintf("xv6fs: geti on unmounted device %d", dev))
	}

	ip := fs.itable.Get(fs, vsb, dev, inum)
	if !incRef {
		fs.itable.Unref(ip)
	}
	return ip
}

// UpdateLock loads the on-disk inode into ip. Called with the sleep
// lock held and no payload attached.
func (fs *FileSystem) UpdateLock(ip *vfs.Inode) {
	sb := fs.super(ip.Dev())

	b := fs.cache.Bread(ip.Dev(), disklayout.InodeBlock(ip.Inum(), sb))
	di := disklayout.DecodeDinode(b.Data[:], disklayout.DinodeOffset(ip.Inum()))
	fs.cache.Brelse(b)

	if di.Type == disklayout.TypeFree {
		panic(fmt.Sprintf("xv6fs: inode (%d, %d) has no type", ip.Dev(), ip.Inum()))
	}

	ip.Type = di.Type
	ip.NLink = di.NLink
	ip.Size = di.Size
	ip.Private = &inodeData{
		major: di.Major,
		minor: di.Minor,
		addrs: di.Addrs,
	}
}

func payload(ip *vfs.Inode) *inodeData {
	d, ok := ip.Private.(*inodeData)
	if !ok {
		panic(fmt.Sprintf("xv6fs: inode (%d, %d) has no payload", ip.Dev(), ip.Inum()))
	}
	return d
}
