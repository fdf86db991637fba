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

package xv6fs_test

import (
	"bytes"
	"testing"

	"github.com/jacobsa/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkernel/vfs/buf"
	"github.com/vkernel/vfs/cfg"
	"github.com/vkernel/vfs/disklayout"
	"github.com/vkernel/vfs/memio"
	"github.com/vkernel/vfs/mkfs"
	"github.com/vkernel/vfs/vfs"
	"github.com/vkernel/vfs/wal"
	"github.com/vkernel/vfs/xv6fs"
)

type fixture struct {
	disk *buf.MemDisk
	log  wal.Log
	it   *vfs.ITable
	fs   *xv6fs.FileSystem
	sb   *vfs.Superblock
}

func newFixture(t *testing.T) *fixture {
	c := cfg.Default()
	disk := buf.NewMemDisk(c.SizeBlocks)
	_, err := mkfs.Format(disk, c)
	require.NoError(t, err)

	cache := buf.NewCache(timeutil.RealClock())
	cache.RegisterDevice(disklayout.RootDev, disk)

	log := wal.NewWriteThrough()
	it := vfs.NewITable(log)
	dt := vfs.NewDTable()
	ft := vfs.NewFTable(log, nopDevSwitch{})

	fs := xv6fs.New(cache, log, it, dt, ft)
	fs.RegisterDevice("disk0", disklayout.RootDev)

	sb, err := fs.Mount("disk0")
	require.NoError(t, err)

	return &fixture{disk: disk, log: log, it: it, fs: fs, sb: sb}
}

type nopDevSwitch struct{}

func (nopDevSwitch) Get(major int16) vfs.Device { return nil }

// allocFile allocates a fresh regular file inode, locked, with one
// link so puts do not free it prematurely.
func (f *fixture) allocFile(t *testing.T) *vfs.Inode {
	f.log.Begin()
	defer f.log.End()

	ip, err := f.fs.AllocInode(f.sb, vfs.TypeFile)
	require.NoError(t, err)
	ip.Lock()
	ip.NLink = 1
	f.fs.WriteInode(ip)
	return ip
}

func (f *fixture) drop(t *testing.T, ip *vfs.Inode) {
	f.log.Begin()
	ip.NLink = 0
	f.fs.WriteInode(ip)
	f.it.UnlockPut(ip)
	f.log.End()
}

func (f *fixture) freeBlocks(t *testing.T) int {
	var b [disklayout.BlockSize]byte
	require.NoError(t, f.disk.ReadBlock(disklayout.SuperblockNum, b[:]))
	sb, err := disklayout.DecodeSuperblock(b[:])
	require.NoError(t, err)

	free := 0
	for base := uint32(0); base < sb.Size; base += disklayout.BitsPerBlock {
		require.NoError(t, f.disk.ReadBlock(disklayout.BitmapBlock(base, &sb), b[:]))
		for bi := uint32(0); bi < disklayout.BitsPerBlock && base+bi < sb.Size; bi++ {
			if b[bi/8]&(1<<(bi%8)) == 0 {
				free++
			}
		}
	}
	return free
}

////////////////////////////////////////////////////////////////////////
// Mounting
////////////////////////////////////////////////////////////////////////

func TestMountReadsSuperblock(t *testing.T) {
	f := newFixture(t)

	dsb := f.sb.Private.(*disklayout.Superblock)
	assert.Equal(t, uint32(disklayout.Magic), dsb.Magic)
	assert.Equal(t, cfg.Default().SizeBlocks, dsb.Size)
	require.NotNil(t, f.sb.Root)
	assert.Equal(t, uint32(disklayout.RootIno), f.sb.Root.Inum())
}

func TestMountUnformattedDevicePanics(t *testing.T) {
	disk := buf.NewMemDisk(64)
	cache := buf.NewCache(timeutil.RealClock())
	cache.RegisterDevice(disklayout.RootDev, disk)

	log := wal.NewWriteThrough()
	fs := xv6fs.New(cache, log, vfs.NewITable(log), vfs.NewDTable(),
		vfs.NewFTable(log, nopDevSwitch{}))
	fs.RegisterDevice("disk0", disklayout.RootDev)

	assert.Panics(t, func() { fs.Mount("disk0") })
}

func TestMountUnknownDeviceFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.fs.Mount("nonexistent")
	assert.Error(t, err)
}

////////////////////////////////////////////////////////////////////////
// Reads and writes
////////////////////////////////////////////////////////////////////////

func TestWriteThenReadAcrossBlockBoundaries(t *testing.T) {
	f := newFixture(t)
	ip := f.allocFile(t)

	data := make([]byte, 2*disklayout.BlockSize+37)
	for i := range data {
		data[i] = byte(i)
	}

	f.log.Begin()
	n, err := f.fs.Write(ip, memio.Bytes(data), 0, uint32(len(data)))
	f.log.End()
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	assert.Equal(t, uint32(len(data)), ip.Size)

	// Read it back, deliberately misaligned.
	got := make([]byte, len(data))
	r, err := f.fs.Read(ip, memio.Bytes(got[:100]), 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, r)

	r, err = f.fs.Read(ip, memio.Bytes(got[100:]), 100, uint32(len(data)-100))
	require.NoError(t, err)
	assert.Equal(t, len(data)-100, r)

	assert.True(t, bytes.Equal(data, got))

	f.drop(t, ip)
}

func TestReadPastEndOfFile(t *testing.T) {
	f := newFixture(t)
	ip := f.allocFile(t)

	f.log.Begin()
	_, err := f.fs.Write(ip, memio.Bytes([]byte("abc")), 0, 3)
	f.log.End()
	require.NoError(t, err)

	// Clamped at the end.
	got := make([]byte, 10)
	r, err := f.fs.Read(ip, memio.Bytes(got), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, r)

	// Entirely past the end.
	r, err = f.fs.Read(ip, memio.Bytes(got), 4, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, r)

	f.drop(t, ip)
}

func TestWritePastEndRejected(t *testing.T) {
	f := newFixture(t)
	ip := f.allocFile(t)

	f.log.Begin()
	defer f.log.End()

	_, err := f.fs.Write(ip, memio.Bytes([]byte("x")), 1, 1)
	assert.Error(t, err)

	_, err = f.fs.Write(ip, memio.Bytes([]byte("x")), 0,
		disklayout.MaxFileBlocks*disklayout.BlockSize+1)
	assert.Error(t, err)

	ip.NLink = 0
	f.fs.WriteInode(ip)
	f.it.UnlockPut(ip)
}

func TestSparseReadReturnsZerosWithoutAllocating(t *testing.T) {
	f := newFixture(t)
	ip := f.allocFile(t)

	// Give the inode a size with no blocks behind it.
	ip.Size = 3 * disklayout.BlockSize
	f.log.Begin()
	f.fs.WriteInode(ip)
	f.log.End()

	freeBefore := f.freeBlocks(t)

	got := make([]byte, ip.Size)
	r, err := f.fs.Read(ip, memio.Bytes(got), 0, ip.Size)
	require.NoError(t, err)
	assert.Equal(t, int(ip.Size), r)
	assert.Equal(t, make([]byte, ip.Size), got)

	// No lazy allocation happened on the read path.
	assert.Equal(t, freeBefore, f.freeBlocks(t))

	ip.Size = 0
	f.drop(t, ip)
}

func TestIndirectRangeAllocatesAndFrees(t *testing.T) {
	f := newFixture(t)
	ip := f.allocFile(t)

	freeBefore := f.freeBlocks(t)

	size := (disklayout.NDirect + 3) * disklayout.BlockSize
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 7)
	}

	f.log.Begin()
	n, err := f.fs.Write(ip, memio.Bytes(data), 0, uint32(size))
	f.log.End()
	require.NoError(t, err)
	require.Equal(t, size, n)

	// NDirect+3 data blocks plus the indirect block itself.
	assert.Equal(t, freeBefore-(disklayout.NDirect+3)-1, f.freeBlocks(t))

	got := make([]byte, size)
	r, err := f.fs.Read(ip, memio.Bytes(got), 0, uint32(size))
	require.NoError(t, err)
	require.Equal(t, size, r)
	assert.True(t, bytes.Equal(data, got))

	// Truncation returns every block, indirect included.
	f.log.Begin()
	f.fs.Trunc(ip)
	f.log.End()
	assert.Equal(t, freeBefore, f.freeBlocks(t))
	assert.Equal(t, uint32(0), ip.Size)

	f.drop(t, ip)
}

////////////////////////////////////////////////////////////////////////
// Directories
////////////////////////////////////////////////////////////////////////

func TestDirLinkLookupUnlink(t *testing.T) {
	f := newFixture(t)
	root := f.it.Dup(f.sb.Root)
	root.Lock()

	assert.True(t, f.fs.IsDirEmpty(root))

	child := f.allocFile(t)
	childInum := child.Inum()

	f.log.Begin()
	d := &vfs.Dentry{Ops: f.fs, Parent: root, Name: vfs.NameFromString("foo"), Inode: child}
	require.NoError(t, f.fs.Link(d))
	f.log.End()

	assert.False(t, f.fs.IsDirEmpty(root))

	// A second link of the same name collides.
	f.log.Begin()
	assert.ErrorIs(t, f.fs.Link(d), vfs.ErrExists)
	f.log.End()

	found := f.fs.DirLookup(root, vfs.NameFromString("foo"))
	require.NotNil(t, found)
	assert.Equal(t, childInum, found.Inode.Inum())
	assert.Same(t, root, found.Parent)

	f.log.Begin()
	f.it.Put(found.Inode)
	f.log.End()
	f.fs.ReleaseDentry(found)

	assert.Nil(t, f.fs.DirLookup(root, vfs.NameFromString("bar")))

	f.log.Begin()
	require.NoError(t, f.fs.Unlink(d))
	f.log.End()

	assert.Nil(t, f.fs.DirLookup(root, vfs.NameFromString("foo")))
	assert.True(t, f.fs.IsDirEmpty(root))

	f.drop(t, child)
	f.log.Begin()
	f.it.UnlockPut(root)
	f.log.End()
}

func TestDirLookupComparesFullFourteenBytes(t *testing.T) {
	f := newFixture(t)
	root := f.it.Dup(f.sb.Root)
	root.Lock()

	child := f.allocFile(t)
	long := vfs.NameFromString("abcdefghijklmn")

	f.log.Begin()
	d := &vfs.Dentry{Ops: f.fs, Parent: root, Name: long, Inode: child}
	require.NoError(t, f.fs.Link(d))
	f.log.End()

	// A 13-byte prefix is a different fixed-width name.
	assert.Nil(t, f.fs.DirLookup(root, vfs.NameFromString("abcdefghijklm")))
	found := f.fs.DirLookup(root, long)
	require.NotNil(t, found)

	f.log.Begin()
	f.it.Put(found.Inode)
	f.fs.ReleaseDentry(found)
	require.NoError(t, f.fs.Unlink(d))
	f.log.End()

	f.drop(t, child)
	f.log.Begin()
	f.it.UnlockPut(root)
	f.log.End()
}

////////////////////////////////////////////////////////////////////////
// Allocation
////////////////////////////////////////////////////////////////////////

func TestAllocInodeExhaustion(t *testing.T) {
	c := cfg.Default()
	c.NInodes = 4
	disk := buf.NewMemDisk(c.SizeBlocks)
	_, err := mkfs.Format(disk, c)
	require.NoError(t, err)

	cache := buf.NewCache(timeutil.RealClock())
	cache.RegisterDevice(disklayout.RootDev, disk)
	log := wal.NewWriteThrough()
	it := vfs.NewITable(log)
	fs := xv6fs.New(cache, log, it, vfs.NewDTable(), vfs.NewFTable(log, nopDevSwitch{}))
	fs.RegisterDevice("disk0", disklayout.RootDev)
	sb, err := fs.Mount("disk0")
	require.NoError(t, err)

	// Inode 1 is the root; 2 and 3 remain.
	log.Begin()
	defer log.End()

	a, err := fs.AllocInode(sb, vfs.TypeFile)
	require.NoError(t, err)
	b, err := fs.AllocInode(sb, vfs.TypeFile)
	require.NoError(t, err)
	assert.NotEqual(t, a.Inum(), b.Inum())

	_, err = fs.AllocInode(sb, vfs.TypeFile)
	assert.ErrorIs(t, err, vfs.ErrNoInodes)
}
