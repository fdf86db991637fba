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

import (
	"fmt"

	"github.com/jacobsa/syncutil"
	"github.com/vkernel/vfs/internal/locker"
	"github.com/vkernel/vfs/wal"
)

// Inode is an in-memory inode. Entries live in a fixed table and move
// through the lifecycle free -> allocated -> valid: a table hit or
// claim (ITable.Get) yields an allocated entry with no payload; the
// first Lock populates it from disk; the final put may write it back
// and evict it.
//
// Lock discipline: ref, dev and inum are guarded by the table lock; all
// other fields are guarded by the inode's sleep lock. Holding a
// reference without the sleep lock is how long-lived handles (open
// files, working directories) avoid blocking path resolution.
type Inode struct {
	/////////////////////////
	// Identity, guarded by the table lock
	/////////////////////////

	// GUARDED_BY(table.mu)
	dev  uint32
	inum uint32

	// In-memory reference count. The entry may be reused only at zero.
	//
	// GUARDED_BY(table.mu)
	ref int

	/////////////////////////
	// Dispatch, set when a file system adopts the entry
	/////////////////////////

	ops Ops
	sb  *Superblock

	/////////////////////////
	// Metadata, guarded by lk
	/////////////////////////

	lk locker.SleepLock

	// GUARDED_BY(lk)
	Type  int16
	NLink int16
	Size  uint32

	// FS-specific payload. Non-nil exactly when the metadata above has
	// been populated from disk.
	//
	// GUARDED_BY(lk)
	Private interface{}

	table *ITable
}

// Dev returns the inode's device number.
func (ip *Inode) Dev() uint32 { return ip.dev }

// Inum returns the inode's on-disk inode number.
func (ip *Inode) Inum() uint32 { return ip.inum }

// Sb returns the superblock the inode belongs to.
func (ip *Inode) Sb() *Superblock { return ip.sb }

// OpsTable returns the inode's operation table.
func (ip *Inode) OpsTable() Ops { return ip.ops }

// Lock acquires the inode's sleep lock, populating the metadata from
// disk on first acquisition. The caller must hold a reference.
func (ip *Inode) Lock() {
	if ip == nil {
		panic("ilock: nil inode")
	}
	if ip.table.refCount(ip) < 1 {
		panic("ilock: no ref")
	}

	ip.lk.Acquire()
	if ip.Private == nil {
		ip.ops.UpdateLock(ip)
	}
}

// Unlock releases the sleep lock.
func (ip *Inode) Unlock() {
	if ip == nil || !ip.lk.Held() {
		panic("iunlock: lock not held")
	}
	if ip.table.refCount(ip) < 1 {
		panic("iunlock: no ref")
	}

	ip.lk.Release()
}

// Stati copies the inode's identity and metadata into st. The caller
// must hold the sleep lock.
func (ip *Inode) Stati(st *Stat) {
	st.Dev = ip.dev
	st.Ino = ip.inum
	st.Type = ip.Type
	st.NLink = ip.NLink
	st.Size = ip.Size
}

////////////////////////////////////////////////////////////////////////
// ITable
////////////////////////////////////////////////////////////////////////

// ITable is the fixed-capacity in-memory inode table.
type ITable struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	log wal.Log

	/////////////////////////
	// Mutable state
	/////////////////////////

	// Guards every entry's identity and reference count.
	//
	// INVARIANT: Among entries with ref > 0, (dev, inum) pairs are
	// unique.
	// INVARIANT: For all entries, ref >= 0.
	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	inodes [NInode]*Inode
}

// NewITable creates an empty inode table. Put and its callers rely on
// log for the transaction bracket that covers block frees.
func NewITable(log wal.Log) *ITable {
	t := &ITable{log: log}
	for i := range t.inodes {
		ip := &Inode{table: t}
		ip.lk.Init(fmt.Sprintf("inode slot %d", i))
		t.inodes[i] = ip
	}

	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)
	return t
}

func (t *ITable) checkInvariants() {
	// INVARIANT: Among entries with ref > 0, (dev, inum) pairs are
	// unique.
	seen := make(map[[2]uint32]bool)
	for _, ip := range t.inodes {
		if ip.ref == 0 {
			continue
		}
		key := [2]uint32{ip.dev, ip.inum}
		if seen[key] {
			panic(fmt.Sprintf("duplicate live inode for (%d, %d)", ip.dev, ip.inum))
		}
		seen[key] = true
	}

	// INVARIANT: For all entries, ref >= 0.
	for i, ip := range t.inodes {
		if ip.ref < 0 {
			panic(fmt.Sprintf("inode slot %d: negative ref %d", i, ip.ref))
		}
	}
}

// LOCKS_EXCLUDED(t.mu)
func (t *ITable) refCount(ip *Inode) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ip.ref
}

// Get finds or claims the entry for (dev, inum) and returns it with an
// incremented reference count. A fresh claim is bound to the given
// operation table and superblock; the disk is not consulted and the
// sleep lock is not taken. Exhaustion of the table is fatal.
func (t *ITable) Get(ops Ops, sb *Superblock, dev uint32, inum uint32) *Inode {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Cached?
	var empty *Inode
	for _, ip := range t.inodes {
		if ip.ref > 0 && ip.dev == dev && ip.inum == inum {
			ip.ref++
			return ip
		}
		if empty == nil && ip.ref == 0 {
			empty = ip
		}
	}

	// Claim an empty slot.
	if empty == nil {
		panic("iget: no inodes")
	}

	empty.dev = dev
	empty.inum = inum
	empty.ref = 1
	empty.ops = ops
	empty.sb = sb
	empty.Private = nil
	return empty
}

// Dup increments ip's reference count and returns ip.
func (t *ITable) Dup(ip *Inode) *Inode {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ip.ref < 1 {
		panic("idup: no ref")
	}
	ip.ref++
	return ip
}

// Unref undoes a single Get without running the put lifecycle. Only for
// use by a file system's Geti when the caller asked for no reference;
// the entry must have another live reference or a valid disk identity.
func (t *ITable) Unref(ip *Inode) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ip.ref < 1 {
		panic("unref: no ref")
	}
	ip.ref--
}

// Put drops a reference. When the last reference is dropped the inode
// is written back; an unlinked inode is additionally truncated and its
// disk record freed. Must run inside a log bracket, since it may free
// disk blocks.
//
// LOCKS_EXCLUDED(ip.lk)
func (t *ITable) Put(ip *Inode) {
	t.mu.Lock()

	if ip.ref < 1 {
		panic("iput: no ref")
	}

	if ip.ref == 1 && ip.Private != nil {
		// ref == 1 means no one else holds the sleep lock, so acquiring
		// it cannot block.
		if !t.log.Active() {
			panic("iput: outside log transaction")
		}

		ip.lk.Acquire()
		t.mu.Unlock()

		if ip.NLink == 0 {
			ip.Type = TypeFree
			ip.ops.Trunc(ip)
			ip.ops.WriteInode(ip)
			ip.ops.FreeInode(ip)
		} else {
			ip.ops.WriteInode(ip)
			ip.ops.ReleaseInode(ip)
		}

		ip.lk.Release()
		t.mu.Lock()
	}

	ip.ref--
	t.mu.Unlock()
}

// UnlockPut unlocks ip and drops a reference.
func (t *ITable) UnlockPut(ip *Inode) {
	ip.Unlock()
	t.Put(ip)
}
