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
)

// Dentry is a cached (name -> inode) binding under a parent directory.
// A dentry handed out by DirLookup carries one reference to its target
// inode; the holder must eventually put that reference. Freeing the
// dentry does not put it.
type Dentry struct {
	Ops     Ops
	Parent  *Inode
	Name    Name
	Inode   *Inode
	IsMount bool
	Deleted bool

	// GUARDED_BY(pool.mu)
	ref int

	Private interface{}
}

// DTable is the fixed pool dentries are allocated from. The cache is
// advisory: no hashing, a linear scan claims the first free slot.
type DTable struct {
	// INVARIANT: For all entries, ref is 0 or 1.
	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	dentries [NDentry]*Dentry
}

// NewDTable creates an empty dentry pool.
func NewDTable() *DTable {
	t := &DTable{}
	for i := range t.dentries {
		t.dentries[i] = &Dentry{}
	}

	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)
	return t
}

func (t *DTable) checkInvariants() {
	// INVARIANT: For all entries, ref is 0 or 1.
	for i, d := range t.dentries {
		if d.ref != 0 && d.ref != 1 {
			panic(fmt.Sprintf("dentry slot %d: bad ref %d", i, d.ref))
		}
	}
}

// GetBlank claims the first free slot, or returns nil when the pool is
// exhausted.
func (t *DTable) GetBlank() *Dentry {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, d := range t.dentries {
		if d.ref == 0 {
			*d = Dentry{ref: 1}
			return d
		}
	}
	return nil
}

// Free returns a dentry to the pool, zeroing it.
func (t *DTable) Free(d *Dentry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if d.ref == 0 {
		panic("dfree: dentry already free")
	}
	*d = Dentry{}
}
