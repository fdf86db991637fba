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
	"sync"
)

// Superblock is the in-memory registration of a mounted file system.
//
// INVARIANT: The root superblock's Parent is nil.
// INVARIANT: Root.ops == Ops for every mounted superblock.
type Superblock struct {
	// The registered type this superblock was mounted from.
	Type *FilesystemType

	// Operation table; identical to Type.Ops.
	Ops Ops

	// Parent superblock, nil at the root.
	Parent *Superblock

	// Root inode of this file system; holds one table reference for the
	// lifetime of the mount.
	Root *Inode

	// The dentry this file system is mounted over; nil at the root.
	Mountpoint *Dentry

	// Path of the backing device, bounded by MaxPath.
	DevicePath string

	// Child mounts.
	mounts [MaxMounts]*Superblock

	// FS-specific state; for xv6fs, the cached on-disk superblock.
	Private interface{}
}

// AddMount records child as mounted under this superblock. Returns
// false when the mount table is full.
func (sb *Superblock) AddMount(child *Superblock) bool {
	for i := range sb.mounts {
		if sb.mounts[i] == nil {
			sb.mounts[i] = child
			return true
		}
	}
	return false
}

// MountAt returns the child superblock whose mountpoint is d, or nil.
func (sb *Superblock) MountAt(d *Dentry) *Superblock {
	for _, m := range sb.mounts {
		if m != nil && m.Mountpoint == d {
			return m
		}
	}
	return nil
}

// FilesystemType maps a type name to an operation table.
type FilesystemType struct {
	Name string
	Ops  Ops
}

// TypeTable is the registry of file system types known to the kernel.
type TypeTable struct {
	mu    sync.Mutex
	types []*FilesystemType // GUARDED_BY(mu)
}

// Register adds a type. Registering the same name twice is a bug.
func (t *TypeTable) Register(ft *FilesystemType) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, existing := range t.types {
		if existing.Name == ft.Name {
			panic(fmt.Sprintf("filesystem type %q registered twice", ft.Name))
		}
	}
	t.types = append(t.types, ft)
}

// Lookup finds a registered type by name.
func (t *TypeTable) Lookup(name string) *FilesystemType {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ft := range t.types {
		if ft.Name == name {
			return ft
		}
	}
	return nil
}

// InitAll invokes Init on every registered type, in registration order.
func (t *TypeTable) InitAll() {
	t.mu.Lock()
	types := append([]*FilesystemType(nil), t.types...)
	t.mu.Unlock()

	for _, ft := range types {
		ft.Ops.Init()
	}
}
