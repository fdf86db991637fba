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

package kernel

import "github.com/vkernel/vfs/vfs"

// NOFile is the per-process open-file limit.
const NOFile = 16

// Proc is the kernel-side state of one task: its address space, its
// working directory (a referenced inode) and its descriptor table.
// Procs are not shared between tasks; no locking.
type Proc struct {
	Name string
	Mem  *Mem

	// Working directory. Holds one inode reference.
	Cwd *vfs.Inode

	// Descriptor table; a descriptor is an index with a non-nil entry.
	OFile [NOFile]*vfs.File
}

// fdAlloc installs f at the lowest free descriptor, or returns -1.
func (p *Proc) fdAlloc(f *vfs.File) int {
	for fd := 0; fd < NOFile; fd++ {
		if p.OFile[fd] == nil {
			p.OFile[fd] = f
			return fd
		}
	}
	return -1
}

// file returns the open file behind fd, or nil for a bad descriptor.
func (p *Proc) file(fd int64) *vfs.File {
	if fd < 0 || fd >= NOFile {
		return nil
	}
	return p.OFile[fd]
}
