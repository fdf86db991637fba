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
	"github.com/vkernel/vfs/disklayout"
	"github.com/vkernel/vfs/memio"
	"github.com/vkernel/vfs/wal"
)

// FileKind discriminates what an open file is backed by.
type FileKind int

const (
	KindNone FileKind = iota
	KindInode
	KindDevice
	KindPipe
)

// File is a descriptor-visible open handle.
type File struct {
	// Operation table of the owning file system; nil for pipe files
	// created outside any mount.
	Ops Ops

	// GUARDED_BY(table.mu)
	ref int

	// Byte offset for the next read or write. Concurrent sharers of one
	// open file serialize through the inode lock, not here.
	Off uint32

	Readable bool
	Writable bool

	Kind  FileKind
	Inode *Inode   // KindInode and KindDevice
	Major int16    // KindDevice
	Pipe  PipeEnd  // KindPipe

	// FS-specific payload.
	Private interface{}
}

// FTable is the fixed table of open files.
type FTable struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	log   wal.Log
	devsw DevSwitch

	/////////////////////////
	// Mutable state
	/////////////////////////

	// INVARIANT: For all entries, ref >= 0.
	// INVARIANT: Entries with ref == 0 have Kind KindNone.
	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	files [NFile]*File
}

// NewFTable creates an empty file table. Writes are chunked to fit log
// brackets; device I/O dispatches through devsw.
func NewFTable(log wal.Log, devsw DevSwitch) *FTable {
	t := &FTable{log: log, devsw: devsw}
	for i := range t.files {
		t.files[i] = &File{}
	}

	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)
	return t
}

func (t *FTable) checkInvariants() {
	// INVARIANT: For all entries, ref >= 0.
	for i, f := range t.files {
		if f.ref < 0 {
			panic(fmt.Sprintf("file slot %d: negative ref %d", i, f.ref))
		}
	}

	// INVARIANT: Entries with ref == 0 have Kind KindNone.
	for i, f := range t.files {
		if f.ref == 0 && f.Kind != KindNone {
			panic(fmt.Sprintf("file slot %d: free entry with kind %d", i, f.Kind))
		}
	}
}

// Alloc claims a free slot with ref 1, or returns nil when the table is
// full.
func (t *FTable) Alloc() *File {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, f := range t.files {
		if f.ref == 0 {
			*f = File{ref: 1}
			return f
		}
	}
	return nil
}

// Dup takes another reference on f.
func (t *FTable) Dup(f *File) *File {
	t.mu.Lock()
	defer t.mu.Unlock()

	if f.ref < 1 {
		panic("filedup: no ref")
	}
	f.ref++
	return f
}

// Discard frees a slot allocated by Alloc without running release
// actions. Only for unwinding a failed open, while the caller still
// owns the inode reference.
func (t *FTable) Discard(f *File) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if f.ref != 1 {
		panic(fmt.Sprintf("discard: ref %d", f.ref))
	}
	*f = File{}
}

// Close drops a reference. At zero the slot is freed and the release
// actions run: pipes are closed for this end, inode-backed files put
// their inode reference through the owning file system.
func (t *FTable) Close(f *File) {
	t.mu.Lock()

	if f.ref < 1 {
		panic("fileclose: no ref")
	}
	f.ref--
	if f.ref > 0 {
		t.mu.Unlock()
		return
	}

	ff := *f
	*f = File{}
	t.mu.Unlock()

	switch ff.Kind {
	case KindPipe:
		ff.Pipe.Close(ff.Writable)
	case KindInode, KindDevice:
		ff.Ops.Close(&ff)
	}
}

// Read reads up to n bytes from f into dst, advancing the offset by the
// amount read.
func (t *FTable) Read(f *File, dst memio.Target, n int) (int, error) {
	if !f.Readable {
		return 0, ErrBadFD
	}

	switch f.Kind {
	case KindPipe:
		return f.Pipe.Read(dst, n)

	case KindDevice:
		dev := t.devsw.Get(f.Major)
		if dev == nil {
			return 0, ErrBadFD
		}
		return dev.Read(dst, n)

	case KindInode:
		f.Inode.Lock()
		r, err := f.Ops.Read(f.Inode, dst, f.Off, uint32(n))
		if r > 0 {
			f.Off += uint32(r)
		}
		f.Inode.Unlock()
		return r, err

	default:
		panic(fmt.Sprintf("fileread: kind %d", f.Kind))
	}
}

// maxWriteChunk bounds the bytes one log bracket may cover: a few
// blocks are reserved for the inode, the indirect block and two bitmap
// blocks, and writei may touch two blocks per chunk half.
const maxWriteChunk = ((wal.MaxOpBlocks - 4) / 2) * disklayout.BlockSize

// Write writes n bytes from src to f. Inode-backed writes are split
// into bracketed chunks; anything short of n reports an error with the
// written prefix already durable.
func (t *FTable) Write(f *File, src memio.Target, n int) (int, error) {
	if !f.Writable {
		return 0, ErrBadFD
	}

	switch f.Kind {
	case KindPipe:
		return f.Pipe.Write(src, n)

	case KindDevice:
		dev := t.devsw.Get(f.Major)
		if dev == nil {
			return 0, ErrBadFD
		}
		return dev.Write(src, n)

	case KindInode:
		i := 0
		for i < n {
			n1 := n - i
			if n1 > maxWriteChunk {
				n1 = maxWriteChunk
			}

			t.log.Begin()
			f.Inode.Lock()
			r, err := f.Ops.Write(f.Inode, memio.Section(src, int64(i)), f.Off, uint32(n1))
			if r > 0 {
				f.Off += uint32(r)
			}
			f.Inode.Unlock()
			t.log.End()

			if err != nil {
				return i + r, err
			}
			if r != n1 {
				return i + r, ErrNoSpace
			}
			i += r
		}
		return n, nil

	default:
		panic(fmt.Sprintf("filewrite: kind %d", f.Kind))
	}
}

// Stat fills st with the metadata of an inode-backed file.
func (t *FTable) Stat(f *File, st *Stat) error {
	if f.Kind != KindInode && f.Kind != KindDevice {
		return ErrBadFD
	}

	f.Inode.Lock()
	f.Inode.Stati(st)
	f.Inode.Unlock()
	return nil
}
