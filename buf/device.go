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

package buf

import (
	"fmt"
	"os"

	"github.com/vkernel/vfs/disklayout"
)

// Device is an indexed random-access array of disklayout.BlockSize-byte
// blocks. Implementations must be safe for concurrent use; the cache
// serializes access per block but not per device.
type Device interface {
	// ReadBlock fills dst (exactly one block) with the contents of
	// block bno.
	ReadBlock(bno uint32, dst []byte) error

	// WriteBlock commits src (exactly one block) to block bno.
	WriteBlock(bno uint32, src []byte) error

	// SizeBlocks returns the device capacity in blocks.
	SizeBlocks() uint32
}

////////////////////////////////////////////////////////////////////////
// MemDisk
////////////////////////////////////////////////////////////////////////

// MemDisk is a Device backed by a byte slice. It is the device used by
// tests.
type MemDisk struct {
	data []byte
}

// NewMemDisk creates a zeroed in-memory device with the given capacity.
func NewMemDisk(nblocks uint32) *MemDisk {
	return &MemDisk{data: make([]byte, int(nblocks)*disklayout.BlockSize)}
}

func (d *MemDisk) ReadBlock(bno uint32, dst []byte) error {
	off, err := d.extent(bno)
	if err != nil {
		return err
	}
	copy(dst, d.data[off:off+disklayout.BlockSize])
	return nil
}

func (d *MemDisk) WriteBlock(bno uint32, src []byte) error {
	off, err := d.extent(bno)
	if err != nil {
		return err
	}
	copy(d.data[off:off+disklayout.BlockSize], src)
	return nil
}

func (d *MemDisk) SizeBlocks() uint32 {
	return uint32(len(d.data) / disklayout.BlockSize)
}

func (d *MemDisk) extent(bno uint32) (int, error) {
	off := int(bno) * disklayout.BlockSize
	if off+disklayout.BlockSize > len(d.data) {
		return 0, fmt.Errorf("memdisk: block %d out of range", bno)
	}
	return off, nil
}

////////////////////////////////////////////////////////////////////////
// FileDisk
////////////////////////////////////////////////////////////////////////

// FileDisk is a Device backed by an image file on the host.
type FileDisk struct {
	f       *os.File
	nblocks uint32
}

// OpenFileDisk opens an existing image file as a device.
func OpenFileDisk(path string) (*FileDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat image: %w", err)
	}

	return &FileDisk{
		f:       f,
		nblocks: uint32(fi.Size() / disklayout.BlockSize),
	}, nil
}

// CreateFileDisk creates (or truncates) an image file of the given size.
func CreateFileDisk(path string, nblocks uint32) (*FileDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("create image: %w", err)
	}

	if err := f.Truncate(int64(nblocks) * disklayout.BlockSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate image: %w", err)
	}

	return &FileDisk{f: f, nblocks: nblocks}, nil
}

func (d *FileDisk) ReadBlock(bno uint32, dst []byte) error {
	if bno >= d.nblocks {
		return fmt.Errorf("filedisk: block %d out of range", bno)
	}
	_, err := d.f.ReadAt(dst[:disklayout.BlockSize], int64(bno)*disklayout.BlockSize)
	return err
}

func (d *FileDisk) WriteBlock(bno uint32, src []byte) error {
	if bno >= d.nblocks {
		return fmt.Errorf("filedisk: block %d out of range", bno)
	}
	_, err := d.f.WriteAt(src[:disklayout.BlockSize], int64(bno)*disklayout.BlockSize)
	return err
}

func (d *FileDisk) SizeBlocks() uint32 {
	return d.nblocks
}

// Close closes the underlying image file.
func (d *FileDisk) Close() error {
	return d.f.Close()
}
