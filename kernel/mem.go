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

import (
	"encoding/binary"

	"github.com/vkernel/vfs/memio"
)

// Mem is a task's address space: a flat byte range addressed from
// zero. Transfers that touch memory outside it fail with
// memio.ErrBadAddress, which syscalls surface as a failed call.
type Mem struct {
	data []byte
}

var _ memio.AddrSpace = (*Mem)(nil)

// NewMem allocates a zeroed address space of the given size.
func NewMem(size int) *Mem {
	return &Mem{data: make([]byte, size)}
}

// Size returns the extent of the address space in bytes.
func (m *Mem) Size() int {
	return len(m.data)
}

func (m *Mem) CopyOut(addr uint64, src []byte) error {
	if addr+uint64(len(src)) > uint64(len(m.data)) {
		return memio.ErrBadAddress
	}
	copy(m.data[addr:], src)
	return nil
}

func (m *Mem) CopyIn(dst []byte, addr uint64) error {
	if addr+uint64(len(dst)) > uint64(len(m.data)) {
		return memio.ErrBadAddress
	}
	copy(dst, m.data[addr:])
	return nil
}

// FetchAddr reads a 64-bit little-endian word at addr.
func (m *Mem) FetchAddr(addr uint64) (uint64, error) {
	var b [8]byte
	if err := m.CopyIn(b[:], addr); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// FetchStr reads a NUL-terminated string of at most max bytes starting
// at addr. A missing terminator within the bound is an error.
func (m *Mem) FetchStr(addr uint64, max int) (string, error) {
	if addr >= uint64(len(m.data)) {
		return "", memio.ErrBadAddress
	}

	end := addr + uint64(max)
	if end > uint64(len(m.data)) {
		end = uint64(len(m.data))
	}

	for i := addr; i < end; i++ {
		if m.data[i] == 0 {
			return string(m.data[addr:i]), nil
		}
	}
	return "", memio.ErrBadAddress
}
