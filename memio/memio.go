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

// Package memio abstracts over the two destinations a transfer can
// have: a task's address space or a kernel buffer. The file system
// copies block windows through a Target without knowing which it is.
package memio

import "errors"

// ErrBadAddress is returned when a transfer touches memory outside the
// target. Syscalls surface it as a failed call, never as a panic.
var ErrBadAddress = errors.New("memio: address out of range")

// AddrSpace is a task's memory as seen from the kernel.
type AddrSpace interface {
	// CopyOut writes src into the space at addr.
	CopyOut(addr uint64, src []byte) error

	// CopyIn reads len(dst) bytes from the space at addr.
	CopyIn(dst []byte, addr uint64) error
}

// Target is an either-user-or-kernel transfer destination/source with
// its own base; offsets passed to the methods are relative to it.
type Target interface {
	CopyOut(off int64, src []byte) error
	CopyIn(dst []byte, off int64) error
}

////////////////////////////////////////////////////////////////////////
// Kernel buffers
////////////////////////////////////////////////////////////////////////

// Bytes is a Target backed by a kernel buffer.
type Bytes []byte

func (b Bytes) CopyOut(off int64, src []byte) error {
	if off < 0 || off+int64(len(src)) > int64(len(b)) {
		return ErrBadAddress
	}
	copy(b[off:], src)
	return nil
}

func (b Bytes) CopyIn(dst []byte, off int64) error {
	if off < 0 || off+int64(len(dst)) > int64(len(b)) {
		return ErrBadAddress
	}
	copy(dst, b[off:])
	return nil
}

// Section returns a view of t starting at base, for chunked transfers.
func Section(t Target, base int64) Target {
	return section{t: t, base: base}
}

type section struct {
	t    Target
	base int64
}

func (s section) CopyOut(off int64, src []byte) error {
	return s.t.CopyOut(s.base+off, src)
}

func (s section) CopyIn(dst []byte, off int64) error {
	return s.t.CopyIn(dst, s.base+off)
}

////////////////////////////////////////////////////////////////////////
// User ranges
////////////////////////////////////////////////////////////////////////

// UserRange is a Target addressing [Base, ...) within an address space.
type UserRange struct {
	Space AddrSpace
	Base  uint64
}

func (r UserRange) CopyOut(off int64, src []byte) error {
	if off < 0 {
		return ErrBadAddress
	}
	return r.Space.CopyOut(r.Base+uint64(off), src)
}

func (r UserRange) CopyIn(dst []byte, off int64) error {
	if off < 0 {
		return ErrBadAddress
	}
	return r.Space.CopyIn(dst, r.Base+uint64(off))
}
