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

// Package wal defines the transaction bracket consumed by operations
// that may free disk blocks. Crash recovery itself lives outside the
// core; the bracket's contract is that block writes grouped between
// Begin and End become durable atomically.
package wal

import "sync"

// MaxOpBlocks is the most blocks a single bracketed operation may
// write. File writes are chunked against this bound.
const MaxOpBlocks = 10

// maxActiveOps bounds how many brackets may be open at once, mirroring
// the capacity a real log header would reserve.
const maxActiveOps = 3

// Log is the bracket contract. Every call path that can reach an inode
// put must run between Begin and End.
type Log interface {
	// Begin opens a bracket, blocking while the log is saturated.
	Begin()

	// End closes a bracket. Panics if no bracket is open.
	End()

	// Active reports whether at least one bracket is currently open.
	// The inode layer asserts this before freeing disk blocks.
	Active() bool
}

// writeThrough is a Log with no recovery: writes reach the device as
// they happen, and the bracket only enforces the concurrency contract.
type writeThrough struct {
	mu   sync.Mutex
	cond *sync.Cond

	// Number of open brackets.
	//
	// INVARIANT: 0 <= outstanding <= maxActiveOps
	//
	// GUARDED_BY(mu)
	outstanding int
}

// NewWriteThrough creates a Log that provides the bracket contract
// without crash recovery.
func NewWriteThrough() Log {
	l := &writeThrough{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *writeThrough) Begin() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for l.outstanding >= maxActiveOps {
		l.cond.Wait()
	}
	l.outstanding++
}

func (l *writeThrough) End() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.outstanding == 0 {
		panic("wal: End without Begin")
	}
	l.outstanding--
	l.cond.Signal()
}

func (l *writeThrough) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.outstanding > 0
}
