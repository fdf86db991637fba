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
	"errors"
	"sync"

	"github.com/vkernel/vfs/memio"
	"github.com/vkernel/vfs/vfs"
)

// pipeSize is the ring buffer capacity of a pipe.
const pipeSize = 512

// ErrPipeClosed is returned when writing a pipe with no reader.
var ErrPipeClosed = errors.New("kernel: write on pipe with no reader")

// pipe is a bounded byte queue shared by a read end and a write end.
type pipe struct {
	mu   sync.Mutex
	cond *sync.Cond

	// GUARDED_BY(mu)
	data [pipeSize]byte

	// Total bytes read and written; their difference is the fill.
	//
	// INVARIANT: nread <= nwrite <= nread + pipeSize
	//
	// GUARDED_BY(mu)
	nread  uint64
	nwrite uint64

	// GUARDED_BY(mu)
	readOpen  bool
	writeOpen bool
}

var _ vfs.PipeEnd = (*pipe)(nil)

// PipeAlloc creates a connected pipe and the two files wrapping its
// ends.
func PipeAlloc(ft *vfs.FTable) (rf *vfs.File, wf *vfs.File, err error) {
	p := &pipe{readOpen: true, writeOpen: true}
	p.cond = sync.NewCond(&p.mu)

	rf = ft.Alloc()
	if rf == nil {
		return nil, nil, vfs.ErrTooManyFiles
	}
	wf = ft.Alloc()
	if wf == nil {
		ft.Discard(rf)
		return nil, nil, vfs.ErrTooManyFiles
	}

	rf.Kind = vfs.KindPipe
	rf.Pipe = p
	rf.Readable = true

	wf.Kind = vfs.KindPipe
	wf.Pipe = p
	wf.Writable = true

	return rf, wf, nil
}

func (p *pipe) Read(dst memio.Target, n int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.nread == p.nwrite && p.writeOpen {
		p.cond.Wait()
	}

	tot := 0
	for tot < n && p.nread < p.nwrite {
		c := p.data[p.nread%pipeSize]
		if err := dst.CopyOut(int64(tot), []byte{c}); err != nil {
			if tot > 0 {
				break
			}
			return 0, vfs.ErrShortCopy
		}
		p.nread++
		tot++
	}

	p.cond.Broadcast()
	return tot, nil
}

func (p *pipe) Write(src memio.Target, n int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tot := 0
	for tot < n {
		if !p.readOpen {
			return tot, ErrPipeClosed
		}
		if p.nwrite == p.nread+pipeSize {
			p.cond.Broadcast()
			p.cond.Wait()
			continue
		}

		var c [1]byte
		if err := src.CopyIn(c[:], int64(tot)); err != nil {
			return tot, vfs.ErrShortCopy
		}
		p.data[p.nwrite%pipeSize] = c[0]
		p.nwrite++
		tot++
	}

	p.cond.Broadcast()
	return tot, nil
}

func (p *pipe) Close(writable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writable {
		p.writeOpen = false
	} else {
		p.readOpen = false
	}
	p.cond.Broadcast()
}
