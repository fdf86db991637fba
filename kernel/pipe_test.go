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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkernel/vfs/memio"
	"github.com/vkernel/vfs/vfs"
	"github.com/vkernel/vfs/wal"
)

func newPipeEnds(t *testing.T) (*vfs.File, *vfs.File, *vfs.FTable) {
	ft := vfs.NewFTable(wal.NewWriteThrough(), &DevSwitch{})
	rf, wf, err := PipeAlloc(ft)
	require.NoError(t, err)
	return rf, wf, ft
}

func TestPipeWriteThenRead(t *testing.T) {
	rf, wf, ft := newPipeEnds(t)

	src := memio.Bytes([]byte("hello, pipe"))
	n, err := ft.Write(wf, src, len(src))
	require.NoError(t, err)
	assert.Equal(t, len(src), n)

	dst := memio.Bytes(make([]byte, len(src)))
	n, err = ft.Read(rf, dst, len(src))
	require.NoError(t, err)
	assert.Equal(t, len(src), n)
	assert.Equal(t, []byte("hello, pipe"), []byte(dst))

	ft.Close(rf)
	ft.Close(wf)
}

func TestPipeReadAfterWriterCloses(t *testing.T) {
	rf, wf, ft := newPipeEnds(t)

	ft.Write(wf, memio.Bytes([]byte("tail")), 4)
	ft.Close(wf)

	// Buffered bytes drain first, then EOF.
	dst := memio.Bytes(make([]byte, 8))
	n, err := ft.Read(rf, dst, 8)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = ft.Read(rf, dst, 8)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	ft.Close(rf)
}

func TestPipeWriteAfterReaderClosesFails(t *testing.T) {
	rf, wf, ft := newPipeEnds(t)
	ft.Close(rf)

	_, err := ft.Write(wf, memio.Bytes([]byte("x")), 1)
	assert.Error(t, err)

	ft.Close(wf)
}

func TestPipeBlocksWriterWhenFull(t *testing.T) {
	rf, wf, ft := newPipeEnds(t)

	big := make([]byte, pipeSize+100)
	for i := range big {
		big[i] = byte(i)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		n, err := ft.Write(wf, memio.Bytes(big), len(big))
		assert.NoError(t, err)
		assert.Equal(t, len(big), n)
	}()

	// Drain everything; the writer unblocks once space frees up.
	got := make([]byte, 0, len(big))
	dst := memio.Bytes(make([]byte, 128))
	for len(got) < len(big) {
		n, err := ft.Read(rf, dst, 128)
		require.NoError(t, err)
		got = append(got, dst[:n]...)
	}
	wg.Wait()

	assert.Equal(t, big, got)

	ft.Close(rf)
	ft.Close(wf)
}

func TestPipeDescriptorSharing(t *testing.T) {
	rf, wf, ft := newPipeEnds(t)

	// A dup'd write end keeps the pipe open until both close.
	ft.Dup(wf)
	ft.Close(wf)

	_, err := ft.Write(wf, memio.Bytes([]byte("ok")), 2)
	require.NoError(t, err)

	ft.Close(wf)
	dst := memio.Bytes(make([]byte, 4))
	n, err := ft.Read(rf, dst, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = ft.Read(rf, dst, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	ft.Close(rf)
}
