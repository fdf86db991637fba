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

package wal_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vkernel/vfs/wal"
)

func TestBracketTracksActivity(t *testing.T) {
	l := wal.NewWriteThrough()
	assert.False(t, l.Active())

	l.Begin()
	assert.True(t, l.Active())

	l.Begin()
	l.End()
	assert.True(t, l.Active())

	l.End()
	assert.False(t, l.Active())
}

func TestEndWithoutBeginPanics(t *testing.T) {
	l := wal.NewWriteThrough()
	assert.Panics(t, func() { l.End() })
}

func TestSaturatedLogBlocksUntilEnd(t *testing.T) {
	l := wal.NewWriteThrough()

	// Saturate.
	l.Begin()
	l.Begin()
	l.Begin()

	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(started)
		l.Begin() // blocks until a slot frees up
		l.End()
	}()

	<-started
	l.End()
	wg.Wait()

	l.End()
	l.End()
	assert.False(t, l.Active())
}
