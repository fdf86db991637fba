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

package buf_test

import (
	"testing"
	"time"

	"github.com/jacobsa/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkernel/vfs/buf"
	"github.com/vkernel/vfs/disklayout"
)

const testDev = 1

func newCache() (*buf.Cache, *buf.MemDisk, *timeutil.SimulatedClock) {
	clock := &timeutil.SimulatedClock{}
	clock.SetTime(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	disk := buf.NewMemDisk(64)
	c := buf.NewCache(clock)
	c.RegisterDevice(testDev, disk)
	return c, disk, clock
}

func TestBreadReturnsDeviceContents(t *testing.T) {
	c, disk, _ := newCache()

	var block [disklayout.BlockSize]byte
	block[0] = 0xab
	block[511] = 0xcd
	require.NoError(t, disk.WriteBlock(7, block[:]))

	b := c.Bread(testDev, 7)
	assert.Equal(t, byte(0xab), b.Data[0])
	assert.Equal(t, byte(0xcd), b.Data[511])
	assert.Equal(t, uint32(7), b.Blockno())
	c.Brelse(b)
}

func TestBwriteCommitsToDevice(t *testing.T) {
	c, disk, _ := newCache()

	b := c.Bread(testDev, 3)
	b.Data[10] = 0x5a
	c.Bwrite(b)
	c.Brelse(b)

	var block [disklayout.BlockSize]byte
	require.NoError(t, disk.ReadBlock(3, block[:]))
	assert.Equal(t, byte(0x5a), block[10])
}

func TestCacheHitKeepsContents(t *testing.T) {
	c, _, _ := newCache()

	b := c.Bread(testDev, 5)
	b.Data[0] = 0x11
	c.Brelse(b)

	// Still cached: the dirty byte is visible without a device write.
	b2 := c.Bread(testDev, 5)
	assert.Equal(t, byte(0x11), b2.Data[0])
	c.Brelse(b2)
}

func TestLeastRecentlyUsedBufferIsRecycled(t *testing.T) {
	c, _, clock := newCache()

	// Touch block 0, then block 1 later. Fill the rest of the cache and
	// allocate one more: block 0's buffer is the oldest idle one.
	b := c.Bread(testDev, 0)
	c.Brelse(b)
	clock.AdvanceTime(time.Second)

	// Dirty block 1 in cache only; never written to the device.
	b = c.Bread(testDev, 1)
	b.Data[0] = 0x42
	c.Brelse(b)
	clock.AdvanceTime(time.Second)

	for bno := uint32(2); bno < buf.NBuf; bno++ {
		b = c.Bread(testDev, bno)
		c.Brelse(b)
		clock.AdvanceTime(time.Second)
	}

	b = c.Bread(testDev, 60)
	c.Brelse(b)

	// Block 1 is still resident with its dirty byte; block 0's buffer
	// was the oldest idle one and got recycled.
	b = c.Bread(testDev, 1)
	assert.Equal(t, byte(0x42), b.Data[0])
	c.Brelse(b)
}

func TestPinnedBufferSurvivesRelease(t *testing.T) {
	c, _, _ := newCache()

	b := c.Bread(testDev, 2)
	c.Bpin(b)
	b.Data[0] = 0x77
	c.Brelse(b)

	// Fill the cache; the pinned buffer may not be recycled.
	for bno := uint32(3); bno < 3+buf.NBuf; bno++ {
		x := c.Bread(testDev, bno%64)
		c.Brelse(x)
	}

	b2 := c.Bread(testDev, 2)
	assert.Equal(t, byte(0x77), b2.Data[0])
	c.Brelse(b2)
	c.Bunpin(b2)
}

func TestBrelseWithoutLockPanics(t *testing.T) {
	c, _, _ := newCache()

	b := c.Bread(testDev, 1)
	c.Brelse(b)
	assert.Panics(t, func() { c.Brelse(b) })
}

func TestUnregisteredDevicePanics(t *testing.T) {
	c, _, _ := newCache()
	assert.Panics(t, func() { c.Bread(99, 0) })
}
