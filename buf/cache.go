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

// Package buf implements the block buffer cache: a fixed pool of
// sleep-locked block-sized buffers over registered devices. A buffer
// returned by Bread is locked and owned by the caller until Brelse.
package buf

import (
	"fmt"
	"time"

	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
	"github.com/vkernel/vfs/disklayout"
	"github.com/vkernel/vfs/internal/locker"
	"github.com/vkernel/vfs/internal/logger"
)

// NBuf is the number of buffers in the cache.
const NBuf = 30

// Buffer is one cached block. Between Bread and Brelse the caller holds
// the buffer's sleep lock and may read and mutate Data freely.
type Buffer struct {
	/////////////////////////
	// Constant data
	/////////////////////////

	cache *Cache

	/////////////////////////
	// Identity, guarded by the cache lock
	/////////////////////////

	// Which block this buffer holds.
	//
	// GUARDED_BY(cache.mu)
	dev     uint32
	blockno uint32

	// Number of outstanding references: one per unreleased Bread plus
	// one per pin.
	//
	// GUARDED_BY(cache.mu)
	refcnt uint32

	// When the buffer last went idle, for LRU recycling.
	//
	// GUARDED_BY(cache.mu)
	lastUse time.Time

	/////////////////////////
	// Contents, guarded by lk
	/////////////////////////

	lk locker.SleepLock

	// Whether Data holds the block's contents.
	//
	// GUARDED_BY(lk)
	valid bool

	// GUARDED_BY(lk)
	Data [disklayout.BlockSize]byte
}

// Dev returns the device the buffer belongs to.
func (b *Buffer) Dev() uint32 { return b.dev }

// Blockno returns the block number the buffer holds.
func (b *Buffer) Blockno() uint32 { return b.blockno }

// Cache is the buffer cache. One instance serves every registered
// device.
type Cache struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	clock timeutil.Clock

	/////////////////////////
	// Mutable state
	/////////////////////////

	// Guards buffer identity and reference counts; never held across
	// device I/O.
	//
	// INVARIANT: Among buffers with refcnt > 0 and equal dev, blocknos
	// are unique.
	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	devices map[uint32]Device

	// GUARDED_BY(mu)
	bufs [NBuf]*Buffer
}

// NewCache creates an empty cache whose LRU decisions use the supplied
// clock.
func NewCache(clock timeutil.Clock) *Cache {
	c := &Cache{
		clock:   clock,
		devices: make(map[uint32]Device),
	}
	for i := range c.bufs {
		b := &Buffer{cache: c}
		b.lk.Init(fmt.Sprintf("buffer %d", i))
		c.bufs[i] = b
	}

	c.mu = syncutil.NewInvariantMutex(c.checkInvariants)
	return c
}

// RegisterDevice makes dev available to Bread and Bwrite.
func (c *Cache) RegisterDevice(dev uint32, d Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices[dev] = d
}

func (c *Cache) checkInvariants() {
	// INVARIANT: Among buffers with refcnt > 0 and equal dev, blocknos
	// are unique.
	seen := make(map[[2]uint32]bool)
	for _, b := range c.bufs {
		if b.refcnt == 0 {
			continue
		}
		key := [2]uint32{b.dev, b.blockno}
		if seen[key] {
			panic(fmt.Sprintf("duplicate live buffer for (%d, %d)", b.dev, b.blockno))
		}
		seen[key] = true
	}
}

// LOCKS_REQUIRED(c.mu)
func (c *Cache) device(dev uint32) Device {
	d, ok := c.devices[dev]
	if !ok {
		panic(fmt.Sprintf("buf: unregistered device %d", dev))
	}
	return d
}

// Look up a buffer for block blockno on device dev, recycling the least
// recently used idle buffer on a miss. The returned buffer is locked
// and may not yet be valid.
//
// LOCKS_EXCLUDED(c.mu)
func (c *Cache) bget(dev uint32, blockno uint32) *Buffer {
	c.mu.Lock()

	// Already cached?
	for _, b := range c.bufs {
		if b.refcnt > 0 && b.dev == dev && b.blockno == blockno {
			b.refcnt++
			c.mu.Unlock()
			b.lk.Acquire()
			return b
		}
	}

	// An idle buffer may still hold the block.
	var victim *Buffer
	for _, b := range c.bufs {
		if b.refcnt != 0 {
			continue
		}
		if b.dev == dev && b.blockno == blockno {
			victim = b
			break
		}
		if victim == nil || b.lastUse.Before(victim.lastUse) {
			victim = b
		}
	}

	if victim == nil {
		panic("bget: no buffers")
	}

	recycled := victim.dev != dev || victim.blockno != blockno
	victim.dev = dev
	victim.blockno = blockno
	victim.refcnt = 1
	c.mu.Unlock()

	victim.lk.Acquire()
	if recycled {
		victim.valid = false
	}
	return victim
}

// Bread returns a locked buffer with the contents of the indicated
// block. Device errors are fatal.
func (c *Cache) Bread(dev uint32, blockno uint32) *Buffer {
	b := c.bget(dev, blockno)
	if !b.valid {
		c.mu.Lock()
		d := c.device(dev)
		c.mu.Unlock()

		if err := d.ReadBlock(blockno, b.Data[:]); err != nil {
			panic(fmt.Sprintf("bread: device %d block %d: %v", dev, blockno, err))
		}
		b.valid = true
	}
	return b
}

// Bwrite commits the buffer's contents to its device. The caller must
// hold the buffer's lock.
func (c *Cache) Bwrite(b *Buffer) {
	if !b.lk.Held() {
		panic("bwrite: buffer lock not held")
	}

	c.mu.Lock()
	d := c.device(b.dev)
	c.mu.Unlock()

	if err := d.WriteBlock(b.blockno, b.Data[:]); err != nil {
		panic(fmt.Sprintf("bwrite: device %d block %d: %v", b.dev, b.blockno, err))
	}
}

// Brelse unlocks the buffer and drops the reference acquired by Bread.
func (c *Cache) Brelse(b *Buffer) {
	if !b.lk.Held() {
		panic("brelse: buffer lock not held")
	}
	b.lk.Release()

	c.mu.Lock()
	defer c.mu.Unlock()

	if b.refcnt == 0 {
		panic("brelse: refcnt underflow")
	}
	b.refcnt--
	if b.refcnt == 0 {
		b.lastUse = c.clock.Now()
		logger.Tracef("buf: block (%d, %d) idle", b.dev, b.blockno)
	}
}

// Bpin takes an extra reference so the buffer survives Brelse and is
// not recycled until Bunpin.
func (c *Cache) Bpin(b *Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b.refcnt++
}

// Bunpin drops a reference taken by Bpin.
func (c *Cache) Bunpin(b *Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b.refcnt == 0 {
		panic("bunpin: refcnt underflow")
	}
	b.refcnt--
	if b.refcnt == 0 {
		b.lastUse = c.clock.Now()
	}
}
