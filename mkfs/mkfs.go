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

// Package mkfs formats a block device with an empty file system: boot
// block, superblock, log region, inode region holding the root
// directory, and the free-block bitmap.
package mkfs

import (
	"fmt"

	"github.com/vkernel/vfs/buf"
	"github.com/vkernel/vfs/cfg"
	"github.com/vkernel/vfs/disklayout"
	"github.com/vkernel/vfs/internal/logger"
)

// Format writes an empty file system onto d using the given geometry,
// returning the superblock it wrote. The device's existing contents in
// the metadata region are destroyed; stale data blocks are left to be
// zeroed on allocation.
func Format(d buf.Device, c cfg.Config) (disklayout.Superblock, error) {
	if err := c.Validate(); err != nil {
		return disklayout.Superblock{}, fmt.Errorf("mkfs: %w", err)
	}
	if d.SizeBlocks() < c.SizeBlocks {
		return disklayout.Superblock{}, fmt.Errorf(
			"mkfs: device holds %d blocks, geometry needs %d",
			d.SizeBlocks(), c.SizeBlocks)
	}

	ninodeblocks := c.NInodes/disklayout.InodesPerBlock + 1
	nmeta := c.MetaBlocks()
	sb := disklayout.Superblock{
		Magic:      disklayout.Magic,
		Size:       c.SizeBlocks,
		NBlocks:    c.SizeBlocks - nmeta,
		NInodes:    c.NInodes,
		NLog:       c.NLog,
		LogStart:   2,
		InodeStart: 2 + c.NLog,
		BmapStart:  2 + c.NLog + ninodeblocks,
	}

	// Zero the whole metadata region, boot block included.
	var zero [disklayout.BlockSize]byte
	for bno := uint32(0); bno < nmeta; bno++ {
		if err := d.WriteBlock(bno, zero[:]); err != nil {
			return sb, fmt.Errorf("mkfs: zero block %d: %w", bno, err)
		}
	}

	var block [disklayout.BlockSize]byte

	// Superblock.
	sb.Encode(block[:])
	if err := d.WriteBlock(disklayout.SuperblockNum, block[:]); err != nil {
		return sb, fmt.Errorf("mkfs: superblock: %w", err)
	}

	// Root directory: inode RootIno, one data block holding "." and
	// "..", both pointing back at the root.
	rootData := nmeta
	di := disklayout.Dinode{
		Type:  disklayout.TypeDir,
		NLink: 1,
		Size:  2 * disklayout.DirentSize,
	}
	di.Addrs[0] = rootData

	block = [disklayout.BlockSize]byte{}
	di.Encode(block[:], disklayout.DinodeOffset(disklayout.RootIno))
	if err := d.WriteBlock(disklayout.InodeBlock(disklayout.RootIno, &sb), block[:]); err != nil {
		return sb, fmt.Errorf("mkfs: root inode: %w", err)
	}

	block = [disklayout.BlockSize]byte{}
	dot := disklayout.Dirent{Inum: disklayout.RootIno, Name: disklayout.DirName{'.'}}
	dotdot := disklayout.Dirent{Inum: disklayout.RootIno, Name: disklayout.DirName{'.', '.'}}
	dot.Encode(block[0:])
	dotdot.Encode(block[disklayout.DirentSize:])
	if err := d.WriteBlock(rootData, block[:]); err != nil {
		return sb, fmt.Errorf("mkfs: root directory: %w", err)
	}

	// Bitmap: metadata blocks plus the root data block are in use.
	used := nmeta + 1
	for base := uint32(0); base < used; base += disklayout.BitsPerBlock {
		block = [disklayout.BlockSize]byte{}
		for bi := uint32(0); bi < disklayout.BitsPerBlock && base+bi < used; bi++ {
			block[bi/8] |= byte(1) << (bi % 8)
		}
		if err := d.WriteBlock(disklayout.BitmapBlock(base, &sb), block[:]); err != nil {
			return sb, fmt.Errorf("mkfs: bitmap: %w", err)
		}
	}

	logger.Debugf(
		"mkfs: %d blocks total, %d metadata, %d data, %d inodes",
		sb.Size, nmeta, sb.NBlocks, sb.NInodes)
	return sb, nil
}
