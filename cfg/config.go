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

// Package cfg holds the typed configuration for formatting and
// mounting images.
package cfg

import (
	"fmt"

	"github.com/vkernel/vfs/disklayout"
)

// Config describes disk geometry and runtime options. Field tags are
// consumed by viper when a config file is supplied to the CLI.
type Config struct {
	// Total image size in blocks.
	SizeBlocks uint32 `mapstructure:"size-blocks"`

	// Number of inodes in the inode region.
	NInodes uint32 `mapstructure:"ninodes"`

	// Number of log blocks reserved after the superblock.
	NLog uint32 `mapstructure:"nlog"`

	// Minimum log severity: TRACE, DEBUG, INFO, WARNING or ERROR.
	LogSeverity string `mapstructure:"log-severity"`
}

// Default returns the geometry used when no config file is given.
func Default() Config {
	return Config{
		SizeBlocks:  1000,
		NInodes:     200,
		NLog:        30,
		LogSeverity: "INFO",
	}
}

// MetaBlocks returns the number of blocks the layout reserves before
// the first data block: boot, superblock, log, inodes, bitmap.
func (c *Config) MetaBlocks() uint32 {
	ninodeblocks := c.NInodes/disklayout.InodesPerBlock + 1
	nbitmap := c.SizeBlocks/disklayout.BitsPerBlock + 1
	return 2 + c.NLog + ninodeblocks + nbitmap
}

// Validate rejects geometries the layout cannot hold.
func (c *Config) Validate() error {
	if c.NInodes == 0 {
		return fmt.Errorf("ninodes must be positive")
	}
	if c.NInodes-1 > 0xffff {
		return fmt.Errorf("ninodes %d exceeds the 16-bit directory entry range", c.NInodes)
	}

	meta := c.MetaBlocks()
	if c.SizeBlocks <= meta+1 {
		return fmt.Errorf(
			"size-blocks %d leaves no data blocks after %d metadata blocks",
			c.SizeBlocks, meta)
	}

	switch c.LogSeverity {
	case "TRACE", "DEBUG", "INFO", "WARNING", "ERROR":
	default:
		return fmt.Errorf("unknown log severity %q", c.LogSeverity)
	}

	return nil
}
