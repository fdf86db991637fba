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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vkernel/vfs/buf"
	"github.com/vkernel/vfs/disklayout"
	"github.com/vkernel/vfs/kernel"
	"github.com/vkernel/vfs/mkfs"
)

// Task-memory staging addresses. The task gets 1 MiB; paths live low,
// data buffers high.
const (
	pathAddr  = 0x1000
	path2Addr = 0x2000
	dataAddr  = 0x10000
	dataMax   = 1 << 19
)

var mkfsCmd = &cobra.Command{
	Use:   "mkfs image",
	Short: "Create an image holding an empty file system",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		disk, err := buf.CreateFileDisk(args[0], toolConfig.SizeBlocks)
		if err != nil {
			return err
		}
		defer disk.Close()

		sb, err := mkfs.Format(disk, toolConfig)
		if err != nil {
			return err
		}

		fmt.Printf("%s: %d blocks, %d data blocks, %d inodes\n",
			args[0], sb.Size, sb.NBlocks, sb.NInodes)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info image",
	Short: "Print an image's superblock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		disk, err := buf.OpenFileDisk(args[0])
		if err != nil {
			return err
		}
		defer disk.Close()

		var b [disklayout.BlockSize]byte
		if err := disk.ReadBlock(disklayout.SuperblockNum, b[:]); err != nil {
			return err
		}
		sb, err := disklayout.DecodeSuperblock(b[:])
		if err != nil {
			return err
		}
		if sb.Magic != disklayout.Magic {
			return fmt.Errorf("bad magic %#x: not a formatted image", sb.Magic)
		}

		fmt.Printf("size       %d blocks\n", sb.Size)
		fmt.Printf("data       %d blocks\n", sb.NBlocks)
		fmt.Printf("inodes     %d\n", sb.NInodes)
		fmt.Printf("log        %d blocks at %d\n", sb.NLog, sb.LogStart)
		fmt.Printf("inodestart %d\n", sb.InodeStart)
		fmt.Printf("bmapstart  %d\n", sb.BmapStart)
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls image path",
	Short: "List a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, p, disk, err := bootImage(args[0])
		if err != nil {
			return err
		}
		defer disk.Close()
		defer k.ExitProc(p)

		if _, err := stageStr(p, pathAddr, args[1]); err != nil {
			return err
		}
		fd := k.SysOpen(p, pathAddr, kernel.OReadOnly)
		if fd < 0 {
			return fmt.Errorf("open %q failed", args[1])
		}
		defer k.SysClose(p, fd)

		var st [16]byte
		for {
			n := k.SysRead(p, fd, dataAddr, disklayout.DirentSize)
			if n <= 0 {
				break
			}
			if err := p.Mem.CopyIn(st[:], dataAddr); err != nil {
				return err
			}
			de := disklayout.DecodeDirent(st[:])
			if de.Inum == 0 {
				continue
			}
			fmt.Printf("%-14s %d\n", de.Name.String(), de.Inum)
		}
		return nil
	},
}

var catCmd = &cobra.Command{
	Use:   "cat image path",
	Short: "Copy a file's contents to stdout",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, p, disk, err := bootImage(args[0])
		if err != nil {
			return err
		}
		defer disk.Close()
		defer k.ExitProc(p)

		if _, err := stageStr(p, pathAddr, args[1]); err != nil {
			return err
		}
		fd := k.SysOpen(p, pathAddr, kernel.OReadOnly)
		if fd < 0 {
			return fmt.Errorf("open %q failed", args[1])
		}
		defer k.SysClose(p, fd)

		out := make([]byte, 4096)
		for {
			n := k.SysRead(p, fd, dataAddr, int64(len(out)))
			if n < 0 {
				return fmt.Errorf("read %q failed", args[1])
			}
			if n == 0 {
				return nil
			}
			if err := p.Mem.CopyIn(out[:n], dataAddr); err != nil {
				return err
			}
			if _, err := os.Stdout.Write(out[:n]); err != nil {
				return err
			}
		}
	},
}

var putCmd = &cobra.Command{
	Use:   "put image host-file path",
	Short: "Copy a host file into the image",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		if len(data) > dataMax {
			return fmt.Errorf("%s: %d bytes exceeds the %d-byte staging area",
				args[1], len(data), dataMax)
		}

		k, p, disk, err := bootImage(args[0])
		if err != nil {
			return err
		}
		defer disk.Close()
		defer k.ExitProc(p)

		if _, err := stageStr(p, pathAddr, args[2]); err != nil {
			return err
		}
		fd := k.SysOpen(p, pathAddr, kernel.OCreate|kernel.OReadWrite|kernel.OTrunc)
		if fd < 0 {
			return fmt.Errorf("create %q failed", args[2])
		}
		defer k.SysClose(p, fd)

		if err := p.Mem.CopyOut(dataAddr, data); err != nil {
			return err
		}
		if n := k.SysWrite(p, fd, dataAddr, int64(len(data))); n != int64(len(data)) {
			return fmt.Errorf("write %q: wrote %d of %d bytes", args[2], n, len(data))
		}
		return nil
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir image path",
	Short: "Create a directory in the image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, p, disk, err := bootImage(args[0])
		if err != nil {
			return err
		}
		defer disk.Close()
		defer k.ExitProc(p)

		if _, err := stageStr(p, pathAddr, args[1]); err != nil {
			return err
		}
		if k.SysMkdir(p, pathAddr) < 0 {
			return fmt.Errorf("mkdir %q failed", args[1])
		}
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm image path",
	Short: "Unlink a file or empty directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, p, disk, err := bootImage(args[0])
		if err != nil {
			return err
		}
		defer disk.Close()
		defer k.ExitProc(p)

		if _, err := stageStr(p, pathAddr, args[1]); err != nil {
			return err
		}
		if k.SysUnlink(p, pathAddr) < 0 {
			return fmt.Errorf("rm %q failed", args[1])
		}
		return nil
	},
}

var linkCmd = &cobra.Command{
	Use:   "link image old new",
	Short: "Add a new name for an existing file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, p, disk, err := bootImage(args[0])
		if err != nil {
			return err
		}
		defer disk.Close()
		defer k.ExitProc(p)

		if _, err := stageStr(p, pathAddr, args[1]); err != nil {
			return err
		}
		if _, err := stageStr(p, path2Addr, args[2]); err != nil {
			return err
		}
		if k.SysLink(p, pathAddr, path2Addr) < 0 {
			return fmt.Errorf("link %q -> %q failed", args[2], args[1])
		}
		return nil
	},
}

var mknodCmd = &cobra.Command{
	Use:   "mknod image path major minor",
	Short: "Create a device node in the image",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		var major, minor int64
		if _, err := fmt.Sscan(args[2], &major); err != nil {
			return err
		}
		if _, err := fmt.Sscan(args[3], &minor); err != nil {
			return err
		}

		k, p, disk, err := bootImage(args[0])
		if err != nil {
			return err
		}
		defer disk.Close()
		defer k.ExitProc(p)

		if _, err := stageStr(p, pathAddr, args[1]); err != nil {
			return err
		}
		if k.SysMknod(p, pathAddr, major, minor) < 0 {
			return fmt.Errorf("mknod %q failed", args[1])
		}
		return nil
	},
}

func init() {
	mkfsCmd.Flags().Uint32Var(
		&toolConfig.SizeBlocks, "size-blocks", toolConfig.SizeBlocks,
		"Total image size in blocks")
	mkfsCmd.Flags().Uint32Var(
		&toolConfig.NInodes, "ninodes", toolConfig.NInodes,
		"Number of inodes")
	mkfsCmd.Flags().Uint32Var(
		&toolConfig.NLog, "nlog", toolConfig.NLog,
		"Number of log blocks")

	rootCmd.AddCommand(
		mkfsCmd, infoCmd, lsCmd, catCmd, putCmd, mkdirCmd, rmCmd, linkCmd, mknodCmd)
}
