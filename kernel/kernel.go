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

// Package kernel assembles the core and exposes the syscall surface:
// buffer cache, log bracket, the vfs tables, the registered xv6fs
// type mounted as root, the device switch, pipes, and per-task
// process state.
package kernel

// LOCK ORDERING
//
// Define a strict partial order on the core's locks:
//
//  1. A parent directory's inode lock comes before its child's.
//  2. Any inode lock comes before the itable lock.
//  3. Any buffer lock comes before the buffer cache lock.
//
// We follow the rule "acquire A then B only if A < B", with one
// exception: ITable.Put takes the sleep lock of an inode whose last
// reference it holds while holding the itable lock, which cannot block
// because no one else can hold that sleep lock. Long-running
// operations hold inode and buffer locks; the table locks are held
// only for short, non-suspending sections.

import (
	"io"

	"github.com/jacobsa/timeutil"
	"github.com/vkernel/vfs/buf"
	"github.com/vkernel/vfs/disklayout"
	"github.com/vkernel/vfs/internal/logger"
	"github.com/vkernel/vfs/monitor"
	"github.com/vkernel/vfs/vfs"
	"github.com/vkernel/vfs/wal"
	"github.com/vkernel/vfs/xv6fs"
)

// RootDevPath is the device path the root file system mounts from.
const RootDevPath = "disk0"

// ExecFunc is the program loader's entry point. The loader itself is
// external; SysExec marshals arguments and defers to this hook.
type ExecFunc func(p *Proc, path string, argv []string) int64

// Options configures a kernel.
type Options struct {
	// The block device holding the root file system. Required.
	Disk buf.Device

	// Clock for buffer-cache recycling. Defaults to the real clock.
	Clock timeutil.Clock

	// Metrics handle. Defaults to a noop.
	Metrics monitor.Metrics

	// Console streams. When both are nil no console is wired.
	ConsoleIn  io.Reader
	ConsoleOut io.Writer

	// Program loader hook. When nil, exec fails.
	Exec ExecFunc
}

// Kernel is the boot-time singleton context threaded through every
// syscall.
type Kernel struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	Cache    *buf.Cache
	Log      wal.Log
	Inodes   *vfs.ITable
	Dentries *vfs.DTable
	Files    *vfs.FTable
	Types    *vfs.TypeTable
	Devs     *DevSwitch

	metrics monitor.Metrics
	exec    ExecFunc

	/////////////////////////
	// Constant data
	/////////////////////////

	// Root mount, established at boot and never torn down.
	Root *vfs.Superblock

	resolver *vfs.Resolver
}

// New boots a kernel over the given disk: registers the device and the
// xv6fs type, initializes every table, and mounts the root file
// system.
func New(opts Options) (*Kernel, error) {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = monitor.NewNoop()
	}

	k := &Kernel{
		Log:     wal.NewWriteThrough(),
		Types:   &vfs.TypeTable{},
		Devs:    &DevSwitch{},
		metrics: metrics,
		exec:    opts.Exec,
	}

	k.Cache = buf.NewCache(clock)
	k.Cache.RegisterDevice(disklayout.RootDev, opts.Disk)

	k.Inodes = vfs.NewITable(k.Log)
	k.Dentries = vfs.NewDTable()
	k.Files = vfs.NewFTable(k.Log, k.Devs)

	if opts.ConsoleIn != nil || opts.ConsoleOut != nil {
		k.Devs.Register(ConsoleMajor, NewConsole(opts.ConsoleIn, opts.ConsoleOut))
	}

	fs := xv6fs.New(k.Cache, k.Log, k.Inodes, k.Dentries, k.Files)
	fs.RegisterDevice(RootDevPath, disklayout.RootDev)
	k.Types.Register(fs.FilesystemType())
	k.Types.InitAll()

	ft := k.Types.Lookup(xv6fs.TypeName)
	sb, err := ft.Ops.Mount(RootDevPath)
	if err != nil {
		return nil, err
	}
	k.Root = sb
	k.resolver = vfs.NewResolver(k.Inodes, sb)

	logger.Infof("kernel: root mounted from %q", RootDevPath)
	return k, nil
}

// Resolver returns the kernel's path resolver.
func (k *Kernel) Resolver() *vfs.Resolver {
	return k.resolver
}

// NewProc creates a task rooted at "/" with the given address-space
// size.
func (k *Kernel) NewProc(name string, memSize int) *Proc {
	return &Proc{
		Name: name,
		Mem:  NewMem(memSize),
		Cwd:  k.Inodes.Dup(k.Root.Root),
	}
}

// ExitProc releases everything the task holds: open descriptors and
// the working directory reference.
func (k *Kernel) ExitProc(p *Proc) {
	for fd, f := range p.OFile {
		if f != nil {
			p.OFile[fd] = nil
			k.Files.Close(f)
		}
	}

	k.Log.Begin()
	k.Inodes.Put(p.Cwd)
	k.Log.End()
	p.Cwd = nil
}
