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
	"encoding/binary"

	"github.com/vkernel/vfs/internal/logger"
	"github.com/vkernel/vfs/memio"
	"github.com/vkernel/vfs/vfs"
)

// Open mode flags.
const (
	OReadOnly  = 0x000
	OWriteOnly = 0x001
	OReadWrite = 0x002
	OCreate    = 0x200
	OTrunc     = 0x400
)

// MaxArg bounds the argv array accepted by exec.
const MaxArg = 32

// Every syscall returns -1 on failure; success values are listed per
// call. Inode references acquired along an error path are put before
// returning, inside the same log bracket that covers the operation.

// linkEntry writes (name -> target) into directory dp through a pooled
// dentry. The caller must hold dp's sleep lock and a log bracket.
func (k *Kernel) linkEntry(ops vfs.Ops, dp *vfs.Inode, name vfs.Name, target *vfs.Inode) error {
	d := k.Dentries.GetBlank()
	if d == nil {
		return vfs.ErrNoDentries
	}
	d.Ops = ops
	d.Parent = dp
	d.Name = name
	d.Inode = target

	err := ops.Link(d)
	k.Dentries.Free(d)
	return err
}

// create resolves path's parent and makes the final element as a fresh
// inode of the given type, returning it locked and referenced. Opening
// an existing regular file with typ TypeFile succeeds and returns the
// existing inode. Must run inside a log bracket.
func (k *Kernel) create(p *Proc, path string, typ int16, major int16, minor int16) (*vfs.Inode, error) {
	dp, name, err := k.resolver.NameiParent(path, p.Cwd)
	if err != nil {
		return nil, err
	}

	ops := dp.OpsTable()
	dp.Lock()

	// Existing entry?
	if d := ops.DirLookup(dp, name); d != nil {
		ip := d.Inode
		ops.ReleaseDentry(d)
		k.Inodes.UnlockPut(dp)

		ip.Lock()
		if typ == vfs.TypeFile && (ip.Type == vfs.TypeFile || ip.Type == vfs.TypeDevice) {
			return ip, nil
		}
		k.Inodes.UnlockPut(ip)
		return nil, vfs.ErrExists
	}

	ip, err := ops.AllocInode(dp.Sb(), typ)
	if err != nil {
		k.Inodes.UnlockPut(dp)
		return nil, err
	}
	k.metrics.FSOpCount("create")

	ip.Lock()

	stamp := &vfs.Dentry{Ops: ops, Parent: dp, Name: name, Inode: ip}
	err = ops.Create(stamp, typ, major, minor)
	if err == nil {
		ip.NLink = 1
		ops.WriteInode(ip)

		if typ == vfs.TypeDir {
			// The child's own "." and "..". No extra link count for
			// ".": a directory does not keep itself alive.
			if err = k.linkEntry(ops, ip, vfs.NameFromString("."), ip); err == nil {
				err = k.linkEntry(ops, ip, vfs.NameFromString(".."), dp)
			}
		}

		if err == nil {
			err = k.linkEntry(ops, dp, name, ip)
		}

		if err == nil && typ == vfs.TypeDir {
			// The parent gained a link through the child's "..". This
			// is last so no failure can leave it to unwind.
			dp.NLink++
			ops.WriteInode(dp)
		}
	}

	if err != nil {
		// Undo the allocation: with the link count zeroed, the final
		// put frees the disk inode and anything it mapped.
		ip.NLink = 0
		ops.WriteInode(ip)
		k.Inodes.UnlockPut(ip)
		k.Inodes.UnlockPut(dp)
		return nil, err
	}

	k.Inodes.UnlockPut(dp)
	return ip, nil
}

// SysOpen opens path with the given mode, returning a descriptor.
func (k *Kernel) SysOpen(p *Proc, pathAddr uint64, omode int64) int64 {
	k.metrics.SyscallCount("open")

	path, err := p.Mem.FetchStr(pathAddr, vfs.MaxPath)
	if err != nil {
		return -1
	}

	k.Log.Begin()
	defer k.Log.End()

	var ip *vfs.Inode
	if omode&OCreate != 0 {
		ip, err = k.create(p, path, vfs.TypeFile, 0, 0)
		if err != nil {
			logger.Debugf("open %q: %v", path, err)
			return -1
		}
	} else {
		ip, err = k.resolver.Namei(path, p.Cwd)
		if err != nil {
			logger.Debugf("open %q: %v", path, err)
			return -1
		}
		ip.Lock()
		if ip.Type == vfs.TypeDir && omode != OReadOnly {
			k.Inodes.UnlockPut(ip)
			return -1
		}
	}

	readable := omode&OWriteOnly == 0
	writable := omode&OWriteOnly != 0 || omode&OReadWrite != 0

	ops := ip.OpsTable()
	f, err := ops.Open(ip, readable, writable)
	if err != nil {
		k.Inodes.UnlockPut(ip)
		return -1
	}

	// A device file must name a wired driver.
	if f.Kind == vfs.KindDevice && k.Devs.Get(f.Major) == nil {
		k.Files.Discard(f)
		k.Inodes.UnlockPut(ip)
		return -1
	}

	fd := p.fdAlloc(f)
	if fd < 0 {
		k.Files.Discard(f)
		k.Inodes.UnlockPut(ip)
		return -1
	}

	if omode&OTrunc != 0 && ip.Type == vfs.TypeFile {
		ops.Trunc(ip)
		k.metrics.FSOpCount("trunc")
	}

	ip.Unlock()
	return int64(fd)
}

// SysRead reads up to n bytes from fd into task memory at addr,
// returning the number of bytes read.
func (k *Kernel) SysRead(p *Proc, fd int64, addr uint64, n int64) int64 {
	k.metrics.SyscallCount("read")

	f := p.file(fd)
	if f == nil || n < 0 {
		return -1
	}

	r, err := k.Files.Read(f, memio.UserRange{Space: p.Mem, Base: addr}, int(n))
	if err != nil {
		return -1
	}
	return int64(r)
}

// SysWrite writes n bytes from task memory at addr to fd, returning n.
func (k *Kernel) SysWrite(p *Proc, fd int64, addr uint64, n int64) int64 {
	k.metrics.SyscallCount("write")

	f := p.file(fd)
	if f == nil || n < 0 {
		return -1
	}

	r, err := k.Files.Write(f, memio.UserRange{Space: p.Mem, Base: addr}, int(n))
	if err != nil || r != int(n) {
		return -1
	}
	return int64(r)
}

// SysClose releases fd.
func (k *Kernel) SysClose(p *Proc, fd int64) int64 {
	k.metrics.SyscallCount("close")

	f := p.file(fd)
	if f == nil {
		return -1
	}

	p.OFile[fd] = nil
	k.Files.Close(f)
	return 0
}

// SysDup returns a new descriptor for the same open file.
func (k *Kernel) SysDup(p *Proc, fd int64) int64 {
	k.metrics.SyscallCount("dup")

	f := p.file(fd)
	if f == nil {
		return -1
	}

	k.Files.Dup(f)
	fd2 := p.fdAlloc(f)
	if fd2 < 0 {
		k.Files.Close(f)
		return -1
	}
	return int64(fd2)
}

// SysFstat copies fd's stat record to task memory at addr.
func (k *Kernel) SysFstat(p *Proc, fd int64, addr uint64) int64 {
	k.metrics.SyscallCount("fstat")

	f := p.file(fd)
	if f == nil {
		return -1
	}

	var st vfs.Stat
	if err := k.Files.Stat(f, &st); err != nil {
		return -1
	}

	var b [vfs.StatSize]byte
	st.Encode(b[:])
	if err := p.Mem.CopyOut(addr, b[:]); err != nil {
		return -1
	}
	return 0
}

// SysLink makes path newAddr a new name for the file at path oldAddr.
func (k *Kernel) SysLink(p *Proc, oldAddr uint64, newAddr uint64) int64 {
	k.metrics.SyscallCount("link")

	old, err := p.Mem.FetchStr(oldAddr, vfs.MaxPath)
	if err != nil {
		return -1
	}
	newPath, err := p.Mem.FetchStr(newAddr, vfs.MaxPath)
	if err != nil {
		return -1
	}

	k.Log.Begin()
	defer k.Log.End()

	ip, err := k.resolver.Namei(old, p.Cwd)
	if err != nil {
		return -1
	}

	ip.Lock()
	if ip.Type == vfs.TypeDir {
		k.Inodes.UnlockPut(ip)
		return -1
	}

	ops := ip.OpsTable()
	ip.NLink++
	ops.WriteInode(ip)
	ip.Unlock()

	dp, name, err := k.resolver.NameiParent(newPath, p.Cwd)
	if err == nil {
		dp.Lock()
		if dp.Dev() != ip.Dev() {
			err = vfs.ErrCrossDevice
		} else {
			err = k.linkEntry(ops, dp, name, ip)
		}
		k.Inodes.UnlockPut(dp)
	}

	if err != nil {
		// Roll back the link count taken above.
		ip.Lock()
		ip.NLink--
		ops.WriteInode(ip)
		k.Inodes.UnlockPut(ip)
		logger.Debugf("link %q -> %q: %v", newPath, old, err)
		return -1
	}

	k.metrics.FSOpCount("link")
	k.Inodes.Put(ip)
	return 0
}

// SysUnlink removes the directory entry at path.
func (k *Kernel) SysUnlink(p *Proc, pathAddr uint64) int64 {
	k.metrics.SyscallCount("unlink")

	path, err := p.Mem.FetchStr(pathAddr, vfs.MaxPath)
	if err != nil {
		return -1
	}

	k.Log.Begin()
	defer k.Log.End()

	dp, name, err := k.resolver.NameiParent(path, p.Cwd)
	if err != nil {
		return -1
	}

	ops := dp.OpsTable()
	dp.Lock()

	// Cannot unlink "." or "..".
	if name.IsDot() || name.IsDotDot() {
		k.Inodes.UnlockPut(dp)
		return -1
	}

	d := ops.DirLookup(dp, name)
	if d == nil {
		k.Inodes.UnlockPut(dp)
		return -1
	}

	ip := d.Inode
	ip.Lock()

	if ip.NLink < 1 {
		panic("unlink: nlink < 1")
	}
	if ip.Type == vfs.TypeDir && !ops.IsDirEmpty(ip) {
		k.Inodes.UnlockPut(ip)
		ops.ReleaseDentry(d)
		k.Inodes.UnlockPut(dp)
		return -1
	}

	if err := ops.Unlink(d); err != nil {
		k.Inodes.UnlockPut(ip)
		ops.ReleaseDentry(d)
		k.Inodes.UnlockPut(dp)
		return -1
	}

	if ip.Type == vfs.TypeDir {
		// The victim's ".." no longer names the parent.
		dp.NLink--
		ops.WriteInode(dp)
	}
	ops.ReleaseDentry(d)
	k.Inodes.UnlockPut(dp)

	ip.NLink--
	ops.WriteInode(ip)
	k.Inodes.UnlockPut(ip)
	k.metrics.FSOpCount("unlink")
	return 0
}

// SysMkdir creates a directory at path.
func (k *Kernel) SysMkdir(p *Proc, pathAddr uint64) int64 {
	k.metrics.SyscallCount("mkdir")

	path, err := p.Mem.FetchStr(pathAddr, vfs.MaxPath)
	if err != nil {
		return -1
	}

	k.Log.Begin()
	defer k.Log.End()

	ip, err := k.create(p, path, vfs.TypeDir, 0, 0)
	if err != nil {
		logger.Debugf("mkdir %q: %v", path, err)
		return -1
	}
	k.Inodes.UnlockPut(ip)
	return 0
}

// SysMknod creates a device node at path.
func (k *Kernel) SysMknod(p *Proc, pathAddr uint64, major int64, minor int64) int64 {
	k.metrics.SyscallCount("mknod")

	path, err := p.Mem.FetchStr(pathAddr, vfs.MaxPath)
	if err != nil {
		return -1
	}

	k.Log.Begin()
	defer k.Log.End()

	ip, err := k.create(p, path, vfs.TypeDevice, int16(major), int16(minor))
	if err != nil {
		return -1
	}
	k.Inodes.UnlockPut(ip)
	return 0
}

// SysChdir changes the task's working directory.
func (k *Kernel) SysChdir(p *Proc, pathAddr uint64) int64 {
	k.metrics.SyscallCount("chdir")

	path, err := p.Mem.FetchStr(pathAddr, vfs.MaxPath)
	if err != nil {
		return -1
	}

	k.Log.Begin()
	defer k.Log.End()

	ip, err := k.resolver.Namei(path, p.Cwd)
	if err != nil {
		return -1
	}

	ip.Lock()
	if ip.Type != vfs.TypeDir {
		k.Inodes.UnlockPut(ip)
		return -1
	}
	ip.Unlock()

	k.Inodes.Put(p.Cwd)
	p.Cwd = ip
	return 0
}

// SysPipe creates a pipe and stores its two descriptors, as 32-bit
// words, at addr.
func (k *Kernel) SysPipe(p *Proc, addr uint64) int64 {
	k.metrics.SyscallCount("pipe")

	rf, wf, err := PipeAlloc(k.Files)
	if err != nil {
		return -1
	}

	fd0 := p.fdAlloc(rf)
	if fd0 < 0 {
		k.Files.Close(rf)
		k.Files.Close(wf)
		return -1
	}
	fd1 := p.fdAlloc(wf)
	if fd1 < 0 {
		p.OFile[fd0] = nil
		k.Files.Close(rf)
		k.Files.Close(wf)
		return -1
	}

	var b [8]byte
	binary.LittleEndian.PutUint32(b[0:4], uint32(fd0))
	binary.LittleEndian.PutUint32(b[4:8], uint32(fd1))
	if err := p.Mem.CopyOut(addr, b[:]); err != nil {
		p.OFile[fd0] = nil
		p.OFile[fd1] = nil
		k.Files.Close(rf)
		k.Files.Close(wf)
		return -1
	}
	return 0
}

// SysExec fetches path and argv and defers to the loader hook.
func (k *Kernel) SysExec(p *Proc, pathAddr uint64, argvAddr uint64) int64 {
	k.metrics.SyscallCount("exec")

	path, err := p.Mem.FetchStr(pathAddr, vfs.MaxPath)
	if err != nil {
		return -1
	}

	var argv []string
	for i := 0; ; i++ {
		if i >= MaxArg {
			return -1
		}

		uarg, err := p.Mem.FetchAddr(argvAddr + uint64(8*i))
		if err != nil {
			return -1
		}
		if uarg == 0 {
			break
		}

		arg, err := p.Mem.FetchStr(uarg, vfs.MaxPath)
		if err != nil {
			return -1
		}
		argv = append(argv, arg)
	}

	if k.exec == nil {
		return -1
	}
	return k.exec(p, path, argv)
}
