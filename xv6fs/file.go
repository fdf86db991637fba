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

package xv6fs

import "github.com/vkernel/vfs/vfs"

// Open builds an open-file record for ip, adopting the caller's inode
// reference. The caller must hold ip's sleep lock, since the file kind
// depends on the inode type.
func (fs *FileSystem) Open(ip *vfs.Inode, readable bool, writable bool) (*vfs.File, error) {
	f := fs.ftable.Alloc()
	if f == nil {
		return nil, vfs.ErrTooManyFiles
	}

	f.Ops = fs
	f.Inode = ip
	f.Readable = readable
	f.Writable = writable
	f.Off = 0

	if ip.Type == vfs.TypeDevice {
		f.Kind = vfs.KindDevice
		f.Major = payload(ip).major
	} else {
		f.Kind = vfs.KindInode
	}

	return f, nil
}

// Close puts the inode reference of a file whose last descriptor was
// just closed. The put may free disk blocks, so it runs in its own log
// bracket.
func (fs *FileSystem) Close(f *vfs.File) {
	fs.log.Begin()
	fs.itable.Put(f.Inode)
	fs.log.End()
}
