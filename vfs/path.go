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

package vfs

// SkipElem splits the first path element off path. It skips leading
// slashes, copies the element into name, then skips trailing slashes
// and returns the remainder. Elements longer than DirNameLen are
// silently truncated; an element of exactly DirNameLen bytes fills the
// name with no terminator, matching the fixed-width on-disk format.
// ok is false when no element remains.
func SkipElem(path string) (rest string, name Name, ok bool) {
	i := 0
	for i < len(path) && path[i] == '/' {
		i++
	}
	if i == len(path) {
		return "", Name{}, false
	}

	start := i
	for i < len(path) && path[i] != '/' {
		i++
	}
	copy(name[:], path[start:i])

	for i < len(path) && path[i] == '/' {
		i++
	}
	return path[i:], name, true
}

// Resolver walks paths through the inode table and the mounted file
// systems.
type Resolver struct {
	it   *ITable
	root *Superblock
}

// NewResolver creates a resolver rooted at the given superblock.
func NewResolver(it *ITable, root *Superblock) *Resolver {
	return &Resolver{it: it, root: root}
}

// Namei resolves path to a referenced, unlocked inode. Relative paths
// start at cwd.
func (r *Resolver) Namei(path string, cwd *Inode) (*Inode, error) {
	ip, _, err := r.namex(path, cwd, false)
	return ip, err
}

// NameiParent resolves path to its parent directory, returning the
// final path element as well. Fails on the root path, which has no
// parent element.
func (r *Resolver) NameiParent(path string, cwd *Inode) (*Inode, Name, error) {
	return r.namex(path, cwd, true)
}

func (r *Resolver) namex(path string, cwd *Inode, wantParent bool) (*Inode, Name, error) {
	if len(path) == 0 || len(path) > MaxPath {
		return nil, Name{}, ErrBadArgument
	}

	var ip *Inode
	if path[0] == '/' {
		ip = r.it.Dup(r.root.Root)
	} else {
		ip = r.it.Dup(cwd)
	}

	rest, name, ok := SkipElem(path)
	for ok {
		ip.Lock()

		if ip.Type != TypeDir {
			r.it.UnlockPut(ip)
			return nil, Name{}, ErrNotDir
		}

		if wantParent && rest == "" {
			// Stop one level early, handing the caller the reference.
			ip.Unlock()
			return ip, name, nil
		}

		d := ip.ops.DirLookup(ip, name)
		if d == nil || d.Inode == nil {
			r.it.UnlockPut(ip)
			return nil, Name{}, ErrNotFound
		}

		next := d.Inode

		// Cross into a file system mounted over this entry.
		if d.IsMount {
			if child := ip.sb.MountAt(d); child != nil {
				next = r.it.Dup(child.Root)
				r.it.Put(d.Inode)
			}
		}

		ip.ops.ReleaseDentry(d)
		r.it.UnlockPut(ip)
		ip = next

		rest, name, ok = SkipElem(rest)
	}

	if wantParent {
		r.it.Put(ip)
		return nil, Name{}, ErrNotFound
	}
	return ip, name, nil
}
