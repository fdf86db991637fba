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
	"io"
	"sync"

	"github.com/vkernel/vfs/memio"
	"github.com/vkernel/vfs/vfs"
)

const (
	// NDev is the size of the device switch.
	NDev = 10

	// ConsoleMajor is the major number the console registers under.
	ConsoleMajor = 1
)

// DevSwitch maps major numbers to device drivers.
type DevSwitch struct {
	mu   sync.Mutex
	devs [NDev]vfs.Device // GUARDED_BY(mu)
}

var _ vfs.DevSwitch = (*DevSwitch)(nil)

// Register installs a driver at the given major number.
func (ds *DevSwitch) Register(major int16, dev vfs.Device) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.devs[major] = dev
}

// Get returns the driver for major, or nil for an unwired number.
func (ds *DevSwitch) Get(major int16) vfs.Device {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if major < 0 || int(major) >= NDev {
		return nil
	}
	return ds.devs[major]
}

// Console is the device driver behind major ConsoleMajor, bridging to
// a host reader and writer.
type Console struct {
	mu  sync.Mutex
	in  io.Reader
	out io.Writer
}

var _ vfs.Device = (*Console)(nil)

// NewConsole creates a console over the given host streams.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out}
}

func (c *Console) Read(dst memio.Target, n int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := make([]byte, n)
	r, err := c.in.Read(b)
	if r > 0 {
		if cerr := dst.CopyOut(0, b[:r]); cerr != nil {
			return 0, vfs.ErrShortCopy
		}
	}
	if err == io.EOF {
		err = nil
	}
	return r, err
}

func (c *Console) Write(src memio.Target, n int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := make([]byte, n)
	if err := src.CopyIn(b, 0); err != nil {
		return 0, vfs.ErrShortCopy
	}
	return c.out.Write(b)
}
