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

// Package locker provides the sleep lock used for long critical sections
// that perform I/O. Unlike a plain mutex it can be asked whether it is
// held, and it panics on release-when-free, which always indicates a bug
// in the caller's lock discipline.
package locker

import (
	"fmt"
	"sync"
)

// SleepLock is a mutex that may suspend the acquiring task. The zero
// value is unlocked; call Init before first use.
type SleepLock struct {
	name string

	mu     sync.Mutex
	cond   *sync.Cond
	locked bool // GUARDED_BY(mu)
}

// Init prepares the lock. The name appears in panic messages only.
func (l *SleepLock) Init(name string) {
	l.name = name
	l.cond = sync.NewCond(&l.mu)
}

// Acquire blocks until the lock is free, then takes it.
func (l *SleepLock) Acquire() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for l.locked {
		l.cond.Wait()
	}
	l.locked = true
}

// Release frees the lock. Panics if the lock is not held.
func (l *SleepLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.locked {
		panic(fmt.Sprintf("sleeplock %q: release of unheld lock", l.name))
	}
	l.locked = false
	l.cond.Signal()
}

// Held reports whether some task currently holds the lock. Task identity
// is not tracked, so this is an existence check, not an ownership check.
func (l *SleepLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.locked
}
