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

package vfs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vkernel/vfs/vfs"
)

func TestSkipElem(t *testing.T) {
	testCases := []struct {
		name     string
		path     string
		wantName string
		wantRest string
		wantOK   bool
	}{
		{"simple", "a/bb/c", "a", "bb/c", true},
		{"leading slashes", "///a//bb", "a", "bb", true},
		{"single element", "a", "a", "", true},
		{"trailing slash", "a/", "a", "", true},
		{"empty", "", "", "", false},
		{"only slashes", "////", "", "", false},
		{"dot", ".", ".", "", true},
		{"dotdot then more", "../x", "..", "x", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rest, name, ok := vfs.SkipElem(tc.path)
			assert.Equal(t, tc.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tc.wantName, name.String())
			assert.Equal(t, tc.wantRest, rest)
		})
	}
}

func TestSkipElemFixedWidthNames(t *testing.T) {
	// A 14-byte element fills the name exactly, with no terminator.
	rest, name, ok := vfs.SkipElem("abcdefghijklmn/x")
	assert.True(t, ok)
	assert.Equal(t, "x", rest)
	assert.Equal(t, vfs.NameFromString("abcdefghijklmn"), name)

	// A longer element truncates to the same fixed-width name, so the
	// two are indistinguishable, exactly as they are on disk.
	_, longName, ok := vfs.SkipElem("abcdefghijklmnop")
	assert.True(t, ok)
	assert.Equal(t, name, longName)
}

func TestNameDotPredicates(t *testing.T) {
	assert.True(t, vfs.NameFromString(".").IsDot())
	assert.True(t, vfs.NameFromString("..").IsDotDot())
	assert.False(t, vfs.NameFromString("...").IsDotDot())
	assert.False(t, vfs.NameFromString("x.").IsDot())
}
