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

package logger

import (
	"bytes"
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func emitAll() {
	Tracef("trace %d", 1)
	Debugf("debug %d", 2)
	Infof("info %d", 3)
	Warnf("warning %d", 4)
	Errorf("error %d", 5)
}

func TestSeverityFiltering(t *testing.T) {
	defer SetOutput(os.Stderr, LevelInfo)

	var b bytes.Buffer

	SetOutput(&b, LevelTrace)
	emitAll()
	out := b.String()
	for _, want := range []string{
		"severity=TRACE", "severity=DEBUG", "severity=INFO",
		"severity=WARNING", "severity=ERROR",
	} {
		assert.Contains(t, out, want)
	}

	b.Reset()
	SetOutput(&b, LevelWarning)
	emitAll()
	out = b.String()
	assert.NotContains(t, out, "severity=TRACE")
	assert.NotContains(t, out, "severity=DEBUG")
	assert.NotContains(t, out, "severity=INFO")
	assert.Contains(t, out, "severity=WARNING")
	assert.Contains(t, out, "severity=ERROR")
}

func TestMessageFormatting(t *testing.T) {
	defer SetOutput(os.Stderr, LevelInfo)

	var b bytes.Buffer
	SetOutput(&b, LevelInfo)
	Infof("mounted %q with %d blocks", "disk0", 1000)

	re := regexp.MustCompile(`severity=INFO message="mounted \\"disk0\\" with 1000 blocks"`)
	assert.True(t, re.MatchString(b.String()), "got: %s", b.String())
}
