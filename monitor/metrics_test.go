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

package monitor_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkernel/vfs/monitor"
)

func TestNoopAcceptsCounts(t *testing.T) {
	m := monitor.NewNoop()
	m.SyscallCount("open")
	m.FSOpCount("create")
}

func TestPrometheusCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := monitor.NewPrometheus(reg)
	require.NoError(t, err)

	m.SyscallCount("open")
	m.SyscallCount("open")
	m.SyscallCount("read")
	m.FSOpCount("create")

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]float64)
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			key := f.GetName()
			for _, l := range metric.GetLabel() {
				key += "/" + l.GetValue()
			}
			byName[key] = metric.GetCounter().GetValue()
		}
	}

	assert.Equal(t, 2.0, byName["vfs_syscalls_total/open"])
	assert.Equal(t, 1.0, byName["vfs_syscalls_total/read"])
	assert.Equal(t, 1.0, byName["vfs_fs_ops_total/create"])
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := monitor.NewPrometheus(reg)
	require.NoError(t, err)

	_, err = monitor.NewPrometheus(reg)
	assert.Error(t, err)
}
