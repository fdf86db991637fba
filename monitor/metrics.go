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

// Package monitor counts kernel operations. The default handle is a
// noop; hosts that want visibility install the prometheus-backed one.
package monitor

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the handle the kernel increments.
type Metrics interface {
	// SyscallCount counts one invocation of the named syscall.
	SyscallCount(name string)

	// FSOpCount counts one file-system-level operation.
	FSOpCount(op string)
}

////////////////////////////////////////////////////////////////////////
// Noop
////////////////////////////////////////////////////////////////////////

type noopMetrics struct{}

// NewNoop returns a handle that discards every count.
func NewNoop() Metrics {
	return noopMetrics{}
}

func (noopMetrics) SyscallCount(name string) {}
func (noopMetrics) FSOpCount(op string)      {}

////////////////////////////////////////////////////////////////////////
// Prometheus
////////////////////////////////////////////////////////////////////////

type promMetrics struct {
	syscalls *prometheus.CounterVec
	fsOps    *prometheus.CounterVec
}

// NewPrometheus returns a handle whose counters are registered with
// reg.
func NewPrometheus(reg prometheus.Registerer) (Metrics, error) {
	m := &promMetrics{
		syscalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vfs_syscalls_total",
				Help: "Number of syscalls dispatched, by name.",
			},
			[]string{"syscall"}),
		fsOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vfs_fs_ops_total",
				Help: "Number of file-system operations, by operation.",
			},
			[]string{"fs_op"}),
	}

	if err := reg.Register(m.syscalls); err != nil {
		return nil, err
	}
	if err := reg.Register(m.fsOps); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *promMetrics) SyscallCount(name string) {
	m.syscalls.WithLabelValues(name).Inc()
}

func (m *promMetrics) FSOpCount(op string) {
	m.fsOps.WithLabelValues(op).Inc()
}
