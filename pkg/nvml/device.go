// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package nvml exposes the host's GPU inventory through the NVIDIA
// management library. Builds without the nvml tag report the inventory as
// unavailable instead of failing.
package nvml

import "errors"

// ErrNotAvailable is returned when the build carries no NVML support or
// the library cannot be loaded on this host.
var ErrNotAvailable = errors.New("NVML is not available")

// DeviceInfo describes one GPU device.
type DeviceInfo struct {
	Index       int
	Name        string
	UUID        string
	MemoryBytes uint64
}
