// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

//go:build !linux || !nvml

package nvml

// Devices reports that no GPU inventory is available on this build.
func Devices() ([]DeviceInfo, error) {
	return nil, ErrNotAvailable
}
