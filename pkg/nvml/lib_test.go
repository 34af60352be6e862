// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

//go:build linux && nvml

package nvml

import (
	"testing"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	nvmlmock "github.com/NVIDIA/go-nvml/pkg/nvml/mock"
	"github.com/stretchr/testify/require"
)

func TestEnsureInitCachesSuccessfulInit(t *testing.T) {
	initCalls := 0
	lib := &nvmlmock.Interface{
		InitFunc: func() nvml.Return {
			initCalls++
			return nvml.SUCCESS
		},
	}
	newFunc := func(_ ...nvml.LibraryOption) nvml.Interface { return lib }

	cache := &nvmlCache{}
	require.NoError(t, cache.ensureInitWithOpts(newFunc))
	require.NoError(t, cache.ensureInitWithOpts(newFunc))
	require.Equal(t, 1, initCalls)
}

func TestEnsureInitRetriesFailedInit(t *testing.T) {
	initCalls := 0
	lib := &nvmlmock.Interface{
		InitFunc: func() nvml.Return {
			initCalls++
			return nvml.ERROR_LIBRARY_NOT_FOUND
		},
	}
	newFunc := func(_ ...nvml.LibraryOption) nvml.Interface { return lib }

	cache := &nvmlCache{}
	require.ErrorIs(t, cache.ensureInitWithOpts(newFunc), ErrNotAvailable)
	require.ErrorIs(t, cache.ensureInitWithOpts(newFunc), ErrNotAvailable)
	require.Equal(t, 2, initCalls)
}

func TestEnsureInitRecoversAfterFailure(t *testing.T) {
	initCalls := 0
	ret := nvml.ERROR_LIBRARY_NOT_FOUND
	lib := &nvmlmock.Interface{
		InitFunc: func() nvml.Return {
			initCalls++
			return ret
		},
	}
	newFunc := func(_ ...nvml.LibraryOption) nvml.Interface { return lib }

	cache := &nvmlCache{}
	require.Error(t, cache.ensureInitWithOpts(newFunc))

	ret = nvml.SUCCESS
	require.NoError(t, cache.ensureInitWithOpts(newFunc))
	require.NoError(t, cache.ensureInitWithOpts(newFunc))
	require.Equal(t, 2, initCalls)
}

func TestDevicesEnumeratesInventory(t *testing.T) {
	device := &nvmlmock.Device{
		GetNameFunc: func() (string, nvml.Return) {
			return "NVIDIA H100 80GB HBM3", nvml.SUCCESS
		},
		GetUUIDFunc: func() (string, nvml.Return) {
			return "GPU-5f6cf21d", nvml.SUCCESS
		},
		GetMemoryInfoFunc: func() (nvml.Memory, nvml.Return) {
			return nvml.Memory{Total: 80 * 1024 * 1024 * 1024}, nvml.SUCCESS
		},
	}
	lib := &nvmlmock.Interface{
		DeviceGetCountFunc: func() (int, nvml.Return) {
			return 2, nvml.SUCCESS
		},
		DeviceGetHandleByIndexFunc: func(index int) (nvml.Device, nvml.Return) {
			if index == 1 {
				return nil, nvml.ERROR_GPU_IS_LOST
			}
			return device, nvml.SUCCESS
		},
	}

	devs, err := devices(lib)
	require.NoError(t, err)
	require.Len(t, devs, 1)
	require.Equal(t, 0, devs[0].Index)
	require.Equal(t, "NVIDIA H100 80GB HBM3", devs[0].Name)
	require.Equal(t, "GPU-5f6cf21d", devs[0].UUID)
	require.Equal(t, uint64(80*1024*1024*1024), devs[0].MemoryBytes)
}

func TestDevicesFailsWhenCountUnavailable(t *testing.T) {
	lib := &nvmlmock.Interface{
		DeviceGetCountFunc: func() (int, nvml.Return) {
			return 0, nvml.ERROR_UNINITIALIZED
		},
	}

	_, err := devices(lib)
	require.Error(t, err)
}
