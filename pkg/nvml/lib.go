// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

//go:build linux && nvml

package nvml

import (
	"fmt"
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"github.com/DataDog/gputrace/pkg/util/log"
)

// nvmlCache holds a lazily initialized NVML library handle. A failed
// initialization is not cached, the next caller retries it.
type nvmlCache struct {
	mu          sync.Mutex
	lib         nvml.Interface
	initialized bool
}

var cache nvmlCache

func (c *nvmlCache) ensureInit() error {
	return c.ensureInitWithOpts(nvml.New)
}

func (c *nvmlCache) ensureInitWithOpts(nvmlNewFunc func(opts ...nvml.LibraryOption) nvml.Interface) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}

	lib := nvmlNewFunc()
	if lib == nil {
		return fmt.Errorf("%w: failed to load the library", ErrNotAvailable)
	}

	ret := lib.Init()
	if ret != nvml.SUCCESS && ret != nvml.ERROR_ALREADY_INITIALIZED {
		return fmt.Errorf("%w: failed to initialize: %s", ErrNotAvailable, nvml.ErrorString(ret))
	}

	c.lib = lib
	c.initialized = true
	return nil
}

// Devices enumerates the GPUs visible to the host.
func Devices() ([]DeviceInfo, error) {
	if err := cache.ensureInit(); err != nil {
		return nil, err
	}
	return devices(cache.lib)
}

func devices(lib nvml.Interface) ([]DeviceInfo, error) {
	count, ret := lib.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("failed to get device count: %s", nvml.ErrorString(ret))
	}

	out := make([]DeviceInfo, 0, count)
	for i := 0; i < count; i++ {
		dev, ret := lib.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			log.Warnf("skipping GPU at index %d: %s", i, nvml.ErrorString(ret))
			continue
		}

		info := DeviceInfo{Index: i}
		if name, ret := dev.GetName(); ret == nvml.SUCCESS {
			info.Name = name
		}
		if uuid, ret := dev.GetUUID(); ret == nvml.SUCCESS {
			info.UUID = uuid
		}
		if mem, ret := dev.GetMemoryInfo(); ret == nvml.SUCCESS {
			info.MemoryBytes = mem.Total
		}
		out = append(out, info)
	}
	return out, nil
}
