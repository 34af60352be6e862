// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/gputrace/pkg/view"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gputrace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := New("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 256*1024, cfg.BufferSize)
	assert.Empty(t, cfg.Functions)

	kinds, err := cfg.Kinds()
	require.NoError(t, err)
	assert.Len(t, kinds, 5)
}

func TestFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
buffer_size: 65536
enabled_kinds:
  - kernel
  - overhead
functions:
  - cudaLaunchKernel
library_path: /usr/lib/libcudart.so.12
`)
	cfg, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 65536, cfg.BufferSize)
	assert.Equal(t, []string{"cudaLaunchKernel"}, cfg.Functions)
	assert.Equal(t, "/usr/lib/libcudart.so.12", cfg.LibraryPath)

	kinds, err := cfg.Kinds()
	require.NoError(t, err)
	assert.Equal(t, []view.Kind{view.KindKernel, view.KindOverhead}, kinds)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log_level: debug\nbuffer_size: 65536\n")
	t.Setenv("GPUTRACE_LOG_LEVEL", "warn")
	t.Setenv("GPUTRACE_BUFFER_SIZE", "131072")
	t.Setenv("GPUTRACE_ENABLED_KINDS", "kernel, memory_copy")
	t.Setenv("GPUTRACE_FUNCTIONS", "cudaMemcpy,cudaMemcpyAsync")
	t.Setenv("GPUTRACE_REPORT_PATH", "/tmp/report.txt")

	cfg, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 131072, cfg.BufferSize)
	assert.Equal(t, []string{"kernel", "memory_copy"}, cfg.EnabledKinds)
	assert.Equal(t, []string{"cudaMemcpy", "cudaMemcpyAsync"}, cfg.Functions)
	assert.Equal(t, "/tmp/report.txt", cfg.ReportPath)
}

func TestBadEnvBufferSizeKeepsPrevious(t *testing.T) {
	t.Setenv("GPUTRACE_BUFFER_SIZE", "not-a-number")

	cfg, err := New("")
	require.NoError(t, err)
	assert.Equal(t, 256*1024, cfg.BufferSize)
}

func TestBufferSizeBelowRecordSize(t *testing.T) {
	path := writeConfig(t, "buffer_size: 16\n")
	_, err := New(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buffer_size")
}

func TestUnknownKindFails(t *testing.T) {
	path := writeConfig(t, "enabled_kinds: [kernel, bogus]\n")
	_, err := New(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestMissingFileFails(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
