// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package config loads the runtime configuration from an optional YAML
// file, then applies GPUTRACE_ environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/DataDog/gputrace/pkg/util/log"
	"github.com/DataDog/gputrace/pkg/view"
)

const envPrefix = "GPUTRACE_"

// Config is the resolved runtime configuration.
type Config struct {
	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// EnabledKinds lists the record kinds to emit, by name.
	EnabledKinds []string `yaml:"enabled_kinds"`

	// Functions restricts interception to the named driver functions.
	// Empty traces everything the tracer exposes.
	Functions []string `yaml:"functions"`

	// BufferSize is the capacity in bytes of each exchange buffer.
	BufferSize int `yaml:"buffer_size"`

	// LibraryPath overrides discovery of the traced runtime library.
	LibraryPath string `yaml:"library_path"`

	// BPFObjectPath locates the compiled eBPF object.
	BPFObjectPath string `yaml:"bpf_object_path"`

	// ReportPath receives the hot-functions report. Empty writes it to
	// standard output.
	ReportPath string `yaml:"report_path"`
}

func defaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		EnabledKinds: []string{
			view.KindKernel.String(),
			view.KindMemoryCopy.String(),
			view.KindMemoryFill.String(),
			view.KindExternalCorrelation.String(),
			view.KindOverhead.String(),
		},
		BufferSize:    256 * 1024,
		BPFObjectPath: "/opt/gputrace/share/ebpf/gputrace.o",
	}
}

// New returns the configuration from path merged over the defaults. An
// empty path skips the file and resolves from defaults plus environment
// overrides only.
func New(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.applyEnv()

	if cfg.BufferSize < view.MaxRecordSize {
		return nil, fmt.Errorf("buffer_size %d is below the largest record size %d", cfg.BufferSize, view.MaxRecordSize)
	}
	if _, err := cfg.Kinds(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(envPrefix + "LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv(envPrefix + "ENABLED_KINDS"); ok {
		c.EnabledKinds = splitList(v)
	}
	if v, ok := os.LookupEnv(envPrefix + "FUNCTIONS"); ok {
		c.Functions = splitList(v)
	}
	if v, ok := os.LookupEnv(envPrefix + "BUFFER_SIZE"); ok {
		size, err := strconv.Atoi(v)
		if err != nil {
			log.Warnf("ignoring %sBUFFER_SIZE=%q: %v", envPrefix, v, err)
		} else {
			c.BufferSize = size
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "LIBRARY_PATH"); ok {
		c.LibraryPath = v
	}
	if v, ok := os.LookupEnv(envPrefix + "BPF_OBJECT_PATH"); ok {
		c.BPFObjectPath = v
	}
	if v, ok := os.LookupEnv(envPrefix + "REPORT_PATH"); ok {
		c.ReportPath = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Kinds parses EnabledKinds into record kinds.
func (c *Config) Kinds() ([]view.Kind, error) {
	kinds := make([]view.Kind, 0, len(c.EnabledKinds))
	for _, name := range c.EnabledKinds {
		k, err := view.KindFromString(name)
		if err != nil {
			return nil, fmt.Errorf("enabled_kinds: %w", err)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
