// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package uprobe

// Config locates the eBPF object and the traced runtime library.
type Config struct {
	// BPFObjectPath is the compiled eBPF object file.
	BPFObjectPath string

	// LibraryPath is the runtime library to attach the probes to. Empty
	// triggers discovery through the memory maps of running processes.
	LibraryPath string
}
