// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

//go:build !linux_bpf

package uprobe

import "github.com/DataDog/gputrace/pkg/tracer"

// New is not supported without the linux_bpf build tag.
func New(Config) (tracer.Tracer, error) {
	return nil, tracer.ErrNotSupported
}
