// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package version holds the version of the tracing SDK.
package version

import "fmt"

// SDKVersion contains the version of the SDK.
// It is populated at build time using build flags.
var SDKVersion string

// Commit is populated with the short commit hash from which the SDK was built
var Commit string

var sdkVersionDefault = "0.1.0-devel"

func init() {
	if SDKVersion == "" {
		SDKVersion = sdkVersionDefault
	}
}

// Info returns a human readable version string.
func Info() string {
	if Commit == "" {
		return SDKVersion
	}
	return fmt.Sprintf("%s - Commit: %s", SDKVersion, Commit)
}
