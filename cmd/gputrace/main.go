// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package main

import (
	"os"

	"github.com/DataDog/gputrace/cmd/gputrace/app"
	"github.com/DataDog/gputrace/pkg/util/log"
)

func main() {
	if err := app.GputraceCmd.Execute(); err != nil {
		log.Errorf("%v", err) //nolint:errcheck
		log.Flush()
		os.Exit(-1)
	}
}
