// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DataDog/gputrace/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  ``,
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("gputrace %s\n", version.Info())
	},
}

func init() {
	GputraceCmd.AddCommand(versionCmd)
}
