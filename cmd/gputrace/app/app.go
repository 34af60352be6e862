// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package app

import (
	"github.com/spf13/cobra"

	"github.com/DataDog/gputrace/pkg/config"
	"github.com/DataDog/gputrace/pkg/util/log"
)

var (
	// GputraceCmd is the root command
	GputraceCmd = &cobra.Command{
		Use:   "gputrace [command]",
		Short: "Trace GPU runtime API calls.",
		Long: `
gputrace intercepts calls into the GPU runtime library with uprobes,
aggregates per-function call statistics and optionally streams binary call
records for offline analysis.`,
		SilenceUsage:      true,
		PersistentPreRunE: preRun,
	}

	// confFilePath holds the path to the configuration file, to allow
	// overrides from the command line
	confFilePath string
	flagLogLevel string

	cfg *config.Config
)

// preRun resolves the configuration and installs the logger before any
// subcommand runs.
func preRun(_ *cobra.Command, _ []string) error {
	c, err := config.New(confFilePath)
	if err != nil {
		return err
	}
	if flagLogLevel != "" {
		c.LogLevel = flagLogLevel
	}

	l, err := log.BuildConsoleLogger(c.LogLevel)
	if err != nil {
		return err
	}
	log.SetupLogger(l, c.LogLevel)

	cfg = c
	return nil
}

func init() {
	GputraceCmd.PersistentFlags().StringVarP(&confFilePath, "cfgpath", "c", "", "path to gputrace.yaml")
	GputraceCmd.PersistentFlags().StringVarP(&flagLogLevel, "log-level", "l", "", "override the configured log level")
}
